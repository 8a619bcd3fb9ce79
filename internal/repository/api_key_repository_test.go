package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coliving-calendar-api/internal/models"
)

func sampleAPIKey() *models.APIKey {
	return &models.APIKey{
		ID:        "key-1",
		Name:      "channel manager",
		Prefix:    "AbCd1234",
		KeyHash:   "$2a$10$hash",
		CreatedAt: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestAPIKeyRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAPIKeyRepository(db)
	key := sampleAPIKey()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO api_keys (id,name,prefix,key_hash,created_by,created_at) VALUES ($1,$2,$3,$4,$5,$6)")).
		WithArgs(key.ID, key.Name, key.Prefix, key.KeyHash, nil, key.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), key))
}

func TestAPIKeyRepositoryCreateDuplicatePrefix(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAPIKeyRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO api_keys")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), sampleAPIKey())
	assert.True(t, errors.Is(err, ErrAPIKeyPrefixTaken))
}

func TestAPIKeyRepositoryFindByPrefix(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAPIKeyRepository(db)
	key := sampleAPIKey()

	mock.ExpectQuery(regexp.QuoteMeta("FROM api_keys WHERE prefix = $1")).
		WithArgs("AbCd1234").
		WillReturnRows(sqlmock.NewRows(apiKeyColumns).
			AddRow(key.ID, key.Name, key.Prefix, key.KeyHash, nil, key.CreatedAt, nil, nil))

	found, err := repo.FindByPrefix(context.Background(), "AbCd1234")
	require.NoError(t, err)
	assert.Equal(t, "key-1", found.ID)
	assert.False(t, found.Revoked())
}

func TestAPIKeyRepositoryRevoke(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAPIKeyRepository(db)
	at := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE api_keys SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL")).
		WithArgs(at, "key-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE api_keys SET revoked_at = $1")).
		WithArgs(at, "key-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Revoke(context.Background(), "key-1", at))
	err := repo.Revoke(context.Background(), "key-1", at)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestAPIKeyRepositoryTouchLastUsed(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAPIKeyRepository(db)
	at := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE api_keys SET last_used_at = $1 WHERE id = $2")).
		WithArgs(at, "key-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.TouchLastUsed(context.Background(), "key-1", at))
}

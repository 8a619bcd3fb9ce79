package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/coliving-calendar-api/internal/models"
)

// ErrAPIKeyPrefixTaken signals a prefix collision on insert.
var ErrAPIKeyPrefixTaken = errors.New("api key prefix already exists")

var apiKeyColumns = []string{"id", "name", "prefix", "key_hash", "created_by", "created_at", "last_used_at", "revoked_at"}

// APIKeyRepository persists integration API keys.
type APIKeyRepository struct {
	db *sqlx.DB
}

// NewAPIKeyRepository constructs the repository.
func NewAPIKeyRepository(db *sqlx.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create inserts a new key record.
func (r *APIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	query, args, err := psql.Insert("api_keys").
		Columns("id", "name", "prefix", "key_hash", "created_by", "created_at").
		Values(key.ID, key.Name, key.Prefix, key.KeyHash, key.CreatedBy, key.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build api key insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgerrcode.UniqueViolation {
			return ErrAPIKeyPrefixTaken
		}
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// List returns every key, newest first.
func (r *APIKeyRepository) List(ctx context.Context) ([]models.APIKey, error) {
	query, args, err := psql.Select(apiKeyColumns...).From("api_keys").OrderBy("created_at DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build api key list: %w", err)
	}
	var keys []models.APIKey
	if err := r.db.SelectContext(ctx, &keys, query, args...); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// FindByPrefix looks a key up by its public prefix. sql.ErrNoRows is preserved.
func (r *APIKeyRepository) FindByPrefix(ctx context.Context, prefix string) (*models.APIKey, error) {
	query, args, err := psql.Select(apiKeyColumns...).
		From("api_keys").
		Where(squirrel.Eq{"prefix": prefix}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build api key lookup: %w", err)
	}
	var key models.APIKey
	if err := r.db.GetContext(ctx, &key, query, args...); err != nil {
		return nil, fmt.Errorf("find api key: %w", err)
	}
	return &key, nil
}

// Revoke marks the key revoked. Unknown or already revoked keys yield sql.ErrNoRows.
func (r *APIKeyRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	query, args, err := psql.Update("api_keys").
		Set("revoked_at", at).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"revoked_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build api key revoke: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke api key rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TouchLastUsed records the last successful authentication.
func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE api_keys SET last_used_at = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

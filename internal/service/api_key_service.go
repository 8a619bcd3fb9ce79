package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/coliving-calendar-api/internal/dto"
	"github.com/noah-isme/coliving-calendar-api/internal/models"
	"github.com/noah-isme/coliving-calendar-api/internal/repository"
	appErrors "github.com/noah-isme/coliving-calendar-api/pkg/errors"
)

const (
	apiKeyScheme       = "clv"
	apiKeyAlphabet     = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	apiKeyPrefixLength = 8
	apiKeySecretLength = 32
	apiKeyCreateTries  = 3
)

type apiKeyStore interface {
	Create(ctx context.Context, key *models.APIKey) error
	List(ctx context.Context) ([]models.APIKey, error)
	FindByPrefix(ctx context.Context, prefix string) (*models.APIKey, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}

// APIKeyService manages integration keys that grant access to every feed.
type APIKeyService struct {
	repo      apiKeyStore
	validator *validator.Validate
	logger    *zap.Logger
	hashCost  int
	now       func() time.Time
}

// NewAPIKeyService constructs the service. A non-positive hashCost uses bcrypt.DefaultCost.
func NewAPIKeyService(repo apiKeyStore, validate *validator.Validate, logger *zap.Logger, hashCost int) *APIKeyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if hashCost <= 0 {
		hashCost = bcrypt.DefaultCost
	}
	return &APIKeyService{repo: repo, validator: validate, logger: logger, hashCost: hashCost, now: time.Now}
}

// Create generates a key. The plaintext is only present in the returned value.
func (s *APIKeyService) Create(ctx context.Context, req dto.CreateAPIKeyRequest, createdBy string) (*dto.CreatedAPIKey, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid api key payload")
	}

	var creator *string
	if createdBy != "" {
		creator = &createdBy
	}

	for attempt := 1; attempt <= apiKeyCreateTries; attempt++ {
		prefix, err := gonanoid.Generate(apiKeyAlphabet, apiKeyPrefixLength)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate api key")
		}
		secret, err := gonanoid.Generate(apiKeyAlphabet, apiKeySecretLength)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate api key")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.hashCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash api key")
		}

		key := &models.APIKey{
			ID:        uuid.NewString(),
			Name:      strings.TrimSpace(req.Name),
			Prefix:    prefix,
			KeyHash:   string(hash),
			CreatedBy: creator,
			CreatedAt: s.now().UTC(),
		}
		if err := s.repo.Create(ctx, key); err != nil {
			if errors.Is(err, repository.ErrAPIKeyPrefixTaken) {
				s.logger.Warn("api key prefix collision", zap.Int("attempt", attempt))
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store api key")
		}

		s.logger.Info("api key created", zap.String("api_key_id", key.ID), zap.String("prefix", prefix))
		return &dto.CreatedAPIKey{
			ID:        key.ID,
			Name:      key.Name,
			Prefix:    prefix,
			Key:       formatAPIKey(prefix, secret),
			CreatedAt: key.CreatedAt,
		}, nil
	}
	return nil, appErrors.Clone(appErrors.ErrConflict, "could not allocate a unique api key prefix")
}

// List returns every key without secrets.
func (s *APIKeyService) List(ctx context.Context) ([]models.APIKey, error) {
	keys, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list api keys")
	}
	return keys, nil
}

// Revoke disables a key permanently.
func (s *APIKeyService) Revoke(ctx context.Context, id string) error {
	if err := s.repo.Revoke(ctx, id, s.now().UTC()); err != nil {
		if isNoRows(err) {
			return appErrors.Clone(appErrors.ErrNotFound, "api key not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke api key")
	}
	s.logger.Info("api key revoked", zap.String("api_key_id", id))
	return nil
}

// Authenticate resolves a raw clv_<prefix>_<secret> key.
func (s *APIKeyService) Authenticate(ctx context.Context, raw string) (*models.APIKey, error) {
	prefix, secret, ok := parseAPIKey(raw)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "malformed api key")
	}
	key, err := s.repo.FindByPrefix(ctx, prefix)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid api key")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load api key")
	}
	if key.Revoked() {
		return nil, appErrors.Clone(appErrors.ErrRevoked, "api key revoked")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(secret)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid api key")
	}
	if err := s.repo.TouchLastUsed(ctx, key.ID, s.now().UTC()); err != nil {
		s.logger.Warn("failed to record api key usage", zap.String("api_key_id", key.ID), zap.Error(err))
	}
	return key, nil
}

func formatAPIKey(prefix, secret string) string {
	return fmt.Sprintf("%s_%s_%s", apiKeyScheme, prefix, secret)
}

func parseAPIKey(raw string) (prefix, secret string, ok bool) {
	parts := strings.Split(strings.TrimSpace(raw), "_")
	if len(parts) != 3 || parts[0] != apiKeyScheme {
		return "", "", false
	}
	if len(parts[1]) != apiKeyPrefixLength || len(parts[2]) != apiKeySecretLength {
		return "", "", false
	}
	return parts[1], parts[2], true
}

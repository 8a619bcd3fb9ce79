package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/coliving-calendar-api/internal/dto"
	"github.com/noah-isme/coliving-calendar-api/internal/models"
	appErrors "github.com/noah-isme/coliving-calendar-api/pkg/errors"
	"github.com/noah-isme/coliving-calendar-api/pkg/feedtoken"
)

// FeedTokenConfig configures subscribe URLs.
type FeedTokenConfig struct {
	PublicBaseURL string
	APIPrefix     string
}

// FeedTokenService issues and verifies signed feed tokens.
type FeedTokenService struct {
	signer     *feedtoken.Signer
	apartments feedApartmentReader
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        FeedTokenConfig
}

// NewFeedTokenService constructs the service.
func NewFeedTokenService(signer *feedtoken.Signer, apartments feedApartmentReader, validate *validator.Validate, logger *zap.Logger, cfg FeedTokenConfig) *FeedTokenService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &FeedTokenService{signer: signer, apartments: apartments, validator: validate, logger: logger, cfg: cfg}
}

// Issue signs a token for the apartment and builds the matching subscribe URL.
func (s *FeedTokenService) Issue(ctx context.Context, apartmentID string, req dto.IssueFeedTokenRequest) (*dto.FeedTokenResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feed token payload")
	}
	apartment, err := s.apartments.GetByID(ctx, apartmentID)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "apartment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load apartment")
	}

	ttl := time.Duration(req.TTLHours) * time.Hour
	token, expiresAt, err := s.signer.Issue(apartment.ID, req.Scope, ttl)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign feed token")
	}

	mode := req.Scope
	if mode == feedtoken.ScopeAll {
		mode = string(models.FeedModeCalendar)
	}
	subscribe := fmt.Sprintf("%s%s/feeds/apartments/%s/%s.ics?token=%s",
		s.cfg.PublicBaseURL, s.cfg.APIPrefix, url.PathEscape(apartment.ID), mode, url.QueryEscape(token))

	s.logger.Info("feed token issued",
		zap.String("apartment_id", apartment.ID),
		zap.String("scope", req.Scope),
		zap.Time("expires_at", expiresAt),
	)
	return &dto.FeedTokenResponse{Token: token, Scope: req.Scope, SubscribeURL: subscribe, ExpiresAt: expiresAt}, nil
}

// Verify checks that token grants mode on apartmentID.
func (s *FeedTokenService) Verify(token, apartmentID string, mode models.FeedMode) (*models.FeedAccess, error) {
	claims, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, feedtoken.ErrExpired) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "feed token expired")
		}
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid feed token")
	}
	if !claims.Allows(apartmentID, string(mode)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "feed token does not grant this feed")
	}
	return &models.FeedAccess{
		Method:      "token",
		Subject:     claims.ApartmentID,
		ApartmentID: claims.ApartmentID,
		Scope:       claims.Scope,
	}, nil
}

package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kubeasy-dev/kubeasy-backend/internal/apierr"
	"github.com/kubeasy-dev/kubeasy-backend/internal/logger"
	"github.com/kubeasy-dev/kubeasy-backend/internal/repos"
	"github.com/kubeasy-dev/kubeasy-backend/internal/requestdata"
)

// CLI credentials are opaque "kc_" tokens resolved by digest against the
// api_token table; everything else is treated as a browser access token
// (HS256 JWT issued by the auth provider). Both resolve to the same durable
// user identity.

const apiTokenPrefix = "kc_"

type TokenService interface {
	Authenticate(ctx context.Context, raw string) (*requestdata.RequestData, error)
}

type tokenService struct {
	db           *gorm.DB
	log          *logger.Logger
	userRepo     repos.UserRepo
	apiTokenRepo repos.ApiTokenRepo
	jwtSecretKey string
}

func NewTokenService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, apiTokenRepo repos.ApiTokenRepo, jwtSecretKey string) TokenService {
	return &tokenService{
		db:           db,
		log:          log.With("service", "TokenService"),
		userRepo:     userRepo,
		apiTokenRepo: apiTokenRepo,
		jwtSecretKey: jwtSecretKey,
	}
}

// TokenDigest is the stored form of an opaque API token.
func TokenDigest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func errUnauthorized() error {
	// One generic message for every authentication failure; the reason stays
	// in the logs.
	return apierr.New(401, "unauthorized", fmt.Errorf("missing or invalid token"))
}

func (s *tokenService) Authenticate(ctx context.Context, raw string) (*requestdata.RequestData, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errUnauthorized()
	}
	if strings.HasPrefix(raw, apiTokenPrefix) {
		return s.authenticateApiToken(ctx, raw)
	}
	return s.authenticateAccessToken(ctx, raw)
}

func (s *tokenService) authenticateApiToken(ctx context.Context, raw string) (*requestdata.RequestData, error) {
	token, err := s.apiTokenRepo.GetByDigest(ctx, nil, TokenDigest(raw))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errUnauthorized()
	}
	if err != nil {
		return nil, fmt.Errorf("lookup api token: %w", err)
	}

	if err := s.checkUser(ctx, token.UserID); err != nil {
		return nil, err
	}

	if err := s.apiTokenRepo.TouchLastUsed(ctx, nil, token.ID, time.Now()); err != nil {
		s.log.Warn("failed to touch api token last_used_at", "user_id", token.UserID, "error", err)
	}

	return &requestdata.RequestData{UserID: token.UserID, TokenID: token.ID}, nil
}

func (s *tokenService) authenticateAccessToken(ctx context.Context, raw string) (*requestdata.RequestData, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.jwtSecretKey), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		s.log.Debug("access token rejected", "error", err)
		return nil, errUnauthorized()
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return nil, errUnauthorized()
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, errUnauthorized()
	}

	if err := s.checkUser(ctx, userID); err != nil {
		return nil, err
	}
	return &requestdata.RequestData{UserID: userID}, nil
}

func (s *tokenService) checkUser(ctx context.Context, userID uuid.UUID) error {
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errUnauthorized()
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user.BannedAt != nil {
		s.log.Warn("banned account presented valid credentials", "user_id", userID)
		return errUnauthorized()
	}
	return nil
}

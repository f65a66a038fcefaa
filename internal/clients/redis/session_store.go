package redis

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kubeasy-dev/kubeasy-backend/internal/logger"
	"github.com/kubeasy-dev/kubeasy-backend/internal/types"
)

const (
	sessionKeyPrefix = "demo:session:"
	sessionTTL       = 24 * time.Hour
	sessionTokenLen  = 32
)

var (
	ErrSessionNotFound = errors.New("demo session not found")
	ErrInvalidToken    = errors.New("malformed demo session token")
)

// tokenPattern is checked before any Redis round trip, so malformed client
// input never produces a backend query.
var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{32}$`)

func ValidSessionToken(token string) bool {
	return tokenPattern.MatchString(token)
}

// SessionStore is the ephemeral home of anonymous demo sessions. Everything
// in it dies with its TTL; only the conversion record outlives it.
type SessionStore interface {
	Create(ctx context.Context, attribution types.Attribution) (*types.DemoSession, error)
	Get(ctx context.Context, token string) (*types.DemoSession, error)
	MarkCompleted(ctx context.Context, token string) error
	Delete(ctx context.Context, token string) error
	Close() error
}

type sessionStore struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewSessionStore(log *logger.Logger) (SessionStore, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &sessionStore{
		log: log.With("service", "DemoSessionStore"),
		rdb: rdb,
	}, nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	if len(token) != sessionTokenLen {
		return "", fmt.Errorf("unexpected session token length %d", len(token))
	}
	return token, nil
}

func (s *sessionStore) Create(ctx context.Context, attribution types.Attribution) (*types.DemoSession, error) {
	token, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	session := &types.DemoSession{
		Token:       token,
		CreatedAt:   time.Now().UTC(),
		Attribution: attribution,
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}
	if err := s.rdb.Set(ctx, sessionKeyPrefix+token, raw, sessionTTL).Err(); err != nil {
		return nil, fmt.Errorf("store demo session: %w", err)
	}
	return session, nil
}

func (s *sessionStore) Get(ctx context.Context, token string) (*types.DemoSession, error) {
	if !ValidSessionToken(token) {
		return nil, ErrInvalidToken
	}

	raw, err := s.rdb.Get(ctx, sessionKeyPrefix+token).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load demo session: %w", err)
	}

	var session types.DemoSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode demo session: %w", err)
	}
	return &session, nil
}

// MarkCompleted stamps completedAt and rewrites the session with KEEPTTL so
// the remaining lifetime is preserved, never extended. A token that already
// expired is silently dropped.
func (s *sessionStore) MarkCompleted(ctx context.Context, token string) error {
	session, err := s.Get(ctx, token)
	if errors.Is(err, ErrSessionNotFound) {
		s.log.Debug("Completion of expired demo session dropped", "token", token)
		return nil
	}
	if err != nil {
		return err
	}
	if session.CompletedAt != nil {
		return nil
	}

	now := time.Now().UTC()
	session.CompletedAt = &now
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, sessionKeyPrefix+token, raw, goredis.KeepTTL).Err()
}

func (s *sessionStore) Delete(ctx context.Context, token string) error {
	if !ValidSessionToken(token) {
		return ErrInvalidToken
	}
	return s.rdb.Del(ctx, sessionKeyPrefix+token).Err()
}

func (s *sessionStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

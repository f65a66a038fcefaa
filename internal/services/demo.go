package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kubeasy-dev/kubeasy-backend/internal/apierr"
	redisclient "github.com/kubeasy-dev/kubeasy-backend/internal/clients/redis"
	"github.com/kubeasy-dev/kubeasy-backend/internal/logger"
	"github.com/kubeasy-dev/kubeasy-backend/internal/repos"
	"github.com/kubeasy-dev/kubeasy-backend/internal/types"
)

type DemoSubmitResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type LinkResult struct {
	Success      bool   `json:"success"`
	WasCompleted bool   `json:"wasCompleted"`
	Message      string `json:"message,omitempty"`
}

type DemoService interface {
	CreateSession(ctx context.Context, attribution types.Attribution) (*types.DemoSession, error)
	GetSession(ctx context.Context, token string) (*types.DemoSession, error)
	StartDemo(ctx context.Context, token string) error
	SubmitDemo(ctx context.Context, token string, results []types.ObjectiveResult) (*DemoSubmitResult, error)
	LinkConversion(ctx context.Context, userID uuid.UUID, token string) (*LinkResult, error)
}

type demoService struct {
	log            *logger.Logger
	store          redisclient.SessionStore
	challenges     ChallengeSource
	conversionRepo repos.DemoConversionRepo
	notifier       DemoNotifier
}

func NewDemoService(
	log *logger.Logger,
	store redisclient.SessionStore,
	challenges ChallengeSource,
	conversionRepo repos.DemoConversionRepo,
	notifier DemoNotifier,
) DemoService {
	return &demoService{
		log:            log.With("service", "DemoService"),
		store:          store,
		challenges:     challenges,
		conversionRepo: conversionRepo,
		notifier:       notifier,
	}
}

func errDemoUnavailable() error {
	// The whole demo feature degrades gracefully when the KV backend is not
	// configured; nothing else in the system is affected.
	return apierr.New(503, "demo_unavailable", fmt.Errorf("demo sessions are not available"))
}

func errDemoSessionNotFound() error {
	return apierr.New(404, "demo_session_not_found", fmt.Errorf("unknown or expired demo session"))
}

func (s *demoService) CreateSession(ctx context.Context, attribution types.Attribution) (*types.DemoSession, error) {
	if s.store == nil {
		return nil, errDemoUnavailable()
	}

	session, err := s.store.Create(ctx, attribution)
	if err != nil {
		return nil, fmt.Errorf("create demo session: %w", err)
	}

	// The durable mirror is best-effort at creation time; link-time upserts
	// it again if this write is lost.
	if err := s.conversionRepo.Upsert(ctx, nil, conversionRowOf(session)); err != nil {
		s.log.Warn("failed to mirror demo session", "error", err)
	}
	return session, nil
}

func (s *demoService) GetSession(ctx context.Context, token string) (*types.DemoSession, error) {
	if s.store == nil {
		return nil, errDemoUnavailable()
	}

	session, err := s.store.Get(ctx, token)
	if errors.Is(err, redisclient.ErrInvalidToken) || errors.Is(err, redisclient.ErrSessionNotFound) {
		return nil, errDemoSessionNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("load demo session: %w", err)
	}
	return session, nil
}

func (s *demoService) StartDemo(ctx context.Context, token string) error {
	if _, err := s.GetSession(ctx, token); err != nil {
		return err
	}
	s.notifier.DemoStarted(token)
	return nil
}

func (s *demoService) SubmitDemo(ctx context.Context, token string, results []types.ObjectiveResult) (*DemoSubmitResult, error) {
	session, err := s.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	challenge, ok := s.challenges.Demo()
	if !ok {
		return nil, errDemoUnavailable()
	}
	if len(results) == 0 {
		return nil, apierr.New(400, "empty_results", fmt.Errorf("at least one objective result is required"))
	}

	rec := Reconcile(challenge.ObjectiveKeys(), results)
	if rec.Mismatch() {
		return nil, &ObjectiveMismatchError{Missing: rec.Missing, Unknown: rec.Unknown}
	}

	for _, res := range results {
		s.notifier.ObjectiveValidated(token, res)
	}

	if !rec.AllPassed {
		return &DemoSubmitResult{Success: false, Message: "some objectives did not pass"}, nil
	}

	if session.CompletedAt == nil {
		if err := s.store.MarkCompleted(ctx, token); err != nil {
			s.log.Warn("failed to mark demo session completed", "error", err)
		}
		if err := s.conversionRepo.MarkCompleted(ctx, nil, token, time.Now().UTC()); err != nil {
			s.log.Warn("failed to mark conversion record completed", "error", err)
		}
	}
	s.notifier.DemoCompleted(token)
	return &DemoSubmitResult{Success: true}, nil
}

// LinkConversion attaches a trial session to a freshly-authenticated account.
// It is idempotent: the conversion record is written once, re-linking the
// same token is a harmless success, and WasCompleted is true only on the call
// that actually converted a completed session.
func (s *demoService) LinkConversion(ctx context.Context, userID uuid.UUID, token string) (*LinkResult, error) {
	if !redisclient.ValidSessionToken(token) {
		return nil, errDemoSessionNotFound()
	}

	row, err := s.conversionRepo.GetByID(ctx, nil, token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// The mirror write at creation time may have been lost; fall back to
		// the live session if it still exists.
		session, sErr := s.GetSession(ctx, token)
		if sErr != nil {
			return nil, errDemoSessionNotFound()
		}
		row = conversionRowOf(session)
		if err := s.conversionRepo.Upsert(ctx, nil, row); err != nil {
			return nil, fmt.Errorf("create conversion record: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("load conversion record: %w", err)
	}

	converted, err := s.conversionRepo.MarkConverted(ctx, nil, token, userID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("record conversion: %w", err)
	}

	if s.store != nil {
		if err := s.store.Delete(ctx, token); err != nil {
			s.log.Warn("failed to delete linked demo session", "error", err)
		}
	}

	s.log.Info("demo session linked", "user_id", userID)
	return &LinkResult{Success: true, WasCompleted: converted && row.CompletedAt != nil}, nil
}

func conversionRowOf(session *types.DemoSession) *types.DemoConversion {
	attribution, err := json.Marshal(session.Attribution)
	if err != nil {
		attribution = nil
	}
	return &types.DemoConversion{
		ID:          session.Token,
		CompletedAt: session.CompletedAt,
		Attribution: datatypes.JSON(attribution),
		CreatedAt:   session.CreatedAt,
	}
}

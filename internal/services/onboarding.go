package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/kubeasy-dev/kubeasy-backend/internal/logger"
	"github.com/kubeasy-dev/kubeasy-backend/internal/repos"
	"github.com/kubeasy-dev/kubeasy-backend/internal/types"
)

// OnboardingFacts are the independent booleans the wizard step is derived
// from. They come from three different tables and are joined at read time;
// the composite step is never persisted, so there is no second source of
// truth to drift.
type OnboardingFacts struct {
	HasApiToken           bool `json:"hasApiToken"`
	CliAuthenticated      bool `json:"cliAuthenticated"`
	ClusterInitialized    bool `json:"clusterInitialized"`
	HasStartedChallenge   bool `json:"hasStartedChallenge"`
	HasCompletedChallenge bool `json:"hasCompletedChallenge"`
}

type OnboardingStatus struct {
	Steps       OnboardingFacts `json:"steps"`
	CurrentStep int             `json:"currentStep"`
	IsComplete  bool            `json:"isComplete"`
	IsSkipped   bool            `json:"isSkipped"`
}

// DeriveStep scans the facts in fixed priority order and returns the highest
// milestone reached, not a counter: a later fact only raises the step when
// true, so accumulating facts never moves the step backwards.
func DeriveStep(facts OnboardingFacts, complete bool) int {
	step := 1
	if facts.HasApiToken {
		step = 2
	}
	if facts.CliAuthenticated {
		step = 3
	}
	if facts.ClusterInitialized {
		step = 4
	}
	if facts.HasStartedChallenge {
		step = 5
	}
	if facts.HasCompletedChallenge {
		step = 6
	}
	if complete {
		step = 7
	}
	return step
}

type CliInfo struct {
	CliVersion string `json:"cliVersion"`
	OS         string `json:"os"`
	Arch       string `json:"arch"`
}

type OnboardingService interface {
	GetStatus(ctx context.Context, userID uuid.UUID) (*OnboardingStatus, error)
	TrackCliLogin(ctx context.Context, userID uuid.UUID, info CliInfo) (firstTime bool, err error)
	TrackClusterSetup(ctx context.Context, userID uuid.UUID) (firstTime bool, err error)
	Complete(ctx context.Context, userID uuid.UUID) error
	Skip(ctx context.Context, userID uuid.UUID) error
}

type onboardingService struct {
	db             *gorm.DB
	log            *logger.Logger
	onboardingRepo repos.OnboardingRepo
	apiTokenRepo   repos.ApiTokenRepo
	progressRepo   repos.ProgressRepo
	completionRepo repos.CompletionRepo
	notifier       OnboardingNotifier
}

func NewOnboardingService(
	db *gorm.DB,
	log *logger.Logger,
	onboardingRepo repos.OnboardingRepo,
	apiTokenRepo repos.ApiTokenRepo,
	progressRepo repos.ProgressRepo,
	completionRepo repos.CompletionRepo,
	notifier OnboardingNotifier,
) OnboardingService {
	return &onboardingService{
		db:             db,
		log:            log.With("service", "OnboardingService"),
		onboardingRepo: onboardingRepo,
		apiTokenRepo:   apiTokenRepo,
		progressRepo:   progressRepo,
		completionRepo: completionRepo,
		notifier:       notifier,
	}
}

func (s *onboardingService) GetStatus(ctx context.Context, userID uuid.UUID) (*OnboardingStatus, error) {
	var (
		facts      OnboardingFacts
		isComplete bool
		isSkipped  bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		state, err := s.onboardingRepo.GetByUserID(gctx, nil, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load onboarding state: %w", err)
		}
		facts.CliAuthenticated = state.CliAuthenticated
		facts.ClusterInitialized = state.ClusterInitialized
		isComplete = state.CompletedAt != nil
		isSkipped = state.SkippedAt != nil
		return nil
	})
	g.Go(func() error {
		count, err := s.apiTokenRepo.CountByUserID(gctx, nil, userID)
		if err != nil {
			return fmt.Errorf("count api tokens: %w", err)
		}
		facts.HasApiToken = count > 0
		return nil
	})
	g.Go(func() error {
		started, err := s.progressRepo.CountByUser(gctx, nil, userID)
		if err != nil {
			return fmt.Errorf("count challenge progress: %w", err)
		}
		facts.HasStartedChallenge = started > 0
		completed, err := s.completionRepo.CountByUser(gctx, nil, userID)
		if err != nil {
			return fmt.Errorf("count challenge completions: %w", err)
		}
		facts.HasCompletedChallenge = completed > 0
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &OnboardingStatus{
		Steps:       facts,
		CurrentStep: DeriveStep(facts, isComplete),
		IsComplete:  isComplete,
		IsSkipped:   isSkipped,
	}, nil
}

func (s *onboardingService) TrackCliLogin(ctx context.Context, userID uuid.UUID, info CliInfo) (bool, error) {
	state, err := s.currentState(ctx, userID)
	if err != nil {
		return false, err
	}
	firstTime := state == nil || !state.CliAuthenticated
	if err := s.onboardingRepo.UpsertCliLogin(ctx, nil, userID, info.CliVersion, info.OS, info.Arch, time.Now().UTC()); err != nil {
		return false, fmt.Errorf("record cli login: %w", err)
	}
	s.notifyUpdated(ctx, userID)
	return firstTime, nil
}

func (s *onboardingService) TrackClusterSetup(ctx context.Context, userID uuid.UUID) (bool, error) {
	state, err := s.currentState(ctx, userID)
	if err != nil {
		return false, err
	}
	firstTime := state == nil || !state.ClusterInitialized
	if err := s.onboardingRepo.UpsertClusterInit(ctx, nil, userID, time.Now().UTC()); err != nil {
		return false, fmt.Errorf("record cluster setup: %w", err)
	}
	s.notifyUpdated(ctx, userID)
	return firstTime, nil
}

func (s *onboardingService) Complete(ctx context.Context, userID uuid.UUID) error {
	if err := s.onboardingRepo.UpsertCompleted(ctx, nil, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("complete onboarding: %w", err)
	}
	s.notifyUpdated(ctx, userID)
	return nil
}

func (s *onboardingService) Skip(ctx context.Context, userID uuid.UUID) error {
	if err := s.onboardingRepo.UpsertSkipped(ctx, nil, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("skip onboarding: %w", err)
	}
	s.notifyUpdated(ctx, userID)
	return nil
}

func (s *onboardingService) currentState(ctx context.Context, userID uuid.UUID) (*types.OnboardingState, error) {
	state, err := s.onboardingRepo.GetByUserID(ctx, nil, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load onboarding state: %w", err)
	}
	return state, nil
}

// notifyUpdated recomputes the derived view and pushes it to any open tab;
// failures only cost the notification, never the tracked fact.
func (s *onboardingService) notifyUpdated(ctx context.Context, userID uuid.UUID) {
	status, err := s.GetStatus(ctx, userID)
	if err != nil {
		s.log.Warn("failed to derive onboarding status for notification", "user_id", userID, "error", err)
		return
	}
	s.notifier.OnboardingUpdated(userID, status)
}

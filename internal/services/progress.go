package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kubeasy-dev/kubeasy-backend/internal/apierr"
	"github.com/kubeasy-dev/kubeasy-backend/internal/catalog"
	"github.com/kubeasy-dev/kubeasy-backend/internal/logger"
	"github.com/kubeasy-dev/kubeasy-backend/internal/repos"
	"github.com/kubeasy-dev/kubeasy-backend/internal/types"
)

// ChallengeSource is the read-only expected-set lookup, satisfied by
// *catalog.Catalog.
type ChallengeSource interface {
	Get(slug string) (*catalog.Challenge, bool)
	Demo() (*catalog.Challenge, bool)
}

// ObjectiveMismatchError rejects a submission whose objective set differs
// from the challenge definition. It carries the exact symmetric difference
// for the 400 response body.
type ObjectiveMismatchError struct {
	Missing []string
	Unknown []string
}

func (e *ObjectiveMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing objectives: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, fmt.Sprintf("unknown objectives: %s", strings.Join(e.Unknown, ", ")))
	}
	return strings.Join(parts, "; ")
}

func errChallengeNotFound(slug string) error {
	return apierr.New(404, "challenge_not_found", fmt.Errorf("unknown challenge %q", slug))
}

func errAlreadyCompleted(slug string) error {
	return apierr.New(409, "already_completed", fmt.Errorf("challenge %q already completed today", slug))
}

type ProgressState struct {
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type SubmitResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message,omitempty"`
	XpAwarded      int    `json:"xpAwarded,omitempty"`
	TotalXp        int    `json:"totalXp,omitempty"`
	Rank           string `json:"rank,omitempty"`
	RankUp         bool   `json:"rankUp,omitempty"`
	FirstChallenge bool   `json:"firstChallenge,omitempty"`
}

type ProgressService interface {
	Start(ctx context.Context, userID uuid.UUID, slug string) (*ProgressState, error)
	Status(ctx context.Context, userID uuid.UUID, slug string) (*ProgressState, error)
	Submit(ctx context.Context, userID uuid.UUID, slug string, results []types.ObjectiveResult) (*SubmitResult, error)
	Reset(ctx context.Context, userID uuid.UUID, slug string) error
}

type progressService struct {
	db             *gorm.DB
	log            *logger.Logger
	challenges     ChallengeSource
	progressRepo   repos.ProgressRepo
	completionRepo repos.CompletionRepo
	xpRepo         repos.XpRepo
	notifier       ProgressNotifier
}

func NewProgressService(
	db *gorm.DB,
	log *logger.Logger,
	challenges ChallengeSource,
	progressRepo repos.ProgressRepo,
	completionRepo repos.CompletionRepo,
	xpRepo repos.XpRepo,
	notifier ProgressNotifier,
) ProgressService {
	return &progressService{
		db:             db,
		log:            log.With("service", "ProgressService"),
		challenges:     challenges,
		progressRepo:   progressRepo,
		completionRepo: completionRepo,
		xpRepo:         xpRepo,
		notifier:       notifier,
	}
}

func (s *progressService) withTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.db == nil {
		return fn(nil)
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *progressService) Start(ctx context.Context, userID uuid.UUID, slug string) (*ProgressState, error) {
	if _, ok := s.challenges.Get(slug); !ok {
		return nil, errChallengeNotFound(slug)
	}

	now := time.Now().UTC()
	row, err := s.progressRepo.CreateIfAbsent(ctx, nil, &types.ChallengeProgress{
		UserID:        userID,
		ChallengeSlug: slug,
		Status:        types.ProgressInProgress,
		StartedAt:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("start challenge: %w", err)
	}

	// Starting again after completion is a restart: back to in_progress with
	// a fresh startedAt. XP already granted is untouched.
	if row.Status == types.ProgressCompleted {
		if err := s.progressRepo.Restart(ctx, nil, userID, slug, now); err != nil {
			return nil, fmt.Errorf("restart challenge: %w", err)
		}
		row.Status = types.ProgressInProgress
		row.StartedAt = now
		row.CompletedAt = nil
	}

	s.notifier.ChallengeStarted(userID, slug)
	return progressStateOf(row), nil
}

func (s *progressService) Status(ctx context.Context, userID uuid.UUID, slug string) (*ProgressState, error) {
	if _, ok := s.challenges.Get(slug); !ok {
		return nil, errChallengeNotFound(slug)
	}

	row, err := s.progressRepo.GetByUserAndChallenge(ctx, nil, userID, slug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &ProgressState{Status: types.ProgressNotStarted}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load challenge progress: %w", err)
	}
	return progressStateOf(row), nil
}

func (s *progressService) Submit(ctx context.Context, userID uuid.UUID, slug string, results []types.ObjectiveResult) (*SubmitResult, error) {
	challenge, ok := s.challenges.Get(slug)
	if !ok {
		return nil, errChallengeNotFound(slug)
	}
	if len(results) == 0 {
		return nil, apierr.New(400, "empty_results", fmt.Errorf("at least one objective result is required"))
	}

	rec := Reconcile(challenge.ObjectiveKeys(), results)
	if rec.Mismatch() {
		return nil, &ObjectiveMismatchError{Missing: rec.Missing, Unknown: rec.Unknown}
	}

	// Every reconciled result is reflected to any open tab, pass or fail.
	for _, res := range results {
		s.notifier.ObjectiveValidated(userID, slug, res)
	}

	if !rec.AllPassed {
		return &SubmitResult{Success: false, Message: "some objectives did not pass"}, nil
	}

	now := time.Now().UTC()
	var out SubmitResult
	err := s.withTx(ctx, func(tx *gorm.DB) error {
		row, err := s.progressRepo.GetByUserAndChallenge(ctx, tx, userID, slug)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("load challenge progress: %w", err)
		}
		if row != nil && row.Status == types.ProgressCompleted {
			return errAlreadyCompleted(slug)
		}
		if row == nil {
			// Submitting without an explicit start is allowed; the row is
			// created on the fly.
			if _, err := s.progressRepo.CreateIfAbsent(ctx, tx, &types.ChallengeProgress{
				UserID:        userID,
				ChallengeSlug: slug,
				Status:        types.ProgressInProgress,
				StartedAt:     now,
			}); err != nil {
				return fmt.Errorf("create challenge progress: %w", err)
			}
		}

		// The daily ledger is the real idempotency guard: the unique index
		// turns a concurrent double-submit into ErrDuplicateCompletion here.
		if err := s.completionRepo.Insert(ctx, tx, &types.ChallengeCompletion{
			UserID:        userID,
			ChallengeSlug: slug,
			CompletedOn:   types.CompletionDay(now),
			CompletedAt:   now,
		}); err != nil {
			if errors.Is(err, repos.ErrDuplicateCompletion) {
				return errAlreadyCompleted(slug)
			}
			return fmt.Errorf("record completion: %w", err)
		}

		if err := s.progressRepo.MarkCompleted(ctx, tx, userID, slug, now); err != nil {
			return fmt.Errorf("mark progress completed: %w", err)
		}

		totalBefore, err := s.xpRepo.TotalByUser(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("sum xp: %w", err)
		}
		challengeSlug := slug
		if err := s.xpRepo.Append(ctx, tx, &types.XpTransaction{
			UserID:        userID,
			Action:        types.XpActionChallengeCompleted,
			XpAmount:      challenge.XpReward,
			ChallengeSlug: &challengeSlug,
			Description:   fmt.Sprintf("Completed challenge %q", challenge.Title),
		}); err != nil {
			return fmt.Errorf("append xp transaction: %w", err)
		}

		completions, err := s.completionRepo.CountByUser(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("count completions: %w", err)
		}

		totalAfter := totalBefore + challenge.XpReward
		out = SubmitResult{
			Success:        true,
			XpAwarded:      challenge.XpReward,
			TotalXp:        totalAfter,
			Rank:           RankForXp(totalAfter).Name,
			RankUp:         RankForXp(totalAfter) != RankForXp(totalBefore),
			FirstChallenge: completions == 1,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.ChallengeCompleted(userID, slug, out.XpAwarded, out.TotalXp, RankForXp(out.TotalXp))
	s.log.Info("challenge completed", "user_id", userID, "challenge", slug, "xp_awarded", out.XpAwarded)
	return &out, nil
}

// Reset deletes the progress row; it never claws back XP. Redoing the same
// challenge the same day cannot re-grant XP because of the daily ledger.
func (s *progressService) Reset(ctx context.Context, userID uuid.UUID, slug string) error {
	if _, ok := s.challenges.Get(slug); !ok {
		return errChallengeNotFound(slug)
	}
	if err := s.progressRepo.Delete(ctx, nil, userID, slug); err != nil {
		return fmt.Errorf("reset challenge progress: %w", err)
	}
	return nil
}

func progressStateOf(row *types.ChallengeProgress) *ProgressState {
	startedAt := row.StartedAt
	return &ProgressState{
		Status:      row.Status,
		StartedAt:   &startedAt,
		CompletedAt: row.CompletedAt,
	}
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kubeasy-dev/kubeasy-backend/internal/catalog"
	"github.com/kubeasy-dev/kubeasy-backend/internal/logger"
	"github.com/kubeasy-dev/kubeasy-backend/internal/realtime"
	"github.com/kubeasy-dev/kubeasy-backend/internal/repos"
	"github.com/kubeasy-dev/kubeasy-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

// fakeChallenges is an in-memory ChallengeSource.
type fakeChallenges struct {
	bySlug map[string]*catalog.Challenge
	demo   *catalog.Challenge
}

func newFakeChallenges(challenges ...*catalog.Challenge) *fakeChallenges {
	f := &fakeChallenges{bySlug: make(map[string]*catalog.Challenge)}
	for _, ch := range challenges {
		f.bySlug[ch.Slug] = ch
		if ch.Demo {
			f.demo = ch
		}
	}
	return f
}

func (f *fakeChallenges) Get(slug string) (*catalog.Challenge, bool) {
	ch, ok := f.bySlug[slug]
	return ch, ok
}

func (f *fakeChallenges) Demo() (*catalog.Challenge, bool) {
	if f.demo == nil {
		return nil, false
	}
	return f.demo, true
}

func testChallenge(slug string, xp int, keys ...string) *catalog.Challenge {
	ch := &catalog.Challenge{Slug: slug, Title: slug, XpReward: xp}
	for _, key := range keys {
		ch.Objectives = append(ch.Objectives, catalog.Objective{Key: key})
	}
	return ch
}

func progressKey(userID uuid.UUID, slug string) string {
	return userID.String() + "/" + slug
}

type fakeProgressRepo struct {
	rows map[string]*types.ChallengeProgress
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{rows: make(map[string]*types.ChallengeProgress)}
}

func (f *fakeProgressRepo) GetByUserAndChallenge(ctx context.Context, tx *gorm.DB, userID uuid.UUID, slug string) (*types.ChallengeProgress, error) {
	row, ok := f.rows[progressKey(userID, slug)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *row
	return &copied, nil
}

func (f *fakeProgressRepo) CreateIfAbsent(ctx context.Context, tx *gorm.DB, row *types.ChallengeProgress) (*types.ChallengeProgress, error) {
	key := progressKey(row.UserID, row.ChallengeSlug)
	if existing, ok := f.rows[key]; ok {
		copied := *existing
		return &copied, nil
	}
	copied := *row
	copied.ID = uuid.New()
	f.rows[key] = &copied
	out := copied
	return &out, nil
}

func (f *fakeProgressRepo) MarkCompleted(ctx context.Context, tx *gorm.DB, userID uuid.UUID, slug string, at time.Time) error {
	if row, ok := f.rows[progressKey(userID, slug)]; ok {
		row.Status = types.ProgressCompleted
		row.CompletedAt = &at
	}
	return nil
}

func (f *fakeProgressRepo) Restart(ctx context.Context, tx *gorm.DB, userID uuid.UUID, slug string, at time.Time) error {
	if row, ok := f.rows[progressKey(userID, slug)]; ok {
		row.Status = types.ProgressInProgress
		row.StartedAt = at
		row.CompletedAt = nil
	}
	return nil
}

func (f *fakeProgressRepo) Delete(ctx context.Context, tx *gorm.DB, userID uuid.UUID, slug string) error {
	delete(f.rows, progressKey(userID, slug))
	return nil
}

func (f *fakeProgressRepo) CountByUserAndStatus(ctx context.Context, tx *gorm.DB, userID uuid.UUID, status string) (int64, error) {
	var n int64
	for _, row := range f.rows {
		if row.UserID == userID && row.Status == status {
			n++
		}
	}
	return n, nil
}

func (f *fakeProgressRepo) CountByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	var n int64
	for _, row := range f.rows {
		if row.UserID == userID {
			n++
		}
	}
	return n, nil
}

type fakeCompletionRepo struct {
	rows map[string]*types.ChallengeCompletion
}

func newFakeCompletionRepo() *fakeCompletionRepo {
	return &fakeCompletionRepo{rows: make(map[string]*types.ChallengeCompletion)}
}

func completionKey(row *types.ChallengeCompletion) string {
	return row.UserID.String() + "/" + row.ChallengeSlug + "/" + row.CompletedOn
}

func (f *fakeCompletionRepo) Insert(ctx context.Context, tx *gorm.DB, row *types.ChallengeCompletion) error {
	key := completionKey(row)
	if _, ok := f.rows[key]; ok {
		return repos.ErrDuplicateCompletion
	}
	copied := *row
	f.rows[key] = &copied
	return nil
}

func (f *fakeCompletionRepo) CountByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	var n int64
	for _, row := range f.rows {
		if row.UserID == userID {
			n++
		}
	}
	return n, nil
}

type fakeXpRepo struct {
	rows []*types.XpTransaction
}

func (f *fakeXpRepo) Append(ctx context.Context, tx *gorm.DB, row *types.XpTransaction) error {
	copied := *row
	f.rows = append(f.rows, &copied)
	return nil
}

func (f *fakeXpRepo) TotalByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int, error) {
	total := 0
	for _, row := range f.rows {
		if row.UserID == userID {
			total += row.XpAmount
		}
	}
	return total, nil
}

type fakeOnboardingRepo struct {
	rows map[uuid.UUID]*types.OnboardingState
}

func newFakeOnboardingRepo() *fakeOnboardingRepo {
	return &fakeOnboardingRepo{rows: make(map[uuid.UUID]*types.OnboardingState)}
}

func (f *fakeOnboardingRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.OnboardingState, error) {
	row, ok := f.rows[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *row
	return &copied, nil
}

func (f *fakeOnboardingRepo) ensure(userID uuid.UUID) *types.OnboardingState {
	row, ok := f.rows[userID]
	if !ok {
		row = &types.OnboardingState{ID: uuid.New(), UserID: userID}
		f.rows[userID] = row
	}
	return row
}

func (f *fakeOnboardingRepo) UpsertCliLogin(ctx context.Context, tx *gorm.DB, userID uuid.UUID, version, osName, arch string, at time.Time) error {
	row := f.ensure(userID)
	row.CliAuthenticated = true
	row.CliAuthenticatedAt = &at
	row.CliVersion = version
	row.CliOS = osName
	row.CliArch = arch
	return nil
}

func (f *fakeOnboardingRepo) UpsertClusterInit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, at time.Time) error {
	row := f.ensure(userID)
	row.ClusterInitialized = true
	row.ClusterInitializedAt = &at
	return nil
}

func (f *fakeOnboardingRepo) UpsertCompleted(ctx context.Context, tx *gorm.DB, userID uuid.UUID, at time.Time) error {
	f.ensure(userID).CompletedAt = &at
	return nil
}

func (f *fakeOnboardingRepo) UpsertSkipped(ctx context.Context, tx *gorm.DB, userID uuid.UUID, at time.Time) error {
	f.ensure(userID).SkippedAt = &at
	return nil
}

type fakeApiTokenRepo struct {
	byDigest map[string]*types.ApiToken
	touched  []uuid.UUID
}

func newFakeApiTokenRepo(tokens ...*types.ApiToken) *fakeApiTokenRepo {
	f := &fakeApiTokenRepo{byDigest: make(map[string]*types.ApiToken)}
	for _, tok := range tokens {
		f.byDigest[tok.Digest] = tok
	}
	return f
}

func (f *fakeApiTokenRepo) GetByDigest(ctx context.Context, tx *gorm.DB, digest string) (*types.ApiToken, error) {
	tok, ok := f.byDigest[digest]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *tok
	return &copied, nil
}

func (f *fakeApiTokenRepo) CountByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	var n int64
	for _, tok := range f.byDigest {
		if tok.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeApiTokenRepo) TouchLastUsed(ctx context.Context, tx *gorm.DB, tokenID uuid.UUID, at time.Time) error {
	f.touched = append(f.touched, tokenID)
	return nil
}

type fakeUserRepo struct {
	byID map[uuid.UUID]*types.User
}

func newFakeUserRepo(users ...*types.User) *fakeUserRepo {
	f := &fakeUserRepo{byID: make(map[uuid.UUID]*types.User)}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUserRepo) GetByID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.User, error) {
	u, ok := f.byID[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *u
	return &copied, nil
}

// recordingEmitter captures every emitted message for assertions.
type recordingEmitter struct {
	messages []realtime.Message
}

func (e *recordingEmitter) Emit(ctx context.Context, msg realtime.Message) {
	e.messages = append(e.messages, msg)
}

func (e *recordingEmitter) byEvent(event realtime.Event) []realtime.Message {
	var out []realtime.Message
	for _, msg := range e.messages {
		if msg.Event == event {
			out = append(out, msg)
		}
	}
	return out
}

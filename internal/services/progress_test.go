package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/kubeasy-dev/kubeasy-backend/internal/apierr"
	"github.com/kubeasy-dev/kubeasy-backend/internal/catalog"
	"github.com/kubeasy-dev/kubeasy-backend/internal/realtime"
	"github.com/kubeasy-dev/kubeasy-backend/internal/types"
)

type progressFixture struct {
	svc         ProgressService
	progress    *fakeProgressRepo
	completions *fakeCompletionRepo
	xp          *fakeXpRepo
	emitted     *recordingEmitter
}

func newProgressFixture(t *testing.T, challenges ...*catalog.Challenge) *progressFixture {
	t.Helper()
	if len(challenges) == 0 {
		challenges = []*catalog.Challenge{testChallenge("pod-crashloop", 50, "pod-running", "logs-clean")}
	}
	f := &progressFixture{
		progress:    newFakeProgressRepo(),
		completions: newFakeCompletionRepo(),
		xp:          &fakeXpRepo{},
		emitted:     &recordingEmitter{},
	}
	f.svc = NewProgressService(
		nil,
		testLogger(t),
		newFakeChallenges(challenges...),
		f.progress,
		f.completions,
		f.xp,
		NewProgressNotifier(f.emitted),
	)
	return f
}

func assertApiErr(t *testing.T, err error, status int, code string) {
	t.Helper()
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected apierr, got %v", err)
	}
	if apiErr.Status != status || apiErr.Code != code {
		t.Fatalf("got %d %q, want %d %q", apiErr.Status, apiErr.Code, status, code)
	}
}

func TestProgress_StartUnknownChallenge(t *testing.T) {
	f := newProgressFixture(t)
	_, err := f.svc.Start(context.Background(), uuid.New(), "no-such-challenge")
	assertApiErr(t, err, 404, "challenge_not_found")
}

func TestProgress_StartIsIdempotent(t *testing.T) {
	f := newProgressFixture(t)
	userID := uuid.New()

	first, err := f.svc.Start(context.Background(), userID, "pod-crashloop")
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	if first.Status != types.ProgressInProgress {
		t.Fatalf("status = %q, want in_progress", first.Status)
	}

	second, err := f.svc.Start(context.Background(), userID, "pod-crashloop")
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if !second.StartedAt.Equal(*first.StartedAt) {
		t.Fatalf("retried start replaced startedAt: %v != %v", second.StartedAt, first.StartedAt)
	}
	if got := len(f.emitted.byEvent(realtime.EventChallengeStarted)); got != 2 {
		t.Fatalf("started events = %d, want 2", got)
	}
}

func TestProgress_StatusWithoutRow(t *testing.T) {
	f := newProgressFixture(t)
	state, err := f.svc.Status(context.Background(), uuid.New(), "pod-crashloop")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if state.Status != types.ProgressNotStarted {
		t.Fatalf("status = %q, want not_started", state.Status)
	}
	if state.StartedAt != nil || state.CompletedAt != nil {
		t.Fatal("not_started state must carry no timestamps")
	}
}

func TestProgress_SubmitMismatchRejectedWithoutMutation(t *testing.T) {
	f := newProgressFixture(t)
	userID := uuid.New()

	_, err := f.svc.Submit(context.Background(), userID, "pod-crashloop", results("pod-running", true, "bogus", true))
	var mismatch *ObjectiveMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected ObjectiveMismatchError, got %v", err)
	}
	if len(mismatch.Missing) != 1 || mismatch.Missing[0] != "logs-clean" {
		t.Fatalf("missing = %v", mismatch.Missing)
	}
	if len(mismatch.Unknown) != 1 || mismatch.Unknown[0] != "bogus" {
		t.Fatalf("unknown = %v", mismatch.Unknown)
	}
	if len(f.xp.rows) != 0 || len(f.completions.rows) != 0 {
		t.Fatal("a rejected submission must not mutate state")
	}
	if len(f.emitted.messages) != 0 {
		t.Fatal("a rejected submission must not emit validation updates")
	}
}

func TestProgress_SubmitFailedObjectiveKeepsInProgress(t *testing.T) {
	f := newProgressFixture(t)
	userID := uuid.New()
	if _, err := f.svc.Start(context.Background(), userID, "pod-crashloop"); err != nil {
		t.Fatalf("start: %v", err)
	}

	res, err := f.svc.Submit(context.Background(), userID, "pod-crashloop", results("pod-running", true, "logs-clean", false))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Success {
		t.Fatal("expected failed verdict")
	}
	if len(f.xp.rows) != 0 {
		t.Fatal("failed submission must not grant XP")
	}

	state, err := f.svc.Status(context.Background(), userID, "pod-crashloop")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if state.Status != types.ProgressInProgress {
		t.Fatalf("status = %q, want in_progress", state.Status)
	}
	// Failed objectives still reach any open tab.
	if got := len(f.emitted.byEvent(realtime.EventValidationUpdate)); got != 2 {
		t.Fatalf("validation updates = %d, want 2", got)
	}
}

func TestProgress_SubmitSuccessGrantsXpOnce(t *testing.T) {
	f := newProgressFixture(t)
	userID := uuid.New()
	winning := results("pod-running", true, "logs-clean", true)

	res, err := f.svc.Submit(context.Background(), userID, "pod-crashloop", winning)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.XpAwarded != 50 || res.TotalXp != 50 {
		t.Fatalf("xp = %d/%d, want 50/50", res.XpAwarded, res.TotalXp)
	}
	if !res.FirstChallenge {
		t.Fatal("expected FirstChallenge on the first ever completion")
	}
	if res.Rank != "novice" {
		t.Fatalf("rank = %q, want novice", res.Rank)
	}
	if got := len(f.emitted.byEvent(realtime.EventChallengeDone)); got != 1 {
		t.Fatalf("completed events = %d, want 1", got)
	}

	// Second winning submission the same day hits the daily ledger.
	_, err = f.svc.Submit(context.Background(), userID, "pod-crashloop", winning)
	assertApiErr(t, err, 409, "already_completed")
	if len(f.xp.rows) != 1 {
		t.Fatalf("xp transactions = %d, want 1", len(f.xp.rows))
	}
}

func TestProgress_SubmitWithoutStartCreatesRow(t *testing.T) {
	f := newProgressFixture(t)
	userID := uuid.New()

	res, err := f.svc.Submit(context.Background(), userID, "pod-crashloop", results("pod-running", true, "logs-clean", true))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Success {
		t.Fatal("expected success")
	}
	state, err := f.svc.Status(context.Background(), userID, "pod-crashloop")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if state.Status != types.ProgressCompleted {
		t.Fatalf("status = %q, want completed", state.Status)
	}
}

func TestProgress_SubmitEmptyResults(t *testing.T) {
	f := newProgressFixture(t)
	_, err := f.svc.Submit(context.Background(), uuid.New(), "pod-crashloop", nil)
	assertApiErr(t, err, 400, "empty_results")
}

func TestProgress_RankUpOnThreshold(t *testing.T) {
	f := newProgressFixture(t,
		testChallenge("warmup", 60, "a"),
		testChallenge("threshold", 60, "b"),
	)
	userID := uuid.New()

	first, err := f.svc.Submit(context.Background(), userID, "warmup", results("a", true))
	if err != nil {
		t.Fatalf("submit warmup: %v", err)
	}
	if first.RankUp {
		t.Fatal("60 XP must not rank up yet")
	}

	second, err := f.svc.Submit(context.Background(), userID, "threshold", results("b", true))
	if err != nil {
		t.Fatalf("submit threshold: %v", err)
	}
	if !second.RankUp || second.Rank != "explorer" {
		t.Fatalf("expected rank-up to explorer, got %+v", second)
	}
	if second.FirstChallenge {
		t.Fatal("second completion must not report FirstChallenge")
	}
}

func TestProgress_RestartAfterCompletionKeepsXp(t *testing.T) {
	f := newProgressFixture(t)
	userID := uuid.New()

	if _, err := f.svc.Submit(context.Background(), userID, "pod-crashloop", results("pod-running", true, "logs-clean", true)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	state, err := f.svc.Start(context.Background(), userID, "pod-crashloop")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if state.Status != types.ProgressInProgress {
		t.Fatalf("status = %q, want in_progress", state.Status)
	}
	if state.CompletedAt != nil {
		t.Fatal("restart must clear completedAt")
	}
	if len(f.xp.rows) != 1 {
		t.Fatal("restart must not touch the XP ledger")
	}
}

func TestProgress_ResetDeletesRowNotXp(t *testing.T) {
	f := newProgressFixture(t)
	userID := uuid.New()

	if _, err := f.svc.Submit(context.Background(), userID, "pod-crashloop", results("pod-running", true, "logs-clean", true)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := f.svc.Reset(context.Background(), userID, "pod-crashloop"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	state, err := f.svc.Status(context.Background(), userID, "pod-crashloop")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if state.Status != types.ProgressNotStarted {
		t.Fatalf("status = %q, want not_started", state.Status)
	}
	if len(f.xp.rows) != 1 {
		t.Fatal("reset must never claw back XP")
	}

	// Redoing the challenge the same day cannot double-grant.
	_, err = f.svc.Submit(context.Background(), userID, "pod-crashloop", results("pod-running", true, "logs-clean", true))
	assertApiErr(t, err, 409, "already_completed")
}

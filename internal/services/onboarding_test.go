package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/kubeasy-dev/kubeasy-backend/internal/realtime"
	"github.com/kubeasy-dev/kubeasy-backend/internal/types"
)

func TestDeriveStep(t *testing.T) {
	cases := []struct {
		name     string
		facts    OnboardingFacts
		complete bool
		want     int
	}{
		{"nothing", OnboardingFacts{}, false, 1},
		{"token", OnboardingFacts{HasApiToken: true}, false, 2},
		{"cli", OnboardingFacts{HasApiToken: true, CliAuthenticated: true}, false, 3},
		{"cluster", OnboardingFacts{HasApiToken: true, CliAuthenticated: true, ClusterInitialized: true}, false, 4},
		{"started", OnboardingFacts{HasApiToken: true, CliAuthenticated: true, ClusterInitialized: true, HasStartedChallenge: true}, false, 5},
		{"completed", OnboardingFacts{HasApiToken: true, CliAuthenticated: true, ClusterInitialized: true, HasStartedChallenge: true, HasCompletedChallenge: true}, false, 6},
		{"done", OnboardingFacts{}, true, 7},
		// A later milestone alone still wins: the step is the highest fact,
		// not a counter of consecutive ones.
		{"skipped ahead", OnboardingFacts{HasCompletedChallenge: true}, false, 6},
		{"cli without token", OnboardingFacts{CliAuthenticated: true}, false, 3},
	}
	for _, tc := range cases {
		if got := DeriveStep(tc.facts, tc.complete); got != tc.want {
			t.Errorf("%s: DeriveStep = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestDeriveStep_NeverMovesBackwards(t *testing.T) {
	// Accumulating facts one at a time must produce a non-decreasing step.
	steps := []func(f *OnboardingFacts){
		func(f *OnboardingFacts) { f.HasApiToken = true },
		func(f *OnboardingFacts) { f.CliAuthenticated = true },
		func(f *OnboardingFacts) { f.ClusterInitialized = true },
		func(f *OnboardingFacts) { f.HasStartedChallenge = true },
		func(f *OnboardingFacts) { f.HasCompletedChallenge = true },
	}
	var facts OnboardingFacts
	prev := DeriveStep(facts, false)
	for i, apply := range steps {
		apply(&facts)
		cur := DeriveStep(facts, false)
		if cur < prev {
			t.Fatalf("step decreased from %d to %d after fact %d", prev, cur, i)
		}
		prev = cur
	}
}

type onboardingFixture struct {
	svc      OnboardingService
	state    *fakeOnboardingRepo
	tokens   *fakeApiTokenRepo
	progress *fakeProgressRepo
	emitted  *recordingEmitter
}

func newOnboardingFixture(t *testing.T) *onboardingFixture {
	t.Helper()
	f := &onboardingFixture{
		state:    newFakeOnboardingRepo(),
		tokens:   newFakeApiTokenRepo(),
		progress: newFakeProgressRepo(),
		emitted:  &recordingEmitter{},
	}
	f.svc = NewOnboardingService(
		nil,
		testLogger(t),
		f.state,
		f.tokens,
		f.progress,
		newFakeCompletionRepo(),
		NewOnboardingNotifier(f.emitted),
	)
	return f
}

func TestOnboarding_GetStatusForNewUser(t *testing.T) {
	f := newOnboardingFixture(t)
	status, err := f.svc.GetStatus(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.CurrentStep != 1 {
		t.Fatalf("step = %d, want 1", status.CurrentStep)
	}
	if status.IsComplete || status.IsSkipped {
		t.Fatalf("fresh user flagged complete/skipped: %+v", status)
	}
}

func TestOnboarding_TrackCliLoginFirstTime(t *testing.T) {
	f := newOnboardingFixture(t)
	userID := uuid.New()

	first, err := f.svc.TrackCliLogin(context.Background(), userID, CliInfo{CliVersion: "1.4.0", OS: "linux", Arch: "amd64"})
	if err != nil {
		t.Fatalf("TrackCliLogin: %v", err)
	}
	if !first {
		t.Fatal("expected firstTime on the first login")
	}

	again, err := f.svc.TrackCliLogin(context.Background(), userID, CliInfo{CliVersion: "1.4.1", OS: "linux", Arch: "amd64"})
	if err != nil {
		t.Fatalf("second TrackCliLogin: %v", err)
	}
	if again {
		t.Fatal("repeat login must not be firstTime")
	}

	state, err := f.state.GetByUserID(context.Background(), nil, userID)
	if err != nil {
		t.Fatalf("GetByUserID: %v", err)
	}
	if state.CliVersion != "1.4.1" {
		t.Fatalf("cli version = %q, want the latest login's 1.4.1", state.CliVersion)
	}
	if got := len(f.emitted.byEvent(realtime.EventOnboardingUpdate)); got != 2 {
		t.Fatalf("onboarding updates = %d, want 2", got)
	}
}

func TestOnboarding_TrackClusterSetup(t *testing.T) {
	f := newOnboardingFixture(t)
	userID := uuid.New()

	first, err := f.svc.TrackClusterSetup(context.Background(), userID)
	if err != nil {
		t.Fatalf("TrackClusterSetup: %v", err)
	}
	if !first {
		t.Fatal("expected firstTime")
	}

	status, err := f.svc.GetStatus(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if !status.Steps.ClusterInitialized {
		t.Fatal("ClusterInitialized not reflected in status")
	}
	if status.CurrentStep != 4 {
		t.Fatalf("step = %d, want 4", status.CurrentStep)
	}
}

func TestOnboarding_StatusJoinsProgressAndTokens(t *testing.T) {
	f := newOnboardingFixture(t)
	userID := uuid.New()

	f.tokens.byDigest["d1"] = &types.ApiToken{ID: uuid.New(), UserID: userID, Digest: "d1"}
	if _, err := f.progress.CreateIfAbsent(context.Background(), nil, &types.ChallengeProgress{
		UserID:        userID,
		ChallengeSlug: "pod-crashloop",
		Status:        types.ProgressInProgress,
	}); err != nil {
		t.Fatalf("seed progress: %v", err)
	}

	status, err := f.svc.GetStatus(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if !status.Steps.HasApiToken || !status.Steps.HasStartedChallenge {
		t.Fatalf("facts not joined: %+v", status.Steps)
	}
	if status.Steps.HasCompletedChallenge {
		t.Fatal("no completion yet")
	}
	if status.CurrentStep != 5 {
		t.Fatalf("step = %d, want 5", status.CurrentStep)
	}
}

func TestOnboarding_CompleteAndSkip(t *testing.T) {
	f := newOnboardingFixture(t)
	userID := uuid.New()

	if err := f.svc.Complete(context.Background(), userID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	status, err := f.svc.GetStatus(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if !status.IsComplete || status.CurrentStep != 7 {
		t.Fatalf("expected complete at step 7, got %+v", status)
	}

	other := uuid.New()
	if err := f.svc.Skip(context.Background(), other); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	skipped, err := f.svc.GetStatus(context.Background(), other)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if !skipped.IsSkipped {
		t.Fatal("expected IsSkipped")
	}
	if skipped.IsComplete {
		t.Fatal("skip is not completion")
	}
}

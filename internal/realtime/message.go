package realtime

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Event string

const (
	EventConnected        Event = "connected"
	EventValidationUpdate Event = "validation.update"
	EventChallengeStarted Event = "challenge.started"
	EventChallengeDone    Event = "challenge.completed"
	EventDemoStarted      Event = "demo.started"
	EventDemoCompleted    Event = "demo.completed"
	EventOnboardingUpdate Event = "onboarding.updated"
)

// Message is the wire envelope delivered to browser clients. Channel is the
// subject key; unrelated users and challenges never share one.
type Message struct {
	Channel string `json:"channel"`
	Event   Event  `json:"event"`
	Data    any    `json:"data,omitempty"`
}

// ValidationUpdate is the Data payload of one objective outcome.
type ValidationUpdate struct {
	ObjectiveKey string    `json:"objectiveKey"`
	Passed       bool      `json:"passed"`
	Timestamp    time.Time `json:"timestamp"`
}

// ChallengeChannel names the per-(user, challenge) subject.
func ChallengeChannel(userID uuid.UUID, slug string) string {
	return fmt.Sprintf("%s:%s", userID, slug)
}

// OnboardingChannel names the per-user onboarding subject.
func OnboardingChannel(userID uuid.UUID) string {
	return fmt.Sprintf("onboarding:%s", userID)
}

// DemoChannel names the per-trial subject.
func DemoChannel(token string) string {
	return fmt.Sprintf("demo:%s", token)
}

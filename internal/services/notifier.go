package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/kubeasy-dev/kubeasy-backend/internal/clients/redis"
	"github.com/kubeasy-dev/kubeasy-backend/internal/logger"
	"github.com/kubeasy-dev/kubeasy-backend/internal/realtime"
	"github.com/kubeasy-dev/kubeasy-backend/internal/types"
)

// Notifiers are fire-and-forget: a nil receiver, nil emitter or failed
// publish is swallowed so side-channel delivery can never fail the
// submission that triggered it.

// =========================
// Progress notifier
// =========================

type ProgressNotifier interface {
	ChallengeStarted(userID uuid.UUID, slug string)
	ObjectiveValidated(userID uuid.UUID, slug string, result types.ObjectiveResult)
	ChallengeCompleted(userID uuid.UUID, slug string, xpAwarded, totalXp int, rank Rank)
}

type progressNotifier struct {
	emit Emitter
}

func NewProgressNotifier(emit Emitter) ProgressNotifier {
	return &progressNotifier{emit: emit}
}

func (n *progressNotifier) ChallengeStarted(userID uuid.UUID, slug string) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.Message{
		Channel: realtime.ChallengeChannel(userID, slug),
		Event:   realtime.EventChallengeStarted,
		Data:    map[string]any{"challenge": slug},
	})
}

func (n *progressNotifier) ObjectiveValidated(userID uuid.UUID, slug string, result types.ObjectiveResult) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.Message{
		Channel: realtime.ChallengeChannel(userID, slug),
		Event:   realtime.EventValidationUpdate,
		Data: realtime.ValidationUpdate{
			ObjectiveKey: result.ObjectiveKey,
			Passed:       result.Passed,
			Timestamp:    time.Now().UTC(),
		},
	})
}

func (n *progressNotifier) ChallengeCompleted(userID uuid.UUID, slug string, xpAwarded, totalXp int, rank Rank) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.Message{
		Channel: realtime.ChallengeChannel(userID, slug),
		Event:   realtime.EventChallengeDone,
		Data: map[string]any{
			"challenge": slug,
			"xpAwarded": xpAwarded,
			"totalXp":   totalXp,
			"rank":      rank.Name,
		},
	})
}

// =========================
// Onboarding notifier
// =========================

type OnboardingNotifier interface {
	OnboardingUpdated(userID uuid.UUID, status *OnboardingStatus)
}

type onboardingNotifier struct {
	emit Emitter
}

func NewOnboardingNotifier(emit Emitter) OnboardingNotifier {
	return &onboardingNotifier{emit: emit}
}

func (n *onboardingNotifier) OnboardingUpdated(userID uuid.UUID, status *OnboardingStatus) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.Message{
		Channel: realtime.OnboardingChannel(userID),
		Event:   realtime.EventOnboardingUpdate,
		Data:    status,
	})
}

// =========================
// Demo notifier
// =========================

// DemoNotifier appends to the per-token FIFO queue instead of the hub; the
// demo stream handler drains it on a fixed interval (pull-based delivery).
type DemoNotifier interface {
	DemoStarted(token string)
	ObjectiveValidated(token string, result types.ObjectiveResult)
	DemoCompleted(token string)
}

type demoNotifier struct {
	log   *logger.Logger
	queue redisclient.EventQueue
}

func NewDemoNotifier(log *logger.Logger, queue redisclient.EventQueue) DemoNotifier {
	return &demoNotifier{log: log.With("service", "DemoNotifier"), queue: queue}
}

func (n *demoNotifier) push(token string, event realtime.Event, data any) {
	if n == nil || n.queue == nil || token == "" {
		return
	}
	channel := realtime.DemoChannel(token)
	raw, err := json.Marshal(realtime.Message{Channel: channel, Event: event, Data: data})
	if err != nil {
		n.log.Warn("failed to marshal demo event", "event", event, "error", err)
		return
	}
	if err := n.queue.Push(context.Background(), channel, raw); err != nil {
		n.log.Warn("failed to enqueue demo event", "event", event, "error", err)
	}
}

func (n *demoNotifier) DemoStarted(token string) {
	n.push(token, realtime.EventDemoStarted, nil)
}

func (n *demoNotifier) ObjectiveValidated(token string, result types.ObjectiveResult) {
	n.push(token, realtime.EventValidationUpdate, realtime.ValidationUpdate{
		ObjectiveKey: result.ObjectiveKey,
		Passed:       result.Passed,
		Timestamp:    time.Now().UTC(),
	})
}

func (n *demoNotifier) DemoCompleted(token string) {
	n.push(token, realtime.EventDemoCompleted, nil)
}

package types

import "time"

// ObjectiveResult is one validation outcome submitted by the CLI. It is never
// stored verbatim; it only exists inside a submission payload.
type ObjectiveResult struct {
	ObjectiveKey string `json:"objectiveKey" binding:"required"`
	Passed       bool   `json:"passed"`
	Message      string `json:"message,omitempty"`
}

// Attribution is the marketing metadata attached to an anonymous demo session.
type Attribution struct {
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Campaign string `json:"campaign,omitempty"`
}

// DemoSession is the ephemeral, Redis-resident trial session. It is bound to
// its TTL and is not visible to any user identity until explicitly linked.
type DemoSession struct {
	Token       string      `json:"token"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Attribution Attribution `json:"attribution"`
}

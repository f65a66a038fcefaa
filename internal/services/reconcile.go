package services

import (
	"sort"

	"github.com/kubeasy-dev/kubeasy-backend/internal/types"
)

// Reconciliation is the verdict of comparing a submitted result set against
// the expected objective set. The check is all-or-nothing: a partial set is
// rejected outright and never produces partial completion state.
type Reconciliation struct {
	AllPassed bool
	Missing   []string
	Unknown   []string
}

// Mismatch reports whether the submission referenced a different objective
// set than the challenge defines (stale or malformed CLI payload).
func (r Reconciliation) Mismatch() bool {
	return len(r.Missing) > 0 || len(r.Unknown) > 0
}

// Reconcile is a pure function: expected − submitted ⇒ Missing, submitted −
// expected ⇒ Unknown, and AllPassed is the AND of every passed flag only when
// both differences are empty.
func Reconcile(expected []string, submitted []types.ObjectiveResult) Reconciliation {
	expectedSet := make(map[string]bool, len(expected))
	for _, key := range expected {
		expectedSet[key] = true
	}

	submittedSet := make(map[string]bool, len(submitted))
	allPassed := true
	var unknown []string
	for _, res := range submitted {
		// Every result's flag counts, even when a key is submitted twice: one
		// failed duplicate must never be masked by an earlier pass.
		if !res.Passed {
			allPassed = false
		}
		if submittedSet[res.ObjectiveKey] {
			continue
		}
		submittedSet[res.ObjectiveKey] = true
		if !expectedSet[res.ObjectiveKey] {
			unknown = append(unknown, res.ObjectiveKey)
		}
	}

	var missing []string
	for _, key := range expected {
		if !submittedSet[key] {
			missing = append(missing, key)
		}
	}

	sort.Strings(missing)
	sort.Strings(unknown)

	rec := Reconciliation{Missing: missing, Unknown: unknown}
	if !rec.Mismatch() {
		rec.AllPassed = allPassed
	}
	return rec
}

package service

import (
	"sync/atomic"
	"time"

	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/domain/policy"
)

// indexState is the immutable unit the index publishes. The policy set and
// its load warnings always swap together.
type indexState struct {
	set      *policy.PolicySet
	warnings []policy.LoadWarning
	loadedAt time.Time
}

// PolicyIndex publishes the active policy snapshot behind an atomic.Value.
// Readers on the hot path take the whole snapshot with a single atomic load
// and never observe a partially applied reload; a swap replaces everything
// at once.
type PolicyIndex struct {
	state atomic.Value // *indexState
}

// NewPolicyIndex creates an index seeded with the initial snapshot.
func NewPolicyIndex(set *policy.PolicySet, warnings []policy.LoadWarning) *PolicyIndex {
	idx := &PolicyIndex{}
	idx.Swap(set, warnings)
	return idx
}

// Current returns the active policy set. The returned snapshot is immutable;
// callers evaluate against it even if a swap happens mid-request.
func (i *PolicyIndex) Current() *policy.PolicySet {
	return i.state.Load().(*indexState).set
}

// Warnings returns the load warnings recorded with the active snapshot.
func (i *PolicyIndex) Warnings() []policy.LoadWarning {
	return i.state.Load().(*indexState).warnings
}

// LoadedAt returns when the active snapshot was published.
func (i *PolicyIndex) LoadedAt() time.Time {
	return i.state.Load().(*indexState).loadedAt
}

// Swap publishes a new snapshot and returns the fingerprint of the replaced
// one (empty on first publish). In-flight requests keep the snapshot they
// already loaded.
func (i *PolicyIndex) Swap(set *policy.PolicySet, warnings []policy.LoadWarning) string {
	if set == nil {
		set = &policy.PolicySet{}
	}
	prev := ""
	if old, ok := i.state.Load().(*indexState); ok {
		prev = old.set.Fingerprint
	}
	i.state.Store(&indexState{set: set, warnings: warnings, loadedAt: time.Now().UTC()})
	return prev
}

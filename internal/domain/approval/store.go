// Package approval holds the pending-approval lifecycle: a deferred tool
// call that a designated approver can release exactly once.
package approval

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/domain/policy"
)

// Status is the lifecycle state of a pending approval.
type Status string

const (
	// StatusPending awaits an explicit release.
	StatusPending Status = "pending"
	// StatusApproved is the transient state inside a release; it is never
	// observable because release transitions pending→approved→executed
	// under one critical section.
	StatusApproved Status = "approved"
	// StatusExecuted marks a spent approval. Terminal.
	StatusExecuted Status = "executed"
	// StatusExpired marks an approval released or swept past its TTL. Terminal.
	StatusExpired Status = "expired"
)

// DefaultTTL is how long an approval stays releasable.
const DefaultTTL = 15 * time.Minute

// defaultSweepInterval is the cadence of the background expiry sweeper.
const defaultSweepInterval = time.Minute

// PendingApproval is one deferred tool call, captured verbatim at decision
// time.
type PendingApproval struct {
	// ID is the approval token (UUIDv4).
	ID string `json:"id"`
	// AgentID, ParentAgent, Tool, Action, and Params are the captured request.
	AgentID     string         `json:"agent_id"`
	ParentAgent string         `json:"parent_agent,omitempty"`
	Tool        string         `json:"tool"`
	Action      string         `json:"action"`
	Params      map[string]any `json:"-"`
	// PermissionRef names the permission the approval was issued against.
	PermissionRef string `json:"permission_ref"`
	// Status is the current lifecycle state.
	Status Status `json:"status"`
	// CreatedAt is when the approval was registered (UTC).
	CreatedAt time.Time `json:"created_at"`
	// ApprovedBy records the approver on release.
	ApprovedBy string `json:"approved_by,omitempty"`
}

// request rebuilds the captured policy request for execution after release.
func (p *PendingApproval) request() policy.Request {
	return policy.Request{
		AgentID:     p.AgentID,
		ParentAgent: p.ParentAgent,
		Tool:        p.Tool,
		Action:      p.Action,
		Params:      p.Params,
	}
}

// ReleaseCode classifies the outcome of a Release call.
type ReleaseCode int

const (
	// ReleaseReady means the approval was atomically spent and the captured
	// request should now be executed by the caller.
	ReleaseReady ReleaseCode = iota
	// ReleaseNotFound means no approval exists for the id.
	ReleaseNotFound
	// ReleaseConflict means the approval was already in a terminal state.
	ReleaseConflict
	// ReleaseExpired means the approval outlived its TTL.
	ReleaseExpired
)

// ReleaseResult is the outcome of a Release call. Request is populated only
// for ReleaseReady; Status carries the current state for ReleaseConflict.
type ReleaseResult struct {
	Code    ReleaseCode
	Status  Status
	Request policy.Request
}

// Store holds pending approvals by id behind a single mutex. The release
// state machine runs entirely inside that mutex, which is what makes a
// replayed or concurrent release of the same id produce exactly one
// ReleaseReady.
type Store struct {
	mu      sync.Mutex
	entries map[string]*PendingApproval
	order   []string // insertion order, for stable admin listings
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides the default approval TTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source. Tests use this to drive expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates an empty approval store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*PendingApproval),
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured approval TTL.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Create registers a pending approval for the given request and returns the
// approval token. Params are captured verbatim.
func (s *Store) Create(req policy.Request, permissionRef string) string {
	p := &PendingApproval{
		ID:            uuid.New().String(),
		AgentID:       req.AgentID,
		ParentAgent:   req.ParentAgent,
		Tool:          req.Tool,
		Action:        req.Action,
		Params:        req.Params,
		PermissionRef: permissionRef,
		Status:        StatusPending,
		CreatedAt:     s.now().UTC(),
	}

	s.mu.Lock()
	s.entries[p.ID] = p
	s.order = append(s.order, p.ID)
	s.mu.Unlock()

	s.logger.Info("approval created",
		"approval_id", p.ID,
		"agent_id", p.AgentID,
		"tool", p.Tool,
		"action", p.Action,
	)
	return p.ID
}

// Release runs the approval state machine atomically:
//
//	not found            → ReleaseNotFound
//	status != pending    → ReleaseConflict{current status}
//	past TTL             → transition to expired, ReleaseExpired
//	otherwise            → pending→approved→executed, ReleaseReady{request}
//
// The executed transition happens before the tool adapter is invoked, so a
// failed adapter call leaves the approval spent rather than replayable.
func (s *Store) Release(id, approverID string) ReleaseResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.entries[id]
	if !ok {
		return ReleaseResult{Code: ReleaseNotFound}
	}
	if p.Status != StatusPending {
		return ReleaseResult{Code: ReleaseConflict, Status: p.Status}
	}
	if s.now().Sub(p.CreatedAt) > s.ttl {
		p.Status = StatusExpired
		return ReleaseResult{Code: ReleaseExpired, Status: StatusExpired}
	}

	p.Status = StatusApproved
	p.ApprovedBy = approverID
	p.Status = StatusExecuted

	return ReleaseResult{Code: ReleaseReady, Status: StatusExecuted, Request: p.request()}
}

// ListPending returns snapshot copies of all pending approvals in creation
// order. Captured params are not included.
func (s *Store) ListPending() []PendingApproval {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []PendingApproval
	for _, id := range s.order {
		p, ok := s.entries[id]
		if !ok || p.Status != StatusPending {
			continue
		}
		cp := *p
		cp.Params = nil
		out = append(out, cp)
	}
	return out
}

// Get returns a snapshot copy of the approval, if present.
func (s *Store) Get(id string) (PendingApproval, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.entries[id]
	if !ok {
		return PendingApproval{}, false
	}
	cp := *p
	cp.Params = nil
	return cp, true
}

// Sweep marks every pending approval past its TTL as expired and returns the
// number of transitions.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	expired := 0
	for _, p := range s.entries {
		if p.Status == StatusPending && now.Sub(p.CreatedAt) > s.ttl {
			p.Status = StatusExpired
			expired++
		}
	}
	return expired
}

// RunSweeper periodically sweeps expired approvals until ctx is cancelled.
// Intended to run on its own goroutine.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Info("approvals expired", "count", n)
			}
		}
	}
}

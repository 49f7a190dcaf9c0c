package throttle

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Operation names used in logs and fault reports.
const (
	opAdmit          = "admit"
	opRemaining      = "remaining"
	opResetTime      = "reset_time"
	opUserStats      = "user_stats"
	opCollectGarbage = "collect_garbage"
	opGlobalStats    = "global_stats"
)

// Throttle enforces per-user, per-category sliding window quotas.
//
// The zero value is not usable; construct one with New.
type Throttle struct {
	mu       sync.Mutex
	policies map[Category]Policy
	users    map[string]map[Category]*ledger

	activeHorizon time.Duration
	logger        *slog.Logger
	observer      Observer
}

// Option configures a Throttle.
type Option func(*Throttle)

// WithPolicies replaces the default policy table. Invalid entries make
// New panic; use SetPolicies to handle the error instead.
func WithPolicies(policies map[Category]Policy) Option {
	return func(t *Throttle) {
		if err := validatePolicies(policies); err != nil {
			panic(err)
		}
		t.policies = clonePolicies(policies)
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Throttle) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithObserver sets the event observer. Defaults to a no-op.
func WithObserver(o Observer) Option {
	return func(t *Throttle) {
		if o != nil {
			t.observer = o
		}
	}
}

// WithActiveHorizon sets the look-back window used by GlobalStats.
func WithActiveHorizon(d time.Duration) Option {
	return func(t *Throttle) {
		if d > 0 {
			t.activeHorizon = d
		}
	}
}

// New creates an empty throttle using DefaultPolicies unless overridden.
func New(opts ...Option) *Throttle {
	t := &Throttle{
		policies:      DefaultPolicies(),
		users:         make(map[string]map[Category]*ledger),
		activeHorizon: DefaultActiveHorizon,
		logger:        slog.Default(),
		observer:      nopObserver{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("component", "throttle")
	return t
}

// Admit records an attempt by userID in category at now and reports whether
// it may proceed. It is shorthand for Check(...).Allowed().
func (t *Throttle) Admit(userID string, category Category, now time.Time) bool {
	return t.Check(userID, category, now).Allowed()
}

// Check prunes the user's ledger for category, then admits and records the
// attempt if the ledger holds fewer than MaxRequests entries. Denied
// attempts are not recorded. Untracked categories yield OutcomeUnlimited.
func (t *Throttle) Check(userID string, category Category, now time.Time) Decision {
	var (
		d     Decision
		users int
	)
	err := t.safely(opAdmit, userID, category, func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		policy, ok := t.policies[category]
		if !ok {
			d = Decision{
				Outcome:   OutcomeUnlimited,
				Category:  category,
				Limit:     Unlimited,
				Remaining: Unlimited,
				ResetAt:   now,
			}
			return
		}

		l := t.ledgerLocked(userID, category)
		l.Prune(now, policy.Window)

		d = Decision{Category: category, Limit: policy.MaxRequests}
		if l.Len() >= policy.MaxRequests {
			d.Outcome = OutcomeDenied
		} else {
			l.Push(now)
			d.Outcome = OutcomeAdmitted
		}
		d.Remaining = max(policy.MaxRequests-l.Len(), 0)
		oldest, _ := l.Oldest()
		d.ResetAt = oldest.Add(policy.Window)
		users = len(t.users)
	})
	if err != nil {
		d = Decision{
			Outcome:  OutcomeFailOpen,
			Category: category,
			ResetAt:  now,
			Err:      err,
		}
	}

	t.observer.ObserveDecision(category, d.Outcome)
	if users > 0 {
		t.observer.ObserveRegistrySize(users)
	}
	if d.Outcome == OutcomeDenied {
		t.logger.Warn("rate limit exceeded",
			"user_id", userID,
			"category", category,
			"limit", d.Limit,
			"reset_at", d.ResetAt,
		)
	}
	return d
}

// Remaining returns how many more admissions userID has in category right
// now. It returns Unlimited for untracked categories and 0 on fault.
func (t *Throttle) Remaining(userID string, category Category, now time.Time) int {
	remaining := 0
	_ = t.safely(opRemaining, userID, category, func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		policy, ok := t.policies[category]
		if !ok {
			remaining = Unlimited
			return
		}
		l := t.ledgerLocked(userID, category)
		l.Prune(now, policy.Window)
		remaining = max(policy.MaxRequests-l.Len(), 0)
	})
	return remaining
}

// ResetTime returns when the oldest surviving admission in the user's
// ledger leaves the window. It returns now when the ledger is empty, the
// category is untracked, or a fault occurs.
func (t *Throttle) ResetTime(userID string, category Category, now time.Time) time.Time {
	reset := now
	_ = t.safely(opResetTime, userID, category, func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		policy, ok := t.policies[category]
		if !ok {
			return
		}
		l := t.ledgerLocked(userID, category)
		l.Prune(now, policy.Window)
		if oldest, ok := l.Oldest(); ok {
			reset = oldest.Add(policy.Window)
		}
	})
	return reset
}

// UserStats returns a quota snapshot of every tracked category for userID.
// It returns an empty map on fault.
func (t *Throttle) UserStats(userID string, now time.Time) map[Category]CategoryStats {
	var stats map[Category]CategoryStats
	err := t.safely(opUserStats, userID, "", func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		stats = make(map[Category]CategoryStats, len(t.policies))
		for category, policy := range t.policies {
			l := t.ledgerLocked(userID, category)
			l.Prune(now, policy.Window)

			reset := now
			if oldest, ok := l.Oldest(); ok {
				reset = oldest.Add(policy.Window)
			}
			stats[category] = CategoryStats{
				Limit:       policy.MaxRequests,
				Remaining:   max(policy.MaxRequests-l.Len(), 0),
				Used:        l.Len(),
				ResetAt:     reset,
				Description: policy.Description,
			}
		}
	})
	if err != nil {
		return map[Category]CategoryStats{}
	}
	return stats
}

// CollectGarbage prunes every ledger to maxAge, drops empty ledgers and
// drops users left without ledgers. It returns the number of users
// removed, or 0 on fault. A non-positive maxAge means DefaultMaxAge.
//
// A ledger whose category has a policy is never pruned below the policy
// window, so admissions that still count toward a quota survive even when
// maxAge is shorter than the window.
func (t *Throttle) CollectGarbage(now time.Time, maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	start := time.Now()

	removed, users := 0, 0
	err := t.safely(opCollectGarbage, "", "", func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		for userID, ledgers := range t.users {
			for category, l := range ledgers {
				age := maxAge
				if policy, ok := t.policies[category]; ok {
					age = max(age, policy.Window)
				}
				l.Prune(now, age)
				if l.Len() == 0 {
					delete(ledgers, category)
				}
			}
			if len(ledgers) == 0 {
				delete(t.users, userID)
				removed++
			}
		}
		users = len(t.users)
	})
	if err != nil {
		return 0
	}

	elapsed := time.Since(start)
	t.observer.ObserveGarbageCollected(removed, elapsed)
	t.observer.ObserveRegistrySize(users)
	t.logger.Info("collected inactive users",
		"removed", removed,
		"remaining_users", users,
		"max_age", maxAge,
		"duration_ms", elapsed.Milliseconds(),
	)
	return removed
}

// GlobalStats counts users and admissions inside the active horizon
// (24h unless configured). It returns zeros on fault.
func (t *Throttle) GlobalStats(now time.Time) GlobalStats {
	var gs GlobalStats
	err := t.safely(opGlobalStats, "", "", func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		cutoff := now.Add(-t.activeHorizon)
		gs.TotalUsers = len(t.users)
		for _, ledgers := range t.users {
			recent := 0
			for _, l := range ledgers {
				recent += l.CountSince(cutoff)
			}
			if recent > 0 {
				gs.ActiveUsers++
			}
			gs.TotalTrackedRequests += recent
		}
	})
	if err != nil {
		return GlobalStats{}
	}
	return gs
}

// Policies returns a copy of the current policy table.
func (t *Throttle) Policies() map[Category]Policy {
	t.mu.Lock()
	defer t.mu.Unlock()
	return clonePolicies(t.policies)
}

// Policy returns the policy for category, if it is tracked.
func (t *Throttle) Policy(category Category) (Policy, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.policies[category]
	return p, ok
}

// SetPolicies atomically replaces the policy table. Existing ledgers are
// kept; ledgers of categories no longer in the table are ignored until
// CollectGarbage reclaims them.
func (t *Throttle) SetPolicies(policies map[Category]Policy) error {
	if err := validatePolicies(policies); err != nil {
		return err
	}
	next := clonePolicies(policies)

	t.mu.Lock()
	t.policies = next
	t.mu.Unlock()

	t.logger.Info("policies updated", "categories", len(next))
	return nil
}

// ResetUser forgets every ledger of userID. It reports whether the user
// was present.
func (t *Throttle) ResetUser(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.users[userID]; !ok {
		return false
	}
	delete(t.users, userID)
	return true
}

// Len returns the number of users in the registry.
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.users)
}

// ledgerLocked returns the ledger for (userID, category), creating the
// user entry and the ledger if needed. t.mu must be held.
func (t *Throttle) ledgerLocked(userID string, category Category) *ledger {
	ledgers, ok := t.users[userID]
	if !ok {
		ledgers = make(map[Category]*ledger)
		t.users[userID] = ledgers
	}
	l, ok := ledgers[category]
	if !ok {
		l = newLedger()
		ledgers[category] = l
	}
	return l
}

// safely runs fn and converts a panic into an ErrInternalFault error. fn
// must release t.mu with defer so the lock is dropped while unwinding.
func (t *Throttle) safely(op, userID string, category Category, fn func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err = fmt.Errorf("%w: %s: %v", ErrInternalFault, op, r)
		t.logger.Error("throttle operation failed, failing open",
			"operation", op,
			"user_id", userID,
			"category", category,
			"error", err,
			"stack", string(debug.Stack()),
		)
		t.observer.ObserveFault(op)
	}()
	fn()
	return nil
}

func validatePolicies(policies map[Category]Policy) error {
	for category, p := range policies {
		if category == "" {
			return fmt.Errorf("%w: empty category name", ErrInvalidPolicy)
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("category %q: %w", category, err)
		}
	}
	return nil
}

func clonePolicies(policies map[Category]Policy) map[Category]Policy {
	out := make(map[Category]Policy, len(policies))
	for k, v := range policies {
		out[k] = v
	}
	return out
}

package throttle

import (
	"errors"
	"fmt"
	"time"
)

// Category names a class of costly operation with its own quota.
type Category string

const (
	// CategoryTextQuery covers general questions answered by the LLM.
	CategoryTextQuery Category = "text_query"

	// CategoryDocumentAnalysis covers uploaded document analyses.
	CategoryDocumentAnalysis Category = "document_analysis"
)

// Unlimited is reported as the remaining quota of an untracked category.
const Unlimited = -1

// DefaultActiveHorizon bounds the look-back used by GlobalStats.
const DefaultActiveHorizon = 24 * time.Hour

// DefaultMaxAge is used by CollectGarbage when no positive age is given.
const DefaultMaxAge = 24 * time.Hour

// Policy is the quota attached to a category.
type Policy struct {
	// MaxRequests is the number of admissions allowed inside Window.
	MaxRequests int `json:"max_requests" yaml:"max_requests"`

	// Window is the length of the sliding window.
	Window time.Duration `json:"window" yaml:"window"`

	// Description is a human readable summary such as "10 queries per hour".
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Validate reports whether the policy can be enforced.
func (p Policy) Validate() error {
	if p.MaxRequests <= 0 {
		return fmt.Errorf("%w: max requests must be positive, got %d", ErrInvalidPolicy, p.MaxRequests)
	}
	if p.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %s", ErrInvalidPolicy, p.Window)
	}
	return nil
}

// DefaultPolicies returns the built-in quota table.
func DefaultPolicies() map[Category]Policy {
	return map[Category]Policy{
		CategoryTextQuery: {
			MaxRequests: 10,
			Window:      time.Hour,
			Description: "10 queries per hour",
		},
		CategoryDocumentAnalysis: {
			MaxRequests: 3,
			Window:      24 * time.Hour,
			Description: "3 document analyses per day",
		},
	}
}

// Outcome classifies an admission decision.
type Outcome string

const (
	// OutcomeAdmitted means the request was within quota and was recorded.
	OutcomeAdmitted Outcome = "admitted"

	// OutcomeDenied means the quota is exhausted. Nothing was recorded.
	OutcomeDenied Outcome = "denied"

	// OutcomeUnlimited means the category has no policy and is not tracked.
	OutcomeUnlimited Outcome = "unlimited"

	// OutcomeFailOpen means an internal fault occurred and the request was
	// admitted without being recorded.
	OutcomeFailOpen Outcome = "fail_open"
)

// Decision is the result of an admission check.
type Decision struct {
	// Outcome classifies the decision.
	Outcome Outcome `json:"outcome"`

	// Category is the category that was checked.
	Category Category `json:"category"`

	// Limit is the category's MaxRequests, or Unlimited.
	Limit int `json:"limit"`

	// Remaining is the quota left after this decision, or Unlimited.
	Remaining int `json:"remaining"`

	// ResetAt is when the oldest recorded admission leaves the window.
	ResetAt time.Time `json:"reset_at"`

	// Err carries the recovered fault for OutcomeFailOpen.
	Err error `json:"-"`
}

// Allowed reports whether the caller may proceed.
func (d Decision) Allowed() bool {
	return d.Outcome != OutcomeDenied
}

// RetryAfter returns how long a denied caller should wait, relative to now.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Outcome != OutcomeDenied || !d.ResetAt.After(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

// CategoryStats is a per-category quota snapshot for one user.
type CategoryStats struct {
	Limit       int       `json:"limit"`
	Remaining   int       `json:"remaining"`
	Used        int       `json:"used"`
	ResetAt     time.Time `json:"reset_at"`
	Description string    `json:"description,omitempty"`
}

// GlobalStats summarizes the registry.
type GlobalStats struct {
	// TotalUsers is the number of users present in the registry.
	TotalUsers int `json:"total_users"`

	// ActiveUsers counts users with at least one admission inside the
	// active horizon.
	ActiveUsers int `json:"active_users"`

	// TotalTrackedRequests counts admissions inside the active horizon.
	TotalTrackedRequests int `json:"total_tracked_requests"`
}

// Errors returned by the throttle.
var (
	// ErrInvalidPolicy is returned when a policy cannot be enforced.
	ErrInvalidPolicy = errors.New("invalid throttle policy")

	// ErrInternalFault wraps faults recovered inside throttle operations.
	ErrInternalFault = errors.New("throttle internal fault")
)

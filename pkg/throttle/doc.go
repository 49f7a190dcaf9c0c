// Package throttle caps how often each user may invoke costly assistant
// operations.
//
// # Overview
//
// Usage is tracked per user and per category over a sliding window. Each
// category carries a static policy:
//
//   - text_query: 10 requests per hour
//   - document_analysis: 3 requests per day
//
// Categories without a policy are not tracked and are always admitted.
//
// # Architecture
//
// A Throttle owns a registry mapping user IDs to per-category ledgers. A
// ledger is a time-ordered queue of admission timestamps kept in a ring
// buffer, so appending and trimming expired entries are both amortized O(1).
// Ledgers are created on first touch and pruned before every read or write.
// Rejected attempts are never recorded.
//
// # Usage
//
//	th := throttle.New(throttle.WithLogger(logger))
//
//	if !th.Admit(userID, throttle.CategoryTextQuery, time.Now()) {
//	    reset := th.ResetTime(userID, throttle.CategoryTextQuery, time.Now())
//	    return fmt.Errorf("hourly query limit reached, retry at %s", reset)
//	}
//
//	// Memory reclamation, typically from the sweeper package.
//	removed := th.CollectGarbage(time.Now(), 24*time.Hour)
//
// Every operation takes the current time explicitly. Callers in production
// pass time.Now(); tests pass synthetic instants.
//
// # Fault Handling
//
// The throttle must never block a user because of its own bugs. Internal
// faults are recovered, logged and reported as OutcomeFailOpen, which
// admits the request. Read operations fall back to zero remaining and a
// reset time of now.
//
// # Thread Safety
//
// A single mutex guards the registry and is held across prune, decide and
// append, so concurrent admissions for the same user and category never
// exceed the limit.
package throttle

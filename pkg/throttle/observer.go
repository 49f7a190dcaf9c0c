package throttle

import "time"

// Observer receives throttle events, typically to export them as metrics.
// Implementations must be safe for concurrent use. Observers are called
// outside the registry lock.
type Observer interface {
	// ObserveDecision is called once per admission check.
	ObserveDecision(category Category, outcome Outcome)

	// ObserveFault is called when an operation recovers an internal fault.
	ObserveFault(operation string)

	// ObserveGarbageCollected is called after every collection pass.
	ObserveGarbageCollected(removed int, duration time.Duration)

	// ObserveRegistrySize reports the number of users currently tracked.
	ObserveRegistrySize(users int)
}

type nopObserver struct{}

func (nopObserver) ObserveDecision(Category, Outcome)          {}
func (nopObserver) ObserveFault(string)                        {}
func (nopObserver) ObserveGarbageCollected(int, time.Duration) {}
func (nopObserver) ObserveRegistrySize(int)                    {}

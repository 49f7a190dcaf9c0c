package throttle

import "time"

// minLedgerCapacity is the initial ring size. It must be a power of two.
const minLedgerCapacity = 4

// ledger is a time-ordered queue of admission timestamps.
//
// Entries live in a power-of-two ring buffer. push appends at the tail,
// prune drops an expired prefix from the head, and neither moves the
// remaining entries. The buffer only grows, which bounds it at the largest
// MaxRequests the category has seen.
type ledger struct {
	buf  []time.Time
	head int // index of the oldest entry
	size int
}

func newLedger() *ledger {
	return &ledger{buf: make([]time.Time, minLedgerCapacity)}
}

// Len returns the number of recorded timestamps.
func (l *ledger) Len() int {
	return l.size
}

// at returns the i-th oldest timestamp.
func (l *ledger) at(i int) time.Time {
	return l.buf[(l.head+i)&(len(l.buf)-1)]
}

// Oldest returns the first timestamp in the queue.
func (l *ledger) Oldest() (time.Time, bool) {
	if l.size == 0 {
		return time.Time{}, false
	}
	return l.buf[l.head], true
}

// Newest returns the last timestamp in the queue.
func (l *ledger) Newest() (time.Time, bool) {
	if l.size == 0 {
		return time.Time{}, false
	}
	return l.at(l.size - 1), true
}

// Push appends ts. A timestamp earlier than the newest entry is recorded
// as the newest entry so the queue stays ordered.
func (l *ledger) Push(ts time.Time) {
	if newest, ok := l.Newest(); ok && ts.Before(newest) {
		ts = newest
	}
	if l.size == len(l.buf) {
		l.grow()
	}
	l.buf[(l.head+l.size)&(len(l.buf)-1)] = ts
	l.size++
}

func (l *ledger) grow() {
	buf := make([]time.Time, len(l.buf)*2)
	for i := 0; i < l.size; i++ {
		buf[i] = l.at(i)
	}
	l.buf = buf
	l.head = 0
}

// Prune removes every timestamp older than maxAge relative to now and
// returns the number removed. An entry exactly maxAge old is kept.
func (l *ledger) Prune(now time.Time, maxAge time.Duration) int {
	removed := 0
	for l.size > 0 && now.Sub(l.buf[l.head]) > maxAge {
		l.buf[l.head] = time.Time{}
		l.head = (l.head + 1) & (len(l.buf) - 1)
		l.size--
		removed++
	}
	if l.size == 0 {
		l.head = 0
	}
	return removed
}

// CountSince returns how many timestamps are strictly newer than cutoff.
func (l *ledger) CountSince(cutoff time.Time) int {
	// Entries are ordered, so scan back from the tail.
	n := 0
	for i := l.size - 1; i >= 0; i-- {
		if !l.at(i).After(cutoff) {
			break
		}
		n++
	}
	return n
}

// Snapshot copies the timestamps oldest first.
func (l *ledger) Snapshot() []time.Time {
	out := make([]time.Time, l.size)
	for i := range out {
		out[i] = l.at(i)
	}
	return out
}

package throttle

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func newTestThrottle(opts ...Option) *Throttle {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(opts...)
}

// recordingObserver counts observer events.
type recordingObserver struct {
	mu        sync.Mutex
	decisions map[Outcome]int
	faults    map[string]int
	removed   int
	users     int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		decisions: make(map[Outcome]int),
		faults:    make(map[string]int),
	}
}

func (o *recordingObserver) ObserveDecision(_ Category, outcome Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decisions[outcome]++
}

func (o *recordingObserver) ObserveFault(op string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.faults[op]++
}

func (o *recordingObserver) ObserveGarbageCollected(removed int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.removed += removed
}

func (o *recordingObserver) ObserveRegistrySize(users int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.users = users
}

// ============================================================================
// Admission Tests
// ============================================================================

func TestAdmit_TextQueryLimit(t *testing.T) {
	th := newTestThrottle()

	for i := 0; i < 10; i++ {
		if !th.Admit("u1", CategoryTextQuery, epoch) {
			t.Fatalf("Expected admission %d to succeed", i+1)
		}
	}

	if th.Admit("u1", CategoryTextQuery, epoch) {
		t.Error("Expected 11th admission to be denied")
	}
	if got := th.Remaining("u1", CategoryTextQuery, epoch); got != 0 {
		t.Errorf("Expected 0 remaining, got %d", got)
	}
}

func TestAdmit_WindowExpiry(t *testing.T) {
	th := newTestThrottle()

	for i := 0; i < 10; i++ {
		th.Admit("u1", CategoryTextQuery, epoch)
	}
	// One more recorded later, still inside the next window.
	later := epoch.Add(3601 * time.Second)
	if !th.Admit("u1", CategoryTextQuery, later) {
		t.Fatal("Expected admission after window expiry")
	}

	for i := 0; i < 8; i++ {
		th.Admit("u1", CategoryTextQuery, later)
	}
	if got := th.Remaining("u1", CategoryTextQuery, later); got != 1 {
		t.Errorf("Expected 1 remaining, got %d", got)
	}
}

func TestAdmit_RemainingAfterWindow(t *testing.T) {
	th := newTestThrottle()

	for i := 0; i < 9; i++ {
		th.Admit("u1", CategoryTextQuery, epoch)
	}
	th.Admit("u1", CategoryTextQuery, epoch.Add(10*time.Minute))

	// The first nine have expired, the tenth is still in the window.
	got := th.Remaining("u1", CategoryTextQuery, epoch.Add(3601*time.Second))
	if got != 9 {
		t.Errorf("Expected 9 remaining, got %d", got)
	}
}

func TestAdmit_DocumentAnalysisLimit(t *testing.T) {
	th := newTestThrottle()

	for i := 0; i < 3; i++ {
		if !th.Admit("u1", CategoryDocumentAnalysis, epoch.Add(time.Duration(i)*time.Hour)) {
			t.Fatalf("Expected document analysis %d to be admitted", i+1)
		}
	}
	if th.Admit("u1", CategoryDocumentAnalysis, epoch.Add(23*time.Hour)) {
		t.Error("Expected 4th document analysis within a day to be denied")
	}

	// Entries exactly one window old still count.
	if th.Admit("u1", CategoryDocumentAnalysis, epoch.Add(24*time.Hour)) {
		t.Error("Expected denial while oldest entry is exactly one window old")
	}
	if !th.Admit("u1", CategoryDocumentAnalysis, epoch.Add(24*time.Hour+time.Second)) {
		t.Error("Expected admission once the oldest entry expired")
	}
}

func TestAdmit_UsersAreIndependent(t *testing.T) {
	th := newTestThrottle()

	for i := 0; i < 10; i++ {
		th.Admit("u1", CategoryTextQuery, epoch)
	}

	if !th.Admit("u2", CategoryTextQuery, epoch) {
		t.Error("Expected a different user to be admitted")
	}
	if got := th.Remaining("u2", CategoryTextQuery, epoch); got != 9 {
		t.Errorf("Expected 9 remaining for u2, got %d", got)
	}
}

func TestAdmit_CategoriesAreIndependent(t *testing.T) {
	th := newTestThrottle()

	for i := 0; i < 10; i++ {
		th.Admit("u1", CategoryTextQuery, epoch)
	}

	if !th.Admit("u1", CategoryDocumentAnalysis, epoch) {
		t.Error("Expected document analysis to be admitted with text quota exhausted")
	}
}

func TestAdmit_DeniedAttemptsNotRecorded(t *testing.T) {
	th := newTestThrottle()

	for i := 0; i < 15; i++ {
		th.Admit("u1", CategoryTextQuery, epoch)
	}

	if got := th.users["u1"][CategoryTextQuery].Len(); got != 10 {
		t.Errorf("Expected 10 recorded timestamps, got %d", got)
	}
}

func TestAdmit_UnknownCategoryFailsOpen(t *testing.T) {
	th := newTestThrottle()

	for i := 0; i < 100; i++ {
		if !th.Admit("u1", Category("voice_note"), epoch) {
			t.Fatalf("Expected unknown category to always be admitted (attempt %d)", i+1)
		}
	}

	if got := th.Remaining("u1", Category("voice_note"), epoch); got != Unlimited {
		t.Errorf("Expected %d remaining for unknown category, got %d", Unlimited, got)
	}
	if got := th.ResetTime("u1", Category("voice_note"), epoch); !got.Equal(epoch) {
		t.Errorf("Expected reset time now for unknown category, got %v", got)
	}
	if th.Len() != 0 {
		t.Errorf("Expected unknown category not to create users, got %d", th.Len())
	}
}

func TestCheck_Decision(t *testing.T) {
	th := newTestThrottle()

	d := th.Check("u1", CategoryDocumentAnalysis, epoch)
	if d.Outcome != OutcomeAdmitted {
		t.Fatalf("Expected outcome %q, got %q", OutcomeAdmitted, d.Outcome)
	}
	if d.Limit != 3 || d.Remaining != 2 {
		t.Errorf("Expected limit 3 remaining 2, got limit %d remaining %d", d.Limit, d.Remaining)
	}
	if !d.ResetAt.Equal(epoch.Add(24 * time.Hour)) {
		t.Errorf("Expected reset %v, got %v", epoch.Add(24*time.Hour), d.ResetAt)
	}

	th.Check("u1", CategoryDocumentAnalysis, epoch.Add(time.Hour))
	th.Check("u1", CategoryDocumentAnalysis, epoch.Add(2*time.Hour))

	now := epoch.Add(3 * time.Hour)
	d = th.Check("u1", CategoryDocumentAnalysis, now)
	if d.Outcome != OutcomeDenied {
		t.Fatalf("Expected outcome %q, got %q", OutcomeDenied, d.Outcome)
	}
	if d.Allowed() {
		t.Error("Expected denied decision not to be allowed")
	}
	if d.Remaining != 0 {
		t.Errorf("Expected 0 remaining, got %d", d.Remaining)
	}
	if got := d.RetryAfter(now); got != 21*time.Hour {
		t.Errorf("Expected retry after 21h, got %v", got)
	}

	d = th.Check("u1", Category("unknown"), now)
	if d.Outcome != OutcomeUnlimited || !d.Allowed() {
		t.Errorf("Expected allowed unlimited outcome, got %q", d.Outcome)
	}
	if d.RetryAfter(now) != 0 {
		t.Errorf("Expected no retry delay for unlimited outcome, got %v", d.RetryAfter(now))
	}
}

// ============================================================================
// Quota Query Tests
// ============================================================================

func TestRemaining_Monotone(t *testing.T) {
	th := newTestThrottle()

	prev := th.Remaining("u1", CategoryTextQuery, epoch)
	if prev != 10 {
		t.Fatalf("Expected 10 remaining for a new user, got %d", prev)
	}

	for i := 0; i < 12; i++ {
		th.Admit("u1", CategoryTextQuery, epoch)
		got := th.Remaining("u1", CategoryTextQuery, epoch)
		if got > prev {
			t.Fatalf("Remaining increased from %d to %d at the same instant", prev, got)
		}
		if got < 0 {
			t.Fatalf("Remaining went negative: %d", got)
		}
		prev = got
	}
}

func TestRemaining_MaterializesUser(t *testing.T) {
	th := newTestThrottle()

	th.Remaining("reader", CategoryTextQuery, epoch)

	if th.Len() != 1 {
		t.Errorf("Expected reading quota to register the user, got %d users", th.Len())
	}
	if gs := th.GlobalStats(epoch); gs.TotalUsers != 1 || gs.ActiveUsers != 0 {
		t.Errorf("Expected 1 present inactive user, got %+v", gs)
	}
}

func TestResetTime(t *testing.T) {
	th := newTestThrottle()

	if got := th.ResetTime("u1", CategoryTextQuery, epoch); !got.Equal(epoch) {
		t.Errorf("Expected reset now for empty ledger, got %v", got)
	}

	th.Admit("u1", CategoryTextQuery, epoch)
	th.Admit("u1", CategoryTextQuery, epoch.Add(30*time.Minute))

	now := epoch.Add(45 * time.Minute)
	if got := th.ResetTime("u1", CategoryTextQuery, now); !got.Equal(epoch.Add(time.Hour)) {
		t.Errorf("Expected reset %v, got %v", epoch.Add(time.Hour), got)
	}

	// After the first entry expires the second one drives the reset.
	now = epoch.Add(61 * time.Minute)
	if got := th.ResetTime("u1", CategoryTextQuery, now); !got.Equal(epoch.Add(90 * time.Minute)) {
		t.Errorf("Expected reset %v, got %v", epoch.Add(90*time.Minute), got)
	}
}

func TestUserStats(t *testing.T) {
	th := newTestThrottle()

	for i := 0; i < 4; i++ {
		th.Admit("u1", CategoryTextQuery, epoch)
	}
	th.Admit("u1", CategoryDocumentAnalysis, epoch)

	stats := th.UserStats("u1", epoch.Add(time.Minute))
	if len(stats) != 2 {
		t.Fatalf("Expected stats for 2 categories, got %d", len(stats))
	}

	text := stats[CategoryTextQuery]
	if text.Limit != 10 || text.Used != 4 || text.Remaining != 6 {
		t.Errorf("Unexpected text stats: %+v", text)
	}
	if !text.ResetAt.Equal(epoch.Add(time.Hour)) {
		t.Errorf("Expected text reset %v, got %v", epoch.Add(time.Hour), text.ResetAt)
	}
	if text.Description != "10 queries per hour" {
		t.Errorf("Unexpected description %q", text.Description)
	}

	doc := stats[CategoryDocumentAnalysis]
	if doc.Limit != 3 || doc.Used != 1 || doc.Remaining != 2 {
		t.Errorf("Unexpected document stats: %+v", doc)
	}

	fresh := th.UserStats("u2", epoch)
	if fresh[CategoryTextQuery].Remaining != 10 || !fresh[CategoryTextQuery].ResetAt.Equal(epoch) {
		t.Errorf("Unexpected stats for new user: %+v", fresh[CategoryTextQuery])
	}
}

// ============================================================================
// Garbage Collection & Global Stats Tests
// ============================================================================

func TestCollectGarbage_RemovesInactiveUsers(t *testing.T) {
	th := newTestThrottle()

	for i := 0; i < 100; i++ {
		th.Admit(fmt.Sprintf("user-%d", i), CategoryTextQuery, epoch)
	}

	removed := th.CollectGarbage(epoch.Add(25*time.Hour), 24*time.Hour)
	if removed != 100 {
		t.Errorf("Expected 100 users removed, got %d", removed)
	}
	if th.Len() != 0 {
		t.Errorf("Expected empty registry, got %d users", th.Len())
	}
}

func TestCollectGarbage_DocumentAnalysisUsers(t *testing.T) {
	th := newTestThrottle()

	for i := 0; i < 100; i++ {
		th.Admit(fmt.Sprintf("user-%d", i), CategoryDocumentAnalysis, epoch)
	}

	if removed := th.CollectGarbage(epoch.Add(24*time.Hour), 24*time.Hour); removed != 0 {
		t.Errorf("Expected nothing removed at exactly max age, got %d", removed)
	}
	if removed := th.CollectGarbage(epoch.Add(24*time.Hour+time.Second), 24*time.Hour); removed != 100 {
		t.Errorf("Expected 100 users removed, got %d", removed)
	}
	if th.Len() != 0 {
		t.Errorf("Expected empty registry, got %d users", th.Len())
	}
}

func TestCollectGarbage_KeepsEntriesInsideWindow(t *testing.T) {
	th := newTestThrottle()
	th.Admit("u2", CategoryTextQuery, epoch)

	// A reload widened the document window past the sweeper's max age and
	// dropped text_query.
	err := th.SetPolicies(map[Category]Policy{
		CategoryDocumentAnalysis: {MaxRequests: 3, Window: 48 * time.Hour},
	})
	if err != nil {
		t.Fatalf("SetPolicies failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		th.Admit("u1", CategoryDocumentAnalysis, epoch)
	}

	now := epoch.Add(30 * time.Hour)
	if th.Admit("u1", CategoryDocumentAnalysis, now) {
		t.Fatal("Expected quota exhausted before garbage collection")
	}

	// u2's ledger has no policy any more and only follows maxAge.
	if removed := th.CollectGarbage(now, 24*time.Hour); removed != 1 {
		t.Errorf("Expected only u2 removed, got %d", removed)
	}
	if th.Admit("u1", CategoryDocumentAnalysis, now) {
		t.Error("Expected quota to stay exhausted after garbage collection")
	}
	if got := th.Remaining("u1", CategoryDocumentAnalysis, now); got != 0 {
		t.Errorf("Expected 0 remaining, got %d", got)
	}

	if removed := th.CollectGarbage(epoch.Add(49*time.Hour), 24*time.Hour); removed != 1 {
		t.Errorf("Expected u1 removed after its window, got %d", removed)
	}
}

func TestCollectGarbage_KeepsActiveUsers(t *testing.T) {
	obs := newRecordingObserver()
	th := newTestThrottle(WithObserver(obs))

	th.Admit("stale", CategoryTextQuery, epoch)
	th.Admit("mixed", CategoryTextQuery, epoch)
	th.Admit("mixed", CategoryDocumentAnalysis, epoch.Add(20*time.Hour))
	th.Admit("fresh", CategoryTextQuery, epoch.Add(24*time.Hour))

	removed := th.CollectGarbage(epoch.Add(25*time.Hour), 24*time.Hour)
	if removed != 1 {
		t.Errorf("Expected 1 user removed, got %d", removed)
	}
	if th.Len() != 2 {
		t.Errorf("Expected 2 users left, got %d", th.Len())
	}
	if _, ok := th.users["mixed"][CategoryTextQuery]; ok {
		t.Error("Expected empty ledger to be dropped")
	}
	if obs.removed != 1 || obs.users != 2 {
		t.Errorf("Expected observer to see 1 removed and 2 users, got %d and %d", obs.removed, obs.users)
	}
}

func TestCollectGarbage_DefaultMaxAge(t *testing.T) {
	th := newTestThrottle()
	th.Admit("u1", CategoryTextQuery, epoch)

	if removed := th.CollectGarbage(epoch.Add(23*time.Hour), 0); removed != 0 {
		t.Errorf("Expected nothing removed within default age, got %d", removed)
	}
	if removed := th.CollectGarbage(epoch.Add(25*time.Hour), -time.Hour); removed != 1 {
		t.Errorf("Expected 1 removed past default age, got %d", removed)
	}
}

func TestGlobalStats(t *testing.T) {
	th := newTestThrottle()

	th.Admit("old", CategoryTextQuery, epoch)
	th.Admit("recent", CategoryTextQuery, epoch.Add(20*time.Hour))
	th.Admit("recent", CategoryDocumentAnalysis, epoch.Add(21*time.Hour))
	th.Admit("boundary", CategoryTextQuery, epoch.Add(time.Hour))

	gs := th.GlobalStats(epoch.Add(25 * time.Hour))
	if gs.TotalUsers != 3 {
		t.Errorf("Expected 3 total users, got %d", gs.TotalUsers)
	}
	// An entry exactly 24h old is not recent.
	if gs.ActiveUsers != 1 {
		t.Errorf("Expected 1 active user, got %d", gs.ActiveUsers)
	}
	if gs.TotalTrackedRequests != 2 {
		t.Errorf("Expected 2 tracked requests, got %d", gs.TotalTrackedRequests)
	}
}

// ============================================================================
// Policy Tests
// ============================================================================

func TestSetPolicies(t *testing.T) {
	th := newTestThrottle()

	th.Admit("u1", CategoryTextQuery, epoch)
	th.Admit("u1", CategoryTextQuery, epoch)

	err := th.SetPolicies(map[Category]Policy{
		CategoryTextQuery: {MaxRequests: 2, Window: time.Hour},
	})
	if err != nil {
		t.Fatalf("SetPolicies failed: %v", err)
	}

	if th.Admit("u1", CategoryTextQuery, epoch) {
		t.Error("Expected existing ledger to count against the new limit")
	}
	if got := th.Remaining("u1", CategoryDocumentAnalysis, epoch); got != Unlimited {
		t.Errorf("Expected removed category to be unlimited, got %d", got)
	}
	if _, ok := th.Policy(CategoryDocumentAnalysis); ok {
		t.Error("Expected document analysis policy to be removed")
	}
}

func TestSetPolicies_Invalid(t *testing.T) {
	th := newTestThrottle()

	tests := []struct {
		name     string
		policies map[Category]Policy
	}{
		{"zero max", map[Category]Policy{CategoryTextQuery: {MaxRequests: 0, Window: time.Hour}}},
		{"negative window", map[Category]Policy{CategoryTextQuery: {MaxRequests: 1, Window: -time.Second}}},
		{"empty name", map[Category]Policy{"": {MaxRequests: 1, Window: time.Hour}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := th.SetPolicies(tt.policies)
			if !errors.Is(err, ErrInvalidPolicy) {
				t.Errorf("Expected ErrInvalidPolicy, got %v", err)
			}
		})
	}

	if p, ok := th.Policy(CategoryTextQuery); !ok || p.MaxRequests != 10 {
		t.Errorf("Expected policies unchanged after rejected update, got %+v", p)
	}
}

func TestPolicies_ReturnsCopy(t *testing.T) {
	th := newTestThrottle()

	p := th.Policies()
	p[CategoryTextQuery] = Policy{MaxRequests: 1, Window: time.Second}

	if got, _ := th.Policy(CategoryTextQuery); got.MaxRequests != 10 {
		t.Errorf("Expected internal table unchanged, got %d", got.MaxRequests)
	}
}

func TestResetUser(t *testing.T) {
	th := newTestThrottle()

	for i := 0; i < 10; i++ {
		th.Admit("u1", CategoryTextQuery, epoch)
	}

	if !th.ResetUser("u1") {
		t.Fatal("Expected ResetUser to report a present user")
	}
	if th.ResetUser("u1") {
		t.Error("Expected second ResetUser to report absence")
	}
	if !th.Admit("u1", CategoryTextQuery, epoch) {
		t.Error("Expected admission after reset")
	}
}

// ============================================================================
// Fault Handling Tests
// ============================================================================

// corrupt plants a nil ledger so every access to it panics.
func corrupt(th *Throttle, userID string, category Category) {
	th.mu.Lock()
	defer th.mu.Unlock()
	th.users[userID] = map[Category]*ledger{category: nil}
}

func TestFaults_FailOpen(t *testing.T) {
	obs := newRecordingObserver()
	th := newTestThrottle(WithObserver(obs))
	corrupt(th, "u1", CategoryTextQuery)

	d := th.Check("u1", CategoryTextQuery, epoch)
	if d.Outcome != OutcomeFailOpen || !d.Allowed() {
		t.Errorf("Expected allowed fail-open outcome, got %q", d.Outcome)
	}
	if !errors.Is(d.Err, ErrInternalFault) {
		t.Errorf("Expected ErrInternalFault, got %v", d.Err)
	}

	if got := th.Remaining("u1", CategoryTextQuery, epoch); got != 0 {
		t.Errorf("Expected 0 remaining on fault, got %d", got)
	}
	if got := th.ResetTime("u1", CategoryTextQuery, epoch); !got.Equal(epoch) {
		t.Errorf("Expected reset now on fault, got %v", got)
	}
	if got := th.UserStats("u1", epoch); len(got) != 0 {
		t.Errorf("Expected empty stats on fault, got %+v", got)
	}
	if got := th.GlobalStats(epoch); got != (GlobalStats{}) {
		t.Errorf("Expected zero global stats on fault, got %+v", got)
	}
	if got := th.CollectGarbage(epoch, time.Hour); got != 0 {
		t.Errorf("Expected 0 collected on fault, got %d", got)
	}

	if obs.decisions[OutcomeFailOpen] != 1 {
		t.Errorf("Expected 1 fail-open decision observed, got %d", obs.decisions[OutcomeFailOpen])
	}
	if len(obs.faults) != 6 {
		t.Errorf("Expected faults from 6 operations, got %v", obs.faults)
	}

	// The lock must have been released by every failed operation.
	if !th.Admit("u2", CategoryTextQuery, epoch) {
		t.Error("Expected healthy user to be admitted after faults")
	}
}

// ============================================================================
// Concurrency Tests
// ============================================================================

func TestAdmit_ConcurrentSameUser(t *testing.T) {
	th := newTestThrottle(WithPolicies(map[Category]Policy{
		CategoryTextQuery: {MaxRequests: 3, Window: time.Hour},
	}))

	var wg sync.WaitGroup
	successCount := 0
	var mu sync.Mutex

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if th.Admit("u1", CategoryTextQuery, epoch) {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	if successCount != 3 {
		t.Errorf("Expected exactly 3 successes, got %d", successCount)
	}
}

func TestThrottle_ConcurrentMixedOperations(t *testing.T) {
	th := newTestThrottle()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", i%5)
			now := epoch.Add(time.Duration(i) * time.Second)
			th.Admit(user, CategoryTextQuery, now)
			th.Remaining(user, CategoryTextQuery, now)
			th.UserStats(user, now)
			th.GlobalStats(now)
			if i%10 == 0 {
				th.CollectGarbage(now, time.Hour)
			}
		}(i)
	}
	wg.Wait()

	gs := th.GlobalStats(epoch.Add(time.Minute))
	if gs.TotalTrackedRequests != 50 {
		t.Errorf("Expected 50 tracked requests, got %d", gs.TotalTrackedRequests)
	}
}

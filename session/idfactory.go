package session

import "sync"

// idFactory mints stable and initializing IDs for markers, generalizing
// tracker_factory.go's TrackedObjectFactory. The teacher's split
// instance-counter/global-counter pair (for cross-tracker-instance
// uniqueness across an application) has no analog here — a session
// drives exactly one camera stream — so this keeps only the
// instance-level counters, mutex-protected for parity with the
// teacher's concurrency discipline even though Session.Update is
// documented single-threaded (spec.md §5).
type idFactory struct {
	mu                sync.Mutex
	count             int
	initializingCount int
}

func newIDFactory() *idFactory {
	return &idFactory{}
}

func (f *idFactory) nextInitializing() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initializingCount++
	return f.initializingCount
}

func (f *idFactory) next() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	return f.count
}

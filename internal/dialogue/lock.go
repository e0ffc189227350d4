package dialogue

import "sync"

// DiscussionLocker gates round execution so at most one round is in flight
// per discussion. The caller acquires before invoking the orchestrator and
// releases when the round completes or fails.
type DiscussionLocker interface {
	// TryAcquire returns a release function when the lock was obtained,
	// or ok=false when a round is already running for the discussion.
	TryAcquire(discussionID string) (release func(), ok bool)
}

// LockManager is an in-process DiscussionLocker.
type LockManager struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLockManager creates an empty lock manager.
func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]struct{})}
}

// TryAcquire implements DiscussionLocker.
func (l *LockManager) TryAcquire(discussionID string) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, taken := l.held[discussionID]; taken {
		return nil, false
	}
	l.held[discussionID] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, discussionID)
			l.mu.Unlock()
		})
	}
	return release, true
}

package rewards

import "sync"

// issueLocks serializes ledger updates per issue. Entries are dropped once
// no caller holds or waits for them.
type issueLocks struct {
	mu    sync.Mutex
	locks map[string]*issueLock
}

type issueLock struct {
	mu   sync.Mutex
	refs int
}

// lock blocks until the caller holds issueID and returns the release func.
func (l *issueLocks) lock(issueID string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*issueLock)
	}
	il, ok := l.locks[issueID]
	if !ok {
		il = &issueLock{}
		l.locks[issueID] = il
	}
	il.refs++
	l.mu.Unlock()

	il.mu.Lock()
	return func() {
		il.mu.Unlock()

		l.mu.Lock()
		il.refs--
		if il.refs == 0 {
			delete(l.locks, issueID)
		}
		l.mu.Unlock()
	}
}

func (l *issueLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

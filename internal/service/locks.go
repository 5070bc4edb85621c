package service

import "sync"

// AccountLocker serializes token mutation per account. A refresh in flight
// for an account must not race a publish reading or rewriting the same
// token.
type AccountLocker struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewAccountLocker() *AccountLocker {
	return &AccountLocker{locks: make(map[int64]*sync.Mutex)}
}

func (l *AccountLocker) Lock(accountID int64) {
	l.mutexFor(accountID).Lock()
}

func (l *AccountLocker) Unlock(accountID int64) {
	l.mutexFor(accountID).Unlock()
}

func (l *AccountLocker) mutexFor(accountID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[accountID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[accountID] = m
	}
	return m
}

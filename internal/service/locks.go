package service

import "sync"

// auctionLocks is a mutex per auction id. Serialization is scoped per
// auction so unrelated auctions proceed fully in parallel; entries are
// reference-counted and dropped when the last holder releases.
type auctionLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newAuctionLocks() *auctionLocks {
	return &auctionLocks{entries: make(map[string]*lockEntry)}
}

// Lock blocks until the caller holds the exclusive lock for auctionID.
func (l *auctionLocks) Lock(auctionID string) {
	l.mu.Lock()
	entry, ok := l.entries[auctionID]
	if !ok {
		entry = &lockEntry{}
		l.entries[auctionID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
}

// Unlock releases the lock for auctionID.
func (l *auctionLocks) Unlock(auctionID string) {
	l.mu.Lock()
	entry := l.entries[auctionID]
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, auctionID)
	}
	l.mu.Unlock()

	entry.mu.Unlock()
}

package store

import "sync"

// ManualLocks serializes re-ingestion per manual id. The dual indexer
// holds a manual's lock across its delete+insert sequence; queries
// take no lock and read whatever consistent snapshot exists.
type ManualLocks struct {
	locks sync.Map // manual id -> *sync.Mutex
}

func NewManualLocks() *ManualLocks {
	return &ManualLocks{}
}

// Lock blocks until the manual's lock is held and returns the unlock.
func (l *ManualLocks) Lock(manualID string) func() {
	v, _ := l.locks.LoadOrStore(manualID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

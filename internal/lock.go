package internal

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 256

// KeyedMutex serializes read-modify-write cycles on per-user aggregates.
// Locks are striped: two users may share a stripe, which only ever costs
// extra serialization, never lost updates.
type KeyedMutex struct {
	stripes [lockStripes]sync.Mutex
}

// NewKeyedMutex returns an empty striped lock set.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{}
}

// Lock acquires the stripe for key and returns its unlock function.
func (m *KeyedMutex) Lock(key string) func() {
	stripe := &m.stripes[stripeIndex(key)]
	stripe.Lock()
	return stripe.Unlock
}

func stripeIndex(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % lockStripes
}

package chathub

import (
	"hash/fnv"
	"sync"
)

const stripeCount = 64

// stripedMutex serializes work per key without keeping per-key state around.
// Unrelated keys occasionally share a stripe, which only costs concurrency.
type stripedMutex struct {
	stripes [stripeCount]sync.Mutex
}

func (s *stripedMutex) forKey(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &s.stripes[h.Sum32()%stripeCount]
}

func (s *stripedMutex) Lock(key string)   { s.forKey(key).Lock() }
func (s *stripedMutex) Unlock(key string) { s.forKey(key).Unlock() }

package ratelimiter

import (
	"sync"
	"time"
)

const sweepInterval = time.Minute

type storedBucket struct {
	bucket    Bucket
	expiresAt time.Time
}

// InMemory is a process-local Store. Expired buckets are swept once a minute.
type InMemory struct {
	mu      sync.Mutex
	buckets map[string]storedBucket
	now     func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

func NewInMemory() *InMemory {
	s := &InMemory{
		buckets: make(map[string]storedBucket),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func (s *InMemory) Load(key string) (Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.buckets[key]
	if !ok || s.expired(stored) {
		return Bucket{}, ErrBucketNotFound
	}
	return stored.bucket, nil
}

func (s *InMemory) Save(key string, b Bucket, ttl time.Duration) error {
	stored := storedBucket{bucket: b}
	if ttl > 0 {
		stored.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.buckets[key] = stored
	s.mu.Unlock()
	return nil
}

func (s *InMemory) Delete(key string) error {
	s.mu.Lock()
	delete(s.buckets, key)
	s.mu.Unlock()
	return nil
}

// Len reports how many buckets are held, expired ones included until swept.
func (s *InMemory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

func (s *InMemory) expired(b storedBucket) bool {
	return !b.expiresAt.IsZero() && s.now().After(b.expiresAt)
}

func (s *InMemory) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

func (s *InMemory) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, b := range s.buckets {
		if s.expired(b) {
			delete(s.buckets, key)
		}
	}
}

func (s *InMemory) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

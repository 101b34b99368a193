package ratelimiter

import (
	"errors"
	"time"
)

var ErrBucketNotFound = errors.New("bucket not found")

// Bucket is the token bucket state of one source.
type Bucket struct {
	Tokens   int
	LastFill int64 // Unix milliseconds
}

// Store keeps buckets between requests. Implementations must be safe for
// concurrent use.
type Store interface {
	Load(key string) (Bucket, error)
	Save(key string, b Bucket, ttl time.Duration) error
	Delete(key string) error
	Close() error
}

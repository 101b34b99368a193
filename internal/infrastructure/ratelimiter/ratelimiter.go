package ratelimiter

import (
	"hash/fnv"
	"math"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	defaultNamespace = "http"
	defaultTTL       = 10 * time.Second
	lockStripes      = 256
)

type Limiter interface {
	Allow(sourceKey string) bool
	GetSourceKey(r *http.Request) string
	Remaining(sourceKey string) int
	GetMaxBurst() int
	// Forget drops the state kept for sourceKey.
	Forget(sourceKey string)
}

// RateLimiter is a token bucket per source key. Buckets start full and refill at
// MaxRatePerSecond up to MaxBurst. A source is a client address for HTTP
// requests and a connection id for WebSocket control messages.
type RateLimiter struct {
	ratePerMilli    float64
	maxBurst        int
	store           Store
	ttl             time.Duration
	namespace       string
	sourceHeaderKey string

	locks [lockStripes]sync.Mutex // striped by key hash
	now   func() time.Time
}

type Options struct {
	MaxRatePerSecond int
	MaxBurst         int
	Store            Store
	// TTL bounds how long an idle bucket is kept.
	TTL time.Duration
	// Namespace separates limiters that share one Store.
	Namespace string
	// SourceHeaderKey names a header set by a trusted gateway. When empty the
	// client IP is the source.
	SourceHeaderKey string
}

func New(options Options) *RateLimiter {
	if options.Store == nil {
		options.Store = NewInMemory()
	}
	if options.TTL <= 0 {
		options.TTL = defaultTTL
	}
	if options.MaxRatePerSecond <= 0 {
		options.MaxRatePerSecond = 1
	}
	if options.MaxBurst <= 0 {
		options.MaxBurst = options.MaxRatePerSecond
	}
	if options.Namespace == "" {
		options.Namespace = defaultNamespace
	}

	return &RateLimiter{
		ratePerMilli:    float64(options.MaxRatePerSecond) / 1000,
		maxBurst:        options.MaxBurst,
		store:           options.Store,
		ttl:             options.TTL,
		namespace:       options.Namespace,
		sourceHeaderKey: options.SourceHeaderKey,
		now:             time.Now,
	}
}

func (rl *RateLimiter) key(sourceKey string) string {
	return "rl:" + rl.namespace + ":" + sourceKey
}

func (rl *RateLimiter) lock(sourceKey string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sourceKey))
	mu := &rl.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// load fails open: a missing or unreadable bucket counts as full.
func (rl *RateLimiter) load(sourceKey string, now int64) Bucket {
	b, err := rl.store.Load(rl.key(sourceKey))
	if err != nil {
		return Bucket{Tokens: rl.maxBurst, LastFill: now}
	}
	return b
}

func (rl *RateLimiter) save(sourceKey string, b Bucket) {
	_ = rl.store.Save(rl.key(sourceKey), b, rl.ttl)
}

// refill adds the whole tokens earned since LastFill. LastFill only advances by
// the time those tokens account for, so fractions carry over to the next call.
func (rl *RateLimiter) refill(b Bucket, now int64) Bucket {
	elapsed := now - b.LastFill
	if elapsed <= 0 {
		return b
	}

	earned := math.Floor(float64(elapsed) * rl.ratePerMilli)
	if earned < 1 {
		return b
	}

	if b.Tokens+int(earned) >= rl.maxBurst {
		return Bucket{Tokens: rl.maxBurst, LastFill: now}
	}

	return Bucket{
		Tokens:   b.Tokens + int(earned),
		LastFill: b.LastFill + int64(math.Round(earned/rl.ratePerMilli)),
	}
}

func (rl *RateLimiter) Allow(sourceKey string) bool {
	defer rl.lock(sourceKey)()

	now := rl.now().UnixMilli()
	current := rl.load(sourceKey, now)
	next := rl.refill(current, now)

	allowed := next.Tokens > 0
	if allowed {
		next.Tokens--
	}
	if allowed || next != current {
		rl.save(sourceKey, next)
	}
	return allowed
}

func (rl *RateLimiter) Remaining(sourceKey string) int {
	defer rl.lock(sourceKey)()

	now := rl.now().UnixMilli()
	current := rl.load(sourceKey, now)
	next := rl.refill(current, now)
	if next != current {
		rl.save(sourceKey, next)
	}
	return next.Tokens
}

func (rl *RateLimiter) GetMaxBurst() int {
	return rl.maxBurst
}

func (rl *RateLimiter) Forget(sourceKey string) {
	defer rl.lock(sourceKey)()
	_ = rl.store.Delete(rl.key(sourceKey))
}

// GetSourceKey returns the configured gateway header when present, otherwise the
// client IP. RemoteAddr is expected to be resolved by chi's RealIP already, so
// its port is dropped to keep one bucket per host.
func (rl *RateLimiter) GetSourceKey(r *http.Request) string {
	if rl.sourceHeaderKey != "" {
		if key := r.Header.Get(rl.sourceHeaderKey); key != "" {
			return key
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package ratelimiter

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisOpTimeout = 500 * time.Millisecond

	tokensField   = "tokens"
	lastFillField = "fill"
)

// Redis keeps each bucket in a hash so every instance behind a load balancer
// shares one budget per source.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Load(key string) (Bucket, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return Bucket{}, err
	}
	if len(fields) == 0 {
		return Bucket{}, ErrBucketNotFound
	}

	tokens, err := strconv.Atoi(fields[tokensField])
	if err != nil {
		return Bucket{}, ErrBucketNotFound
	}
	lastFill, err := strconv.ParseInt(fields[lastFillField], 10, 64)
	if err != nil {
		return Bucket{}, ErrBucketNotFound
	}

	return Bucket{Tokens: tokens, LastFill: lastFill}, nil
}

func (r *Redis) Save(key string, b Bucket, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, tokensField, b.Tokens, lastFillField, b.LastFill)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	return err
}

func (r *Redis) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	return r.client.Del(ctx, key).Err()
}

// Close is a no-op; the client is owned by the caller.
func (r *Redis) Close() error {
	return nil
}

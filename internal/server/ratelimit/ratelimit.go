// Package ratelimit implements the Redis-backed sign-in throttle: a
// per-email failed-attempt counter with a sliding expiry window.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mikhailbahdashych/identity-core/internal/common"
)

const keyPrefix = "signin:fail:"

// SignInLimiter counts failed sign-in attempts per email in Redis. Once the
// counter reaches maxAttempts, further attempts are rejected until the
// window expires or a successful sign-in resets the counter.
type SignInLimiter struct {
	client      *redis.Client
	maxAttempts int64
	window      time.Duration
}

func NewSignInLimiter(client *redis.Client, maxAttempts int64, window time.Duration) *SignInLimiter {
	return &SignInLimiter{client: client, maxAttempts: maxAttempts, window: window}
}

// Check returns common.ErrorRateLimited when the email has exhausted its
// attempts. A missing counter means no recorded failures.
func (l *SignInLimiter) Check(ctx context.Context, email string) error {
	count, err := l.client.Get(ctx, keyPrefix+email).Int64()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if count >= l.maxAttempts {
		return common.ErrorRateLimited
	}
	return nil
}

// RecordFailure increments the email's counter, starting the expiry window
// on the first failure.
func (l *SignInLimiter) RecordFailure(ctx context.Context, email string) error {
	count, err := l.client.Incr(ctx, keyPrefix+email).Result()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, keyPrefix+email, l.window).Err(); err != nil {
			return fmt.Errorf("redis error: %w", err)
		}
	}
	return nil
}

// Reset clears the email's counter after a successful sign-in.
func (l *SignInLimiter) Reset(ctx context.Context, email string) error {
	if err := l.client.Del(ctx, keyPrefix+email).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// CooldownStore persists provider cooldown deadlines so restarts do not
// forget an active rate-limit window. Implementations live in pkg/store.
type CooldownStore interface {
	// CooldownDeadline returns the persisted reset instant for a
	// (provider, model) pair, or the zero time when none is recorded.
	CooldownDeadline(ctx context.Context, provider, model string) (time.Time, error)

	// SaveCooldown records the reset instant for a (provider, model) pair,
	// replacing any previous record.
	SaveCooldown(ctx context.Context, provider, model string, resetAt time.Time) error
}

// acquirePollInterval is how often a blocked Acquire rechecks the bucket.
const acquirePollInterval = 100 * time.Millisecond

// RateLimiter is a token bucket with an overriding cooldown deadline.
//
// The bucket refills continuously at requestsPerMinute/60 tokens per second
// up to a capacity of requestsPerMinute, so a full bucket absorbs a burst
// while the long-run rate stays at the configured limit. When the provider
// advertises a reset instant via SetCooldown, Acquire blocks until that
// instant regardless of available tokens.
type RateLimiter struct {
	provider string
	model    string
	store    CooldownStore // nil when persistence is disabled

	mu            sync.Mutex
	tokens        float64
	capacity      float64
	refillPerSec  float64
	lastRefill    time.Time
	cooldownUntil time.Time

	// now is stubbed in tests.
	now func() time.Time
}

// NewRateLimiter builds a limiter for one (provider, model) pair. The bucket
// starts full. store may be nil.
func NewRateLimiter(provider, model string, requestsPerMinute int, store CooldownStore) *RateLimiter {
	if requestsPerMinute < 1 {
		requestsPerMinute = 1
	}
	return &RateLimiter{
		provider:     provider,
		model:        model,
		store:        store,
		tokens:       float64(requestsPerMinute),
		capacity:     float64(requestsPerMinute),
		refillPerSec: float64(requestsPerMinute) / 60.0,
		lastRefill:   time.Now(),
		now:          time.Now,
	}
}

// restore loads a persisted cooldown deadline, if any. Called once at
// construction by the Coordinator; a storage error only costs the persisted
// deadline, never the limiter.
func (r *RateLimiter) restore(ctx context.Context) {
	if r.store == nil {
		return
	}
	resetAt, err := r.store.CooldownDeadline(ctx, r.provider, r.model)
	if err != nil {
		slog.Warn("Failed to restore persisted cooldown",
			"provider", r.provider, "model", r.model, "error", err)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if resetAt.After(r.now()) {
		r.cooldownUntil = resetAt
		slog.Info("Restored provider cooldown",
			"provider", r.provider, "model", r.model, "reset_at", resetAt)
	}
}

// Acquire blocks until a token is available and no cooldown is active, or
// until ctx is done. It consumes one token on success.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	for {
		wait := r.tryAcquire()
		if wait <= 0 {
			return nil
		}
		if wait > acquirePollInterval {
			wait = acquirePollInterval
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limiter wait aborted: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// tryAcquire consumes a token if one is available and no cooldown is active.
// It returns 0 on success, otherwise the suggested wait before retrying.
func (r *RateLimiter) tryAcquire() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.cooldownUntil.After(now) {
		return r.cooldownUntil.Sub(now)
	}
	r.refillLocked(now)
	if r.tokens >= 1 {
		r.tokens--
		return 0
	}
	// Time until one full token accrues.
	deficit := 1 - r.tokens
	return time.Duration(deficit / r.refillPerSec * float64(time.Second))
}

func (r *RateLimiter) refillLocked(now time.Time) {
	elapsed := now.Sub(r.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	r.tokens += elapsed * r.refillPerSec
	if r.tokens > r.capacity {
		r.tokens = r.capacity
	}
	r.lastRefill = now
}

// SetCooldown records a provider-advertised reset instant. An earlier instant
// never shortens an active cooldown. The deadline is persisted when a store
// is attached; persistence failures are logged and ignored.
func (r *RateLimiter) SetCooldown(ctx context.Context, resetAt time.Time) {
	r.mu.Lock()
	if resetAt.After(r.cooldownUntil) {
		r.cooldownUntil = resetAt
	}
	r.mu.Unlock()

	slog.Warn("Provider rate limit hit, entering cooldown",
		"provider", r.provider, "model", r.model, "reset_at", resetAt)

	if r.store != nil {
		if err := r.store.SaveCooldown(ctx, r.provider, r.model, resetAt); err != nil {
			slog.Warn("Failed to persist cooldown",
				"provider", r.provider, "model", r.model, "error", err)
		}
	}
}

// CooldownUntil returns the active cooldown deadline, or the zero time.
func (r *RateLimiter) CooldownUntil() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cooldownUntil
}

// Coordinator hands out one shared RateLimiter per (provider, model) pair so
// every client of the same upstream model draws from the same bucket.
type Coordinator struct {
	store CooldownStore

	mu       sync.Mutex
	limiters map[string]*RateLimiter
}

// NewCoordinator builds a coordinator. store may be nil to disable cooldown
// persistence.
func NewCoordinator(store CooldownStore) *Coordinator {
	return &Coordinator{
		store:    store,
		limiters: make(map[string]*RateLimiter),
	}
}

// Limiter returns the shared limiter for a (provider, model) pair, creating
// and restoring it on first use. requestsPerMinute only applies on creation.
func (c *Coordinator) Limiter(ctx context.Context, provider, model string, requestsPerMinute int) *RateLimiter {
	key := provider + "/" + model

	c.mu.Lock()
	limiter, ok := c.limiters[key]
	if !ok {
		limiter = NewRateLimiter(provider, model, requestsPerMinute, c.store)
		c.limiters[key] = limiter
	}
	c.mu.Unlock()

	if !ok {
		limiter.restore(ctx)
	}
	return limiter
}

package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	ActionSendMessage = "send_message"
	ActionCreateChat  = "create_chat"
	ActionReaction    = "reaction"
	ActionTyping      = "typing"
	ActionAuth        = "auth"
)

// Policy is a token bucket: Events per Per, bursting up to Burst.
type Policy struct {
	Events int
	Per    time.Duration
	Burst  int
}

func (p Policy) limit() rate.Limit {
	return rate.Every(p.Per / time.Duration(p.Events))
}

// DefaultPolicies returns the per-action limits used by the server.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		ActionSendMessage: {Events: 10, Per: time.Minute, Burst: 10},
		ActionCreateChat:  {Events: 20, Per: time.Minute, Burst: 20},
		ActionReaction:    {Events: 30, Per: time.Minute, Burst: 30},
		ActionTyping:      {Events: 1, Per: time.Second, Burst: 5},
		ActionAuth:        {Events: 5, Per: time.Minute, Burst: 5},
	}
}

var defaultPolicy = Policy{Events: 20, Per: time.Minute, Burst: 20}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one bucket per subject:action pair.
type RateLimiter struct {
	policies map[string]Policy
	buckets  map[string]*bucket
	mutex    sync.Mutex
	idleTTL  time.Duration
}

func NewRateLimiter(policies map[string]Policy) *RateLimiter {
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &RateLimiter{
		policies: policies,
		buckets:  make(map[string]*bucket),
		idleTTL:  time.Hour,
	}
}

// Allow consumes one token for subject performing action. When refused it
// returns how long until the next token is available.
func (rl *RateLimiter) Allow(subject, action string) (bool, time.Duration) {
	key := subject + ":" + action
	now := time.Now()

	rl.mutex.Lock()
	b, exists := rl.buckets[key]
	if !exists {
		policy, ok := rl.policies[action]
		if !ok {
			policy = defaultPolicy
		}
		b = &bucket{limiter: rate.NewLimiter(policy.limit(), policy.Burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mutex.Unlock()

	if b.limiter.AllowN(now, 1) {
		return true, 0
	}

	r := b.limiter.ReserveN(now, 1)
	wait := r.DelayFrom(now)
	r.CancelAt(now)
	return false, wait
}

// Cleanup drops buckets idle for longer than the idle TTL.
func (rl *RateLimiter) Cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.idleTTL {
			delete(rl.buckets, key)
		}
	}
}

func (rl *RateLimiter) Size() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return len(rl.buckets)
}

// Run cleans up periodically until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

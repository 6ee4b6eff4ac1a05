package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ledger remembers which deliveries were reminded recently.
// Claim returns true when the caller may send now, and records the claim
// for cooldown.
type Ledger interface {
	Claim(ctx context.Context, deliveryID string, cooldown time.Duration) (bool, error)
}

// MemoryLedger is a process-local Ledger.
type MemoryLedger struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (l *MemoryLedger) Claim(ctx context.Context, deliveryID string, cooldown time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if until, ok := l.expires[deliveryID]; ok && now.Before(until) {
		return false, nil
	}
	l.expires[deliveryID] = now.Add(cooldown)

	for id, until := range l.expires {
		if !now.Before(until) {
			delete(l.expires, id)
		}
	}
	return true, nil
}

const redisKeyPrefix = "dispatch:reminder:"

// RedisLedger shares claims across instances with SET NX and a TTL.
type RedisLedger struct {
	client redis.UniversalClient
}

func NewRedisLedger(client redis.UniversalClient) *RedisLedger {
	return &RedisLedger{client: client}
}

// NewRedisClient builds the single-node client used for the ledger.
func NewRedisClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
}

func (l *RedisLedger) Claim(ctx context.Context, deliveryID string, cooldown time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, redisKeyPrefix+deliveryID, time.Now().UTC().Unix(), cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder for %s: %w", deliveryID, err)
	}
	return ok, nil
}

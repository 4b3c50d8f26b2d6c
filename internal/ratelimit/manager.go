package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisBreakerDuration = 30 * time.Second

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

// RedisSettings configures the optional distributed backend.
type RedisSettings struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Manager owns the per-policy windows and enforces admissions. Policies are
// fixed at construction; an unknown policy name is a configuration error.
type Manager struct {
	policies       map[string]Policy
	nowFn          func() time.Time
	redisSettings  RedisSettings
	newRedisClient RedisClientFactory

	mu           sync.Mutex
	windows      map[string]*window
	redisLimiter *RedisLimiter
	breakerUntil time.Time
}

// NewManager constructs a Manager with default dependencies when nil.
func NewManager(policies map[string]Policy, redisSettings RedisSettings, nowFn func() time.Time, newRedisClient RedisClientFactory) (*Manager, error) {
	if nowFn == nil {
		nowFn = time.Now
	}
	if newRedisClient == nil {
		newRedisClient = redis.NewClient
	}
	installed := make(map[string]Policy, len(policies))
	for name, policy := range policies {
		policy.Name = name
		if errValidate := policy.Validate(); errValidate != nil {
			return nil, errValidate
		}
		installed[name] = policy
	}
	if redisSettings.Enabled && strings.TrimSpace(redisSettings.Addr) == "" {
		return nil, errors.New("rate limit redis: missing address")
	}
	return &Manager{
		policies:       installed,
		nowFn:          nowFn,
		redisSettings:  redisSettings,
		newRedisClient: newRedisClient,
		windows:        make(map[string]*window),
	}, nil
}

// Policy returns the installed policy for name.
func (m *Manager) Policy(name string) (Policy, bool) {
	policy, ok := m.policies[name]
	return policy, ok
}

// Acquire attempts one admission against the named policy. The key feeds the
// distributed backend's counter; the in-memory window is per policy name.
func (m *Manager) Acquire(ctx context.Context, policyName, key string) (Lease, error) {
	policy, ok := m.policies[policyName]
	if !ok {
		return Lease{}, fmt.Errorf("unknown rate limit policy %q", policyName)
	}
	if m.redisSettings.Enabled && policy.QueueLimit == 0 {
		if lease, served := m.acquireRedis(ctx, policy, key); served {
			return lease, nil
		}
	}
	return m.windowFor(policy).acquire(), nil
}

func (m *Manager) windowFor(policy Policy) *window {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[policy.Name]
	if !ok {
		w = newWindow(policy, m.nowFn)
		m.windows[policy.Name] = w
	}
	return w
}

func (m *Manager) acquireRedis(ctx context.Context, policy Policy, key string) (Lease, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	now := m.nowFn()
	if m.isBreakerActive(now) {
		return Lease{}, false
	}
	limiter, errEnsure := m.ensureRedis(ctx)
	if errEnsure != nil {
		m.tripBreaker(errEnsure, now)
		return Lease{}, false
	}
	allowed, errAllow := limiter.Allow(ctx, policy, key, now)
	if errAllow != nil {
		m.tripBreaker(errAllow, now)
		return Lease{}, false
	}
	if !allowed {
		return Lease{Status: StatusRejected, Reason: ReasonCapacity}, true
	}
	return Lease{Status: StatusAcquired}, true
}

func (m *Manager) isBreakerActive(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakerUntil.IsZero() {
		return false
	}
	if now.Before(m.breakerUntil) {
		return true
	}
	m.breakerUntil = time.Time{}
	return false
}

func (m *Manager) tripBreaker(err error, now time.Time) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("rate limit: redis unavailable, falling back to memory")
}

func (m *Manager) ensureRedis(ctx context.Context) (*RedisLimiter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redisLimiter != nil {
		return m.redisLimiter, nil
	}
	client := m.newRedisClient(&redis.Options{
		Addr:     strings.TrimSpace(m.redisSettings.Addr),
		Password: strings.TrimSpace(m.redisSettings.Password),
		DB:       m.redisSettings.DB,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.redisLimiter = NewRedisLimiter(client, m.redisSettings.Prefix)
	return m.redisLimiter, nil
}

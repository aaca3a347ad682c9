package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/config"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/log"
)

// refreshScript extends the TTL only while the key still names this instance.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// releaseScript deletes the key only while it still names this instance.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisRegistry struct {
	client            redis.UniversalClient
	instanceID        string
	prefix            string
	keyTTL            time.Duration
	heartbeatInterval time.Duration
	managedKeys       map[string]string // key -> sessionID, held by this instance
	mu                sync.RWMutex
	cancel            context.CancelFunc
	onLost            func(sessionID string)
}

func NewRedisRegistry(redisCfg config.RedisConfig, cfg config.RegistryConfig) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Address,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisRegistryWithClient(client, cfg), nil
}

// NewRedisRegistryWithClient wraps an existing client.
func NewRedisRegistryWithClient(client redis.UniversalClient, cfg config.RegistryConfig) *RedisRegistry {
	return &RedisRegistry{
		client:            client,
		instanceID:        cfg.InstanceID,
		prefix:            cfg.Prefix,
		keyTTL:            cfg.KeyTTL,
		heartbeatInterval: cfg.HeartbeatInterval,
		managedKeys:       make(map[string]string),
	}
}

// OnLost registers a callback fired when a heartbeat finds that a session
// claimed by this instance is no longer held by it.
func (r *RedisRegistry) OnLost(fn func(sessionID string)) {
	r.mu.Lock()
	r.onLost = fn
	r.mu.Unlock()
}

func (r *RedisRegistry) keyFor(sessionID string) string {
	return fmt.Sprintf("%s:session:%s", r.prefix, sessionID)
}

func (r *RedisRegistry) Claim(ctx context.Context, sessionID string) error {
	key := r.keyFor(sessionID)

	ok, err := r.client.SetNX(ctx, key, r.instanceID, r.keyTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to claim session: %w", err)
	}
	if !ok {
		owner, err := r.client.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to read session owner: %w", err)
		}
		if owner != r.instanceID {
			return fmt.Errorf("%w: %s held by %s", ErrSessionOwned, sessionID, owner)
		}
		if err := refreshScript.Run(ctx, r.client, []string{key}, r.instanceID, r.keyTTL.Milliseconds()).Err(); err != nil {
			return fmt.Errorf("failed to refresh session claim: %w", err)
		}
	}

	r.mu.Lock()
	r.managedKeys[key] = sessionID
	r.mu.Unlock()

	l := log.L()
	l.Info().Str(log.FieldSessionID, sessionID).Str(log.FieldInstance, r.instanceID).Msg("claimed session")
	return nil
}

func (r *RedisRegistry) Release(ctx context.Context, sessionID string) error {
	key := r.keyFor(sessionID)

	r.mu.Lock()
	delete(r.managedKeys, key)
	r.mu.Unlock()

	if err := releaseScript.Run(ctx, r.client, []string{key}, r.instanceID).Err(); err != nil {
		return fmt.Errorf("failed to release session: %w", err)
	}

	l := log.L()
	l.Info().Str(log.FieldSessionID, sessionID).Msg("released session")
	return nil
}

func (r *RedisRegistry) Owner(ctx context.Context, sessionID string) (string, error) {
	owner, err := r.client.Get(ctx, r.keyFor(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to lookup session owner: %w", err)
	}
	return owner, nil
}

func (r *RedisRegistry) StartHeartbeat(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go r.heartbeatLoop(ctx)
	l := log.L()
	l.Info().Dur("interval", r.heartbeatInterval).Dur("ttl", r.keyTTL).Msg("registry heartbeat started")
	return nil
}

func (r *RedisRegistry) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshKeys(ctx)
		}
	}
}

func (r *RedisRegistry) refreshKeys(ctx context.Context) {
	r.mu.RLock()
	keys := make(map[string]string, len(r.managedKeys))
	for k, id := range r.managedKeys {
		keys[k] = id
	}
	onLost := r.onLost
	r.mu.RUnlock()

	for key, sessionID := range keys {
		n, err := refreshScript.Run(ctx, r.client, []string{key}, r.instanceID, r.keyTTL.Milliseconds()).Int64()
		if err != nil {
			l := log.L()
			l.Error().Str("key", key).Err(err).Msg("failed to refresh key")
			continue
		}
		if n == 0 {
			r.mu.Lock()
			delete(r.managedKeys, key)
			r.mu.Unlock()

			l := log.L()
			l.Warn().Str(log.FieldSessionID, sessionID).Msg("session claim lost")
			if onLost != nil {
				onLost(sessionID)
			}
		}
	}
}

func (r *RedisRegistry) StopHeartbeat() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *RedisRegistry) Close() error {
	r.StopHeartbeat()
	return r.client.Close()
}

var _ SessionRegistry = (*RedisRegistry)(nil)

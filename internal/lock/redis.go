package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultKey is the lock key shared by all scanner replicas.
	DefaultKey = "ledgerscan:scan"
	// DefaultTTL bounds how long a crashed holder keeps others out.
	DefaultTTL = 10 * time.Minute

	releaseTimeout = 5 * time.Second
)

// releaseScript deletes the key only while it still carries our token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// RedisClient is the part of *redis.Client the guard uses.
	RedisClient interface {
		SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
		Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
	}
)

// Redis admits one holder at a time across every process sharing the key.
type Redis struct {
	client RedisClient
	key    string
	ttl    time.Duration
	logger *zap.Logger
	token  func() string
}

// NewRedis returns a guard stored under key that expires after ttl if never released.
func NewRedis(client RedisClient, key string, ttl time.Duration, logger *zap.Logger) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive, got %s", ttl)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		client: client,
		key:    key,
		ttl:    ttl,
		logger: logger.Named("redis_lock").With(zap.String("key", key)),
		token:  uuid.NewString,
	}, nil
}

// TryAcquire sets the key if absent. When ok is false another holder owns it.
func (r *Redis) TryAcquire(ctx context.Context) (release func(), ok bool, err error) {
	token := r.token()
	ok, err = r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", r.key, err)
	}
	if !ok {
		return nil, false, nil
	}

	return func() {
		r.release(ctx, token)
	}, true, nil
}

func (r *Redis) release(ctx context.Context, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	deleted, err := r.client.Eval(ctx, releaseScript, []string{r.key}, token).Int64()
	if err != nil {
		r.logger.Warn("release lock", zap.Error(err))
		return
	}
	if deleted == 0 {
		r.logger.Warn("lock expired before release", zap.Duration("ttl", r.ttl))
	}
}

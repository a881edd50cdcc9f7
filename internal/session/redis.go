package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-adaptive/internal/config"
	"github.com/stemsi/exstem-adaptive/internal/model"
)

const (
	lockTTL        = 10 * time.Second
	lockRetryDelay = 25 * time.Millisecond
)

// unlockScript deletes the lock only if this holder still owns it.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore keeps adaptive sessions in Redis so that any server instance
// can continue a session. Idle sessions expire through the key TTL.
type RedisStore struct {
	rdb     *redis.Client
	idleTTL time.Duration
}

// NewRedisStore creates a RedisStore whose entries expire after idleTTL
// without a Save.
func NewRedisStore(rdb *redis.Client, idleTTL time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, idleTTL: idleTTL}
}

func sessionKey(key model.SessionKey) string {
	return config.CacheKey.AdaptiveSessionKey(key.StudentID, key.SubjectID, key.AssessmentID.String())
}

func lockKey(key model.SessionKey) string {
	return config.CacheKey.AdaptiveSessionLockKey(key.StudentID, key.SubjectID, key.AssessmentID.String())
}

func (r *RedisStore) Create(ctx context.Context, s *model.AdaptiveSession) error {
	s.LastActivity = time.Now()
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.rdb.Set(ctx, sessionKey(s.Key()), raw, r.idleTTL).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, key model.SessionKey) (*model.AdaptiveSession, error) {
	raw, err := r.rdb.Get(ctx, sessionKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var s model.AdaptiveSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, s *model.AdaptiveSession) error {
	s.LastActivity = time.Now()
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ok, err := r.rdb.SetXX(ctx, sessionKey(s.Key()), raw, r.idleTTL).Result()
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (r *RedisStore) Close(ctx context.Context, key model.SessionKey) error {
	return r.rdb.Del(ctx, sessionKey(key)).Err()
}

// Lock spins on SET NX until acquired or ctx ends. The lock expires on its
// own after lockTTL if the holder dies.
func (r *RedisStore) Lock(ctx context.Context, key model.SessionKey) (func(), error) {
	lk := lockKey(key)
	token := uuid.NewString()

	for {
		ok, err := r.rdb.SetNX(ctx, lk, token, lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire session lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}

	return func() {
		// Release with a fresh context so a cancelled request still unlocks.
		_ = unlockScript.Run(context.Background(), r.rdb, []string{lk}, token).Err()
	}, nil
}

// Reap is a no-op: Redis expires idle sessions through the key TTL.
func (r *RedisStore) Reap(context.Context, time.Duration) (int, error) {
	return 0, nil
}

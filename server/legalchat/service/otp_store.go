package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"legalchat/server/legalchat/domain"
)

const (
	resetKeyPrefix   = "pwreset:"
	resetTriesSuffix = ":tries"
)

// consumeScript deletes the code when it matches. A miss bumps the tries
// counter and both keys go once ARGV[2] misses are reached.
var consumeScript = redis.NewScript(`
local stored = redis.call("GET", KEYS[1])
if not stored then
	return 0
end
if stored == ARGV[1] then
	redis.call("DEL", KEYS[1], KEYS[2])
	return 1
end
local tries = redis.call("INCR", KEYS[2])
if tries == 1 then
	local ttl = redis.call("PTTL", KEYS[1])
	if ttl > 0 then
		redis.call("PEXPIRE", KEYS[2], ttl)
	end
end
if tries >= tonumber(ARGV[2]) then
	redis.call("DEL", KEYS[1], KEYS[2])
end
return 0
`)

type RedisOTPStore struct {
	client      *redis.Client
	maxAttempts int
}

func NewRedisOTPStore(client *redis.Client) *RedisOTPStore {
	return &RedisOTPStore{client: client, maxAttempts: domain.MaxResetAttempts}
}

func (s *RedisOTPStore) Save(ctx context.Context, email, code string, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, resetKeyPrefix+email, code, ttl)
		pipe.Del(ctx, resetKeyPrefix+email+resetTriesSuffix)
		return nil
	})
	return err
}

func (s *RedisOTPStore) Consume(ctx context.Context, email, code string) (bool, error) {
	keys := []string{resetKeyPrefix + email, resetKeyPrefix + email + resetTriesSuffix}
	n, err := consumeScript.Run(ctx, s.client, keys, code, s.maxAttempts).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

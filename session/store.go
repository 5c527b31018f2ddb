package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces token set keys.
const DefaultKeyPrefix = "amt"

const claimKeyPrefix = "amc:"

// putTokenScript merges one token into a member's hash and optionally drops
// expired entries. The key TTL follows the newest expiration held.
//
// KEYS[1] token set key
// ARGV[1] now (unix seconds)
// ARGV[2] "1" to prune expired entries
// ARGV[3] field to set ("" to only prune)
// ARGV[4] encoded token
const putTokenScript = `
local function read_be64(s, i)
  local b1 = string.byte(s, i)
  local b2 = string.byte(s, i + 1)
  local b3 = string.byte(s, i + 2)
  local b4 = string.byte(s, i + 3)
  local b5 = string.byte(s, i + 4)
  local b6 = string.byte(s, i + 5)
  local b7 = string.byte(s, i + 6)
  local b8 = string.byte(s, i + 7)
  if not b8 then
    return nil
  end
  return ((((((((b1 * 256) + b2) * 256 + b3) * 256 + b4) * 256 + b5) * 256 + b6) * 256 + b7) * 256 + b8)
end

local key = KEYS[1]
local now_unix = tonumber(ARGV[1])
local prune = ARGV[2] == "1"
local field = ARGV[3]
local blob = ARGV[4]

local latest = 0
local entries = redis.call("HGETALL", key)
for i = 1, #entries, 2 do
  local expires_at = read_be64(entries[i + 1], 2)
  if prune and (not expires_at or expires_at < now_unix) then
    redis.call("HDEL", key, entries[i])
  elseif expires_at and expires_at > latest then
    latest = expires_at
  end
end

if field ~= "" then
  redis.call("HSET", key, field, blob)
  local expires_at = read_be64(blob, 2)
  if expires_at and expires_at > latest then
    latest = expires_at
  end
end

local remaining = redis.call("HLEN", key)
if remaining == 0 then
  redis.call("DEL", key)
  return 0
end
if latest > 0 then
  redis.call("EXPIREAT", key, latest + 1)
end
return remaining
`

var putTokenLua = redis.NewScript(putTokenScript)

// RedisStore keeps each member's tokens in one Redis hash.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore returns a store using prefix for its keys. An empty prefix
// selects [DefaultKeyPrefix].
func NewRedisStore(redisClient redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisStore) key(memberID string) string {
	return s.prefix + ":" + memberID
}

// Tokens returns the member's stored tokens.
//
//	Performance: 1 Redis HGETALL.
func (s *RedisStore) Tokens(ctx context.Context, memberID string) (map[string]Token, error) {
	raw, err := s.redis.HGetAll(ctx, s.key(memberID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	tokens := make(map[string]Token, len(raw))
	for hash, data := range raw {
		tok, err := Decode([]byte(data))
		if err != nil {
			continue
		}
		tokens[hash] = tok
	}
	return tokens, nil
}

// Put stores token under hash in one script call.
func (s *RedisStore) Put(ctx context.Context, memberID, hash string, token Token, prune bool, now time.Time) error {
	return s.runPut(ctx, memberID, hash, Encode(token), prune, now)
}

// Prune removes expired entries.
func (s *RedisStore) Prune(ctx context.Context, memberID string, now time.Time) error {
	return s.runPut(ctx, memberID, "", nil, true, now)
}

func (s *RedisStore) runPut(ctx context.Context, memberID, hash string, blob []byte, prune bool, now time.Time) error {
	pruneFlag := "0"
	if prune {
		pruneFlag = "1"
	}
	err := putTokenLua.Run(
		ctx,
		s.redis,
		[]string{s.key(memberID)},
		strconv.FormatInt(now.Unix(), 10),
		pruneFlag,
		hash,
		string(blob),
	).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Remove deletes one entry.
func (s *RedisStore) Remove(ctx context.Context, memberID, hash string) error {
	if err := s.redis.HDel(ctx, s.key(memberID), hash).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RemoveAll deletes the member's token set.
func (s *RedisStore) RemoveAll(ctx context.Context, memberID string) error {
	if err := s.redis.Del(ctx, s.key(memberID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ClaimOnce uses SET NX so only the first caller wins. The expiry runs on
// the Redis server clock; now is unused.
func (s *RedisStore) ClaimOnce(ctx context.Context, key string, ttl time.Duration, _ time.Time) (bool, error) {
	ok, err := s.redis.SetNX(ctx, claimKeyPrefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ok, nil
}

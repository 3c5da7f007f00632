// Copyright 2025 Mercadia
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package guardrails

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const sessionKeyPrefix = "session:"

// Lua scripts keep check and commit atomic on the Redis side, so multiple
// gateway instances sharing one Redis agree on session quotas.
var (
	checkScript = redis.NewScript(`
local count = redis.call('HGET', KEYS[1], 'count')
if not count then
  redis.call('HSET', KEYS[1], 'count', 1, 'start', ARGV[3], 'last', ARGV[3])
  redis.call('EXPIRE', KEYS[1], tonumber(ARGV[2]) * 2)
  return 0
end
if tonumber(count) >= tonumber(ARGV[1]) then
  return 2
end
local start = tonumber(redis.call('HGET', KEYS[1], 'start'))
if tonumber(ARGV[3]) - start > tonumber(ARGV[2]) then
  redis.call('DEL', KEYS[1])
  return 3
end
return 1
`)

	commitScript = redis.NewScript(`
local count = redis.call('HGET', KEYS[1], 'count')
if not count then
  redis.call('HSET', KEYS[1], 'count', 1, 'start', ARGV[2], 'last', ARGV[2])
  return 1
end
if tonumber(count) >= tonumber(ARGV[1]) then
  return -1
end
redis.call('HINCRBY', KEYS[1], 'count', 1)
redis.call('HSET', KEYS[1], 'last', ARGV[2])
return tonumber(count) + 1
`)
)

// RedisSessionStore keeps session records in Redis hashes, one per session
// id. It is the store of choice when several gateway replicas must share
// session quotas.
type RedisSessionStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisSessionStore connects to redisURL (redis://host:port/db) and
// verifies the connection with a ping.
func NewRedisSessionStore(ctx context.Context, redisURL string) (*RedisSessionStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSessionStore{client: client, now: time.Now}, nil
}

// NewRedisSessionStoreWithClient wraps an existing client, used in tests.
func NewRedisSessionStoreWithClient(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client, now: time.Now}
}

// Close releases the underlying connection pool.
func (r *RedisSessionStore) Close() error {
	return r.client.Close()
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func (r *RedisSessionStore) Check(ctx context.Context, id string, maxMessages int, maxAge time.Duration) (CheckOutcome, error) {
	res, err := checkScript.Run(ctx, r.client, []string{sessionKey(id)},
		maxMessages, int(maxAge.Seconds()), r.now().Unix()).Int()
	if err != nil {
		return OutcomeOK, fmt.Errorf("session check failed: %w", err)
	}

	switch res {
	case 0:
		return OutcomeNew, nil
	case 2:
		return OutcomeMessageLimit, nil
	case 3:
		return OutcomeExpired, nil
	default:
		return OutcomeOK, nil
	}
}

func (r *RedisSessionStore) Commit(ctx context.Context, id string, maxMessages int) error {
	res, err := commitScript.Run(ctx, r.client, []string{sessionKey(id)},
		maxMessages, r.now().Unix()).Int()
	if err != nil {
		return fmt.Errorf("session commit failed: %w", err)
	}
	if res < 0 {
		return ErrMessageLimit
	}
	return nil
}

func (r *RedisSessionStore) Touch(ctx context.Context, id string) error {
	return r.client.HSet(ctx, sessionKey(id), "last", r.now().Unix()).Err()
}

func (r *RedisSessionStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, sessionKey(id)).Err()
}

func (r *RedisSessionStore) Snapshot(ctx context.Context) ([]Session, error) {
	var sessions []Session
	iter := r.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		fields, err := r.client.HGetAll(ctx, key).Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		sessions = append(sessions, sessionFromHash(key[len(sessionKeyPrefix):], fields))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("session scan failed: %w", err)
	}
	return sessions, nil
}

func (r *RedisSessionStore) SweepExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	sessions, err := r.Snapshot(ctx)
	if err != nil {
		return 0, err
	}

	now := r.now()
	removed := 0
	for _, s := range sessions {
		if s.Age(now) > maxAge {
			if err := r.Delete(ctx, s.ID); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func sessionFromHash(id string, fields map[string]string) Session {
	count, _ := strconv.Atoi(fields["count"])
	start, _ := strconv.ParseInt(fields["start"], 10, 64)
	last, _ := strconv.ParseInt(fields["last"], 10, 64)
	return Session{
		ID:           id,
		MessageCount: count,
		StartTime:    time.Unix(start, 0),
		LastActivity: time.Unix(last, 0),
	}
}

// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package otp

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/marketplace-auth/internal/platform/apperr"
	"github.com/taibuivan/marketplace-auth/internal/platform/constants"
)

// Hash fields of a stored record.
const (
	fieldCode     = "code"
	fieldAttempts = "attempts"
	fieldCreated  = "created"
	fieldExpires  = "exp"
)

// checkScript validates a code in one round trip. The digest comparison walks
// every byte so its duration does not depend on where the first difference is.
//
// KEYS[1] record key; ARGV[1] submitted digest; ARGV[2] now (unix ms).
// Returns "ok", "expired", "exhausted" or "mismatch:<attempts left>".
var checkScript = redis.NewScript(`
local exp = redis.call('HGET', KEYS[1], 'exp')
if not exp then
  return 'expired'
end
if tonumber(ARGV[2]) >= tonumber(exp) then
  redis.call('DEL', KEYS[1])
  return 'expired'
end
local attempts = tonumber(redis.call('HGET', KEYS[1], 'attempts'))
if attempts <= 0 then
  return 'exhausted'
end
local stored = redis.call('HGET', KEYS[1], 'code') or ''
local submitted = ARGV[1]
local diff = 0
if #stored ~= #submitted then
  diff = 1
end
for i = 1, math.max(#stored, #submitted) do
  if string.byte(stored, i) ~= string.byte(submitted, i) then
    diff = diff + 1
  end
end
if diff == 0 then
  redis.call('DEL', KEYS[1])
  return 'ok'
end
attempts = redis.call('HINCRBY', KEYS[1], 'attempts', -1)
return 'mismatch:' .. attempts
`)

// RedisStore keeps code records as Redis hashes with a native TTL.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a Redis-backed code store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

var _ Store = (*RedisStore)(nil)

/*
Save replaces the record for (user, purpose).

Description: DEL + HSET + PEXPIRE run inside MULTI/EXEC, so two concurrent
issues leave exactly one outstanding code, never a blend of both.
*/
func (repository *RedisStore) Save(context context.Context, record Record) error {
	key := recordKey(record.UserID, record.Purpose)
	ttl := record.ExpiresAt.Sub(record.CreatedAt)

	_, err := repository.client.TxPipelined(context, func(pipe redis.Pipeliner) error {
		pipe.Del(context, key)
		pipe.HSet(context, key, map[string]any{
			fieldCode:     record.CodeHash,
			fieldAttempts: record.AttemptsLeft,
			fieldCreated:  record.CreatedAt.UnixMilli(),
			fieldExpires:  record.ExpiresAt.UnixMilli(),
		})
		pipe.PExpire(context, key, ttl)
		return nil
	})
	if err != nil {
		return apperr.StorageUnavailable(fmt.Errorf("redis_otp_save_failed: %w", err))
	}
	return nil
}

// Check runs [checkScript] against the record.
func (repository *RedisStore) Check(context context.Context, userID string, purpose Purpose, codeHash string, now time.Time) (Outcome, int, error) {
	key := recordKey(userID, purpose)

	result, err := checkScript.Run(context, repository.client, []string{key}, codeHash, now.UnixMilli()).Text()
	if err != nil {
		return OutcomeExpired, 0, apperr.StorageUnavailable(fmt.Errorf("redis_otp_check_failed: %w", err))
	}

	switch {
	case result == "ok":
		return OutcomeMatched, 0, nil
	case result == "exhausted":
		return OutcomeExhausted, 0, nil
	case strings.HasPrefix(result, "mismatch:"):
		left, err := strconv.Atoi(strings.TrimPrefix(result, "mismatch:"))
		if err != nil {
			return OutcomeExpired, 0, apperr.Internal(fmt.Errorf("redis_otp_check_reply %q: %w", result, err))
		}
		return OutcomeMismatch, left, nil
	default:
		return OutcomeExpired, 0, nil
	}
}

// Get reads the record without touching its attempts.
func (repository *RedisStore) Get(context context.Context, userID string, purpose Purpose, now time.Time) (*Record, error) {
	values, err := repository.client.HGetAll(context, recordKey(userID, purpose)).Result()
	if err != nil {
		return nil, apperr.StorageUnavailable(fmt.Errorf("redis_otp_get_failed: %w", err))
	}
	if len(values) == 0 {
		return nil, nil
	}

	record := &Record{UserID: userID, Purpose: purpose, CodeHash: values[fieldCode]}

	attempts, errAttempts := strconv.Atoi(values[fieldAttempts])
	created, errCreated := strconv.ParseInt(values[fieldCreated], 10, 64)
	expires, errExpires := strconv.ParseInt(values[fieldExpires], 10, 64)
	if errAttempts != nil || errCreated != nil || errExpires != nil {
		return nil, apperr.Internal(fmt.Errorf("redis_otp_get: corrupt record for %s", userID))
	}

	record.AttemptsLeft = attempts
	record.CreatedAt = time.UnixMilli(created).UTC()
	record.ExpiresAt = time.UnixMilli(expires).UTC()

	if !now.Before(record.ExpiresAt) {
		return nil, nil
	}
	return record, nil
}

// recordKey is otp:<purpose>:<userID>.
func recordKey(userID string, purpose Purpose) string {
	return constants.RedisPrefixOTP + strings.ToLower(string(purpose)) + ":" + userID
}

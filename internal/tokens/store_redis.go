package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"idhub/pkg/platform/sentinel"
	"idhub/pkg/requestcontext"
)

const tokenKeyPrefix = "tok:"

// RedisStore is the shared-deployment token store. Expiry is delegated to
// Redis TTLs; GetAllTokens scans the kind's prefix.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(kind Kind, key string) string {
	return tokenKeyPrefix + string(kind) + ":" + key
}

func (s *RedisStore) AddToken(ctx context.Context, token Token) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token %s: %w", token.Key, err)
	}
	ttl := token.Expires.Sub(requestcontext.Now(ctx))
	if !token.Expires.IsZero() && ttl <= 0 {
		return fmt.Errorf("token %s already expired: %w", token.Key, sentinel.ErrInvalidState)
	}
	key := redisKey(token.Kind, token.Key)
	if token.Expires.IsZero() {
		ttl = 0
	}
	ok, err := s.client.SetNX(ctx, key, raw, ttl).Result()
	if err != nil {
		return fmt.Errorf("store token %s: %w", token.Key, err)
	}
	if !ok {
		return fmt.Errorf("token %s: %w", token.Key, sentinel.ErrConflict)
	}
	return nil
}

func (s *RedisStore) ReplaceToken(ctx context.Context, token Token) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token %s: %w", token.Key, err)
	}
	ttl := token.Expires.Sub(requestcontext.Now(ctx))
	if !token.Expires.IsZero() && ttl <= 0 {
		return fmt.Errorf("token %s already expired: %w", token.Key, sentinel.ErrInvalidState)
	}
	if token.Expires.IsZero() {
		ttl = 0
	}
	if err := s.client.Set(ctx, redisKey(token.Kind, token.Key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("replace token %s: %w", token.Key, err)
	}
	return nil
}

func (s *RedisStore) RemoveToken(ctx context.Context, kind Kind, key string) error {
	removed, err := s.client.Del(ctx, redisKey(kind, key)).Result()
	if err != nil {
		return fmt.Errorf("remove token %s: %w", key, err)
	}
	if removed == 0 {
		return fmt.Errorf("token %s: %w", key, sentinel.ErrNotFound)
	}
	return nil
}

func (s *RedisStore) GetAllTokens(ctx context.Context, kind Kind) ([]Token, error) {
	prefix := tokenKeyPrefix + string(kind) + ":"
	var out []Token
	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			continue // expired between scan and get
		}
		if err != nil {
			return nil, fmt.Errorf("read token %s: %w", strings.TrimPrefix(iter.Val(), prefix), err)
		}
		var token Token
		if err := json.Unmarshal([]byte(raw), &token); err != nil {
			return nil, fmt.Errorf("decode token %s: %w", strings.TrimPrefix(iter.Val(), prefix), err)
		}
		out = append(out, token)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s tokens: %w", kind, err)
	}
	return out, nil
}

package genairadio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "genairadio:quiz:"

// RedisSessionStore keeps quiz attempts in redis as JSON with a TTL, so
// several web instances can serve the same listener
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore wraps an existing client
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func redisKey(sid string) string {
	return redisKeyPrefix + sid
}

// Load fetches and decodes the attempt stored under sid
func (rs *RedisSessionStore) Load(ctx context.Context, sid string) (*QuizSession, error) {
	data, err := rs.client.Get(ctx, redisKey(sid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load quiz session: %w", err)
	}

	var session QuizSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to load quiz session: %w", err)
	}
	return &session, nil
}

// Save encodes session and refreshes its TTL
func (rs *RedisSessionStore) Save(ctx context.Context, sid string, session *QuizSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode quiz session: %w", err)
	}
	if err := rs.client.Set(ctx, redisKey(sid), data, rs.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save quiz session: %w", err)
	}
	return nil
}

// Delete removes the attempt stored under sid
func (rs *RedisSessionStore) Delete(ctx context.Context, sid string) error {
	if err := rs.client.Del(ctx, redisKey(sid)).Err(); err != nil {
		return fmt.Errorf("failed to delete quiz session: %w", err)
	}
	return nil
}

package utils

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenStore decides whether an otherwise valid token id has been revoked.
type TokenStore interface {
	Revoked(ctx context.Context, jti string) (bool, error)
	Revoke(ctx context.Context, jti string, until time.Time) error
}

// StatelessTokenStore never revokes anything: tokens stay valid until they expire.
type StatelessTokenStore struct{}

func (StatelessTokenStore) Revoked(context.Context, string) (bool, error) { return false, nil }

func (StatelessTokenStore) Revoke(context.Context, string, time.Time) error { return nil }

const revokedPrefix = "revoked:"

// RedisTokenStore keeps revoked token ids in Redis until the token would
// have expired anyway.
type RedisTokenStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client, now: time.Now}
}

func (s *RedisTokenStore) Revoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisTokenStore) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revokedPrefix+jti, 1, ttl).Err()
}

package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoChallenge is returned when no challenge is stored for a session,
// either because none was issued or because it expired.
var ErrNoChallenge = errors.New("no challenge for session")

// RedisStore keeps the expected answer for each challenged session, with an
// explicit TTL. It replaces the ambient HTTP-session storage the design note
// warns about: state is keyed by a caller-supplied session ID and nothing
// else.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(sessionID string) string {
	return fmt.Sprintf("challenge:%s", sessionID)
}

// Put stores the expected answer for a session, replacing any previous one.
func (s *RedisStore) Put(ctx context.Context, sessionID, answer string) error {
	return s.client.Set(ctx, s.key(sessionID), answer, s.ttl).Err()
}

// Get returns the expected answer for a session, or ErrNoChallenge.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (string, error) {
	answer, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoChallenge
		}
		return "", err
	}
	return answer, nil
}

// Delete removes the stored answer. Missing keys are not an error.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID)).Err()
}

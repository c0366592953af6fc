package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"insightsnap/internal/redis"
)

// Store keeps one secret per session id. Get returns "" for an unknown session.
// Touch restarts the expiry of stores that have one.
type Store interface {
	Put(ctx context.Context, sessionID, secret string) error
	Get(ctx context.Context, sessionID string) (string, error)
	Touch(ctx context.Context, sessionID string) error
	Delete(ctx context.Context, sessionID string) error
}

type memoryStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemoryStore keeps secrets in process memory only.
func NewMemoryStore() Store {
	return &memoryStore{secrets: make(map[string]string)}
}

func (s *memoryStore) Put(_ context.Context, sessionID, secret string) error {
	s.mu.Lock()
	s.secrets[sessionID] = secret
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Get(_ context.Context, sessionID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.secrets[sessionID], nil
}

func (s *memoryStore) Touch(context.Context, string) error { return nil }

func (s *memoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.secrets, sessionID)
	s.mu.Unlock()
	return nil
}

const redisKeyPrefix = "credential:"

type redisStore struct {
	client *redis.Client
	cipher *Cipher
	ttl    time.Duration
}

// NewRedisStore keeps encrypted secrets in redis, expiring with the session.
func NewRedisStore(client *redis.Client, cipher *Cipher, ttl time.Duration) (Store, error) {
	if !client.Enabled() {
		return nil, errors.New("redis client required")
	}
	if cipher == nil {
		return nil, errors.New("cipher required")
	}
	return &redisStore{client: client, cipher: cipher, ttl: ttl}, nil
}

func (s *redisStore) Put(ctx context.Context, sessionID, secret string) error {
	sealed, err := s.cipher.Encrypt(secret)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKeyPrefix+sessionID, sealed, s.ttl); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

// Get also slides the key's expiry, so a secret in use outlives its first ttl.
func (s *redisStore) Get(ctx context.Context, sessionID string) (string, error) {
	key := redisKeyPrefix + sessionID
	var (
		sealed string
		err    error
	)
	if s.ttl > 0 {
		sealed, err = s.client.GetEx(ctx, key, s.ttl)
	} else {
		sealed, err = s.client.Get(ctx, key)
	}
	if err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			return "", nil
		}
		return "", fmt.Errorf("load credential: %w", err)
	}
	return s.cipher.Decrypt(sealed)
}

func (s *redisStore) Touch(ctx context.Context, sessionID string) error {
	if s.ttl <= 0 {
		return nil
	}
	if err := s.client.Expire(ctx, s.ttl, redisKeyPrefix+sessionID); err != nil {
		return fmt.Errorf("refresh credential: %w", err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, redisKeyPrefix+sessionID)
}

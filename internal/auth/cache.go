package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"insightsnap/internal/models"
	"insightsnap/internal/redis"
)

func sessionKey(token string) string { return "session:" + token }

func (s *Service) cacheSession(ctx context.Context, se *models.Session) {
	if !s.cache.Enabled() {
		return
	}
	ttl := se.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return
	}
	if err := s.cache.Set(ctx, sessionKey(se.Token), se.ExpiresAt.Format(time.RFC3339Nano), ttl); err != nil {
		s.logger.Warn("cache session failed", zap.Error(err))
	}
}

func (s *Service) cachedSession(ctx context.Context, token string) (*models.Session, bool) {
	if !s.cache.Enabled() {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, sessionKey(token))
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.logger.Warn("read session cache failed", zap.Error(err))
		}
		return nil, false
	}
	expires, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, false
	}
	return &models.Session{Token: token, ExpiresAt: expires}, true
}

func (s *Service) forgetSession(ctx context.Context, token string) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Del(ctx, sessionKey(token)); err != nil {
		s.logger.Warn("drop session cache failed", zap.Error(err))
	}
}

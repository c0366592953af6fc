package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"insightsnap/internal/models"
	"insightsnap/internal/redis"
)

var (
	ErrTokenRequired = errors.New("session token required")
	ErrInvalidToken  = errors.New("invalid session token")
	ErrTokenExpired  = errors.New("session expired")
)

// EndFunc releases whatever a session held. It runs when a session is revoked or swept.
type EndFunc func(ctx context.Context, token string)

// TouchFunc runs after a session's expiry slid forward.
type TouchFunc func(ctx context.Context, token string)

// Service issues, validates, and revokes anonymous session tokens.
type Service struct {
	db             *sql.DB
	cache          *redis.Client
	logger         *zap.Logger
	tokenTTL       time.Duration
	cookieName     string
	headerName     string
	csrfCookieName string
	csrfHeaderName string
	csrfKey        []byte

	mu      sync.RWMutex
	onEnd   []EndFunc
	onTouch []TouchFunc
	now     func() time.Time
}

// NewService constructs a session service. cache may be nil.
func NewService(db *sql.DB, cache *redis.Client, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	return &Service{
		db:             db,
		cache:          cache,
		logger:         logger,
		tokenTTL:       ttl,
		cookieName:     "session_token",
		headerName:     "Authorization",
		csrfCookieName: "csrf_token",
		csrfHeaderName: "X-CSRF-Token",
		csrfKey:        key,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// OnEnd registers fn to run for every session that ends.
func (s *Service) OnEnd(fn EndFunc) {
	s.mu.Lock()
	s.onEnd = append(s.onEnd, fn)
	s.mu.Unlock()
}

// OnTouch registers fn to run whenever Touch extends a session.
func (s *Service) OnTouch(fn TouchFunc) {
	s.mu.Lock()
	s.onTouch = append(s.onTouch, fn)
	s.mu.Unlock()
}

// SetCSRFSecret replaces the per-process CSRF key. Instances sharing sessions
// must share the secret. An empty secret keeps the random key.
func (s *Service) SetCSRFSecret(secret string) {
	if secret == "" {
		return
	}
	s.csrfKey = []byte(secret)
}

// IssueSession mints a new random token and persists it.
func (s *Service) IssueSession(ctx context.Context) (*models.Session, error) {
	now := s.now()
	for i := 0; i < 5; i++ {
		token, err := generateToken()
		if err != nil {
			return nil, err
		}
		se := &models.Session{Token: token, CreatedAt: now, LastSeenAt: now, ExpiresAt: now.Add(s.tokenTTL)}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO sessions (token, created_at, last_seen_at, expires_at) VALUES (?, ?, ?, ?)`,
			se.Token, se.CreatedAt, se.LastSeenAt, se.ExpiresAt,
		)
		if err == nil {
			s.cacheSession(ctx, se)
			return se, nil
		}
	}
	return nil, errors.New("could not issue session")
}

// NewCSRFToken derives the CSRF token bound to a session token.
func (s *Service) NewCSRFToken(sessionToken string) string {
	mac := hmac.New(sha256.New, s.csrfKey)
	mac.Write([]byte(sessionToken))
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidateToken verifies the token exists and has not expired.
func (s *Service) ValidateToken(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, ErrTokenRequired
	}
	now := s.now()
	if se, ok := s.cachedSession(ctx, token); ok && !se.Expired(now) {
		return se, nil
	}

	se := &models.Session{Token: token}
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, last_seen_at, expires_at FROM sessions WHERE token = ?`, token,
	).Scan(&se.CreatedAt, &se.LastSeenAt, &se.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if se.Expired(now) {
		s.end(ctx, token)
		return nil, ErrTokenExpired
	}
	s.cacheSession(ctx, se)
	return se, nil
}

// Touch slides the expiry forward once less than half the lifetime remains
// and reports whether it did.
func (s *Service) Touch(ctx context.Context, se *models.Session) (bool, error) {
	now := s.now()
	if se.ExpiresAt.Sub(now) > s.tokenTTL/2 {
		return false, nil
	}
	se.LastSeenAt = now
	se.ExpiresAt = now.Add(s.tokenTTL)
	if _, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_seen_at = ?, expires_at = ? WHERE token = ?`,
		se.LastSeenAt, se.ExpiresAt, se.Token,
	); err != nil {
		return false, fmt.Errorf("touch session: %w", err)
	}
	s.cacheSession(ctx, se)

	s.mu.RLock()
	hooks := append([]TouchFunc(nil), s.onTouch...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, se.Token)
	}
	return true, nil
}

// RevokeToken ends a single session.
func (s *Service) RevokeToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	s.runEnd(ctx, token)
	return nil
}

// end removes an expired session without surfacing errors to the caller.
func (s *Service) end(ctx context.Context, token string) {
	if err := s.RevokeToken(ctx, token); err != nil {
		s.logger.Warn("drop expired session failed", zap.Error(err))
	}
}

func (s *Service) runEnd(ctx context.Context, token string) {
	s.forgetSession(ctx, token)
	s.mu.RLock()
	hooks := append([]EndFunc(nil), s.onEnd...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, token)
	}
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// AuthCookieName returns the cookie name storing session tokens.
func (s *Service) AuthCookieName() string {
	return s.cookieName
}

// CSRFCookieName returns the cookie used for CSRF tokens.
func (s *Service) CSRFCookieName() string {
	return s.csrfCookieName
}

// CSRFHeaderName returns the CSRF header name.
func (s *Service) CSRFHeaderName() string {
	return s.csrfHeaderName
}

// TokenTTL reports the configured session lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}

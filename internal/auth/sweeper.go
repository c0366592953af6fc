package auth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const DefaultSweepInterval = 10 * time.Minute

// StartSweeper ends expired sessions every interval until ctx is done.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go s.sweepLoop(ctx, interval)
}

func (s *Service) sweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepExpired(ctx)
			if err != nil {
				s.logger.Error("sweep sessions", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("expired sessions swept", zap.Int("count", n))
			}
		}
	}
}

// SweepExpired ends every session whose expiry has passed and returns how many it ended.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT token FROM sessions WHERE expires_at <= ?`, s.now())
	if err != nil {
		return 0, fmt.Errorf("list expired sessions: %w", err)
	}
	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan expired session: %w", err)
		}
		tokens = append(tokens, token)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	ended := 0
	for _, token := range tokens {
		if err := s.RevokeToken(ctx, token); err != nil {
			s.logger.Warn("end expired session failed", zap.Error(err))
			continue
		}
		ended++
	}
	return ended, nil
}

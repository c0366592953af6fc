package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"insightsnap/internal/models"
	"insightsnap/internal/redis"
	"insightsnap/internal/table"
)

const (
	redisInvalidateChannel = "workspace:invalidate"
	defaultMirrorTTL       = 12 * time.Hour
)

type invalidateMessage struct {
	Session string `json:"session"`
	// Origin is the publishing mirror's id; listeners ignore their own messages.
	Origin string `json:"origin"`
}

type cachedTable struct {
	Name   string     `json:"name"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

type mirror struct {
	id     string
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func newMirror(client *redis.Client, ttl time.Duration, logger *zap.Logger) *mirror {
	if ttl <= 0 {
		ttl = defaultMirrorTTL
	}
	return &mirror{id: uuid.NewString(), client: client, ttl: ttl, logger: logger}
}

func tableKey(session string) string { return fmt.Sprintf("workspace:table:%s", session) }
func textKey(session string) string  { return fmt.Sprintf("workspace:text:%s", session) }

func (m *mirror) cacheTable(ctx context.Context, session, name string, t *table.Table) {
	if m == nil || t == nil {
		return
	}
	data, err := json.Marshal(cachedTable{Name: name, Header: t.Names(), Rows: t.Rows})
	if err != nil {
		m.logger.Warn("workspace table marshal failed", zap.Error(err))
		return
	}
	if err := m.client.Set(ctx, tableKey(session), data, m.ttl); err != nil {
		m.logger.Warn("workspace table cache failed", zap.Error(err))
	}
}

func (m *mirror) loadTable(ctx context.Context, session string) (*table.Table, string, bool) {
	if m == nil {
		return nil, "", false
	}
	raw, err := m.client.Get(ctx, tableKey(session))
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			m.logger.Warn("workspace table load failed", zap.Error(err))
		}
		return nil, "", false
	}
	var cached cachedTable
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		m.logger.Warn("workspace table decode failed", zap.Error(err))
		return nil, "", false
	}
	t, err := table.New(cached.Header, cached.Rows)
	if err != nil {
		m.logger.Warn("workspace table rebuild failed", zap.Error(err))
		return nil, "", false
	}
	return t, cached.Name, true
}

func (m *mirror) cacheText(ctx context.Context, session string, text models.RecognizedText) {
	if m == nil {
		return
	}
	data, err := json.Marshal(text)
	if err != nil {
		m.logger.Warn("workspace text marshal failed", zap.Error(err))
		return
	}
	if err := m.client.Set(ctx, textKey(session), data, m.ttl); err != nil {
		m.logger.Warn("workspace text cache failed", zap.Error(err))
	}
}

func (m *mirror) loadText(ctx context.Context, session string) (models.RecognizedText, bool) {
	if m == nil {
		return models.RecognizedText{}, false
	}
	raw, err := m.client.Get(ctx, textKey(session))
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			m.logger.Warn("workspace text load failed", zap.Error(err))
		}
		return models.RecognizedText{}, false
	}
	var text models.RecognizedText
	if err := json.Unmarshal([]byte(raw), &text); err != nil {
		m.logger.Warn("workspace text decode failed", zap.Error(err))
		return models.RecognizedText{}, false
	}
	return text, true
}

func (m *mirror) invalidate(ctx context.Context, session string) {
	if m == nil {
		return
	}
	if err := m.client.Del(ctx, tableKey(session), textKey(session)); err != nil && !errors.Is(err, redis.ErrCacheMiss) {
		m.logger.Warn("workspace invalidate failed", zap.Error(err))
	}
}

// refresh extends both keys to a full ttl from now.
func (m *mirror) refresh(ctx context.Context, session string) {
	if m == nil {
		return
	}
	if err := m.client.Expire(ctx, m.ttl, tableKey(session), textKey(session)); err != nil {
		m.logger.Warn("workspace refresh failed", zap.Error(err))
	}
}

// publishInvalidation tells other instances to drop their local copy.
func (m *mirror) publishInvalidation(ctx context.Context, session string) {
	if m == nil {
		return
	}
	raw := m.client.Raw()
	if raw == nil {
		return
	}
	payload, err := json.Marshal(invalidateMessage{Session: session, Origin: m.id})
	if err != nil {
		return
	}
	if err := raw.Publish(ctx, redisInvalidateChannel, payload).Err(); err != nil {
		m.logger.Warn("workspace publish invalidation failed", zap.Error(err))
	}
}

func (m *mirror) startListener(ctx context.Context, handler func(session string)) {
	if m == nil || handler == nil {
		return
	}
	raw := m.client.Raw()
	if raw == nil {
		return
	}
	pubsub := raw.Subscribe(ctx, redisInvalidateChannel)
	// wait for the subscription so writes after Listen returns are seen
	if _, err := pubsub.Receive(ctx); err != nil {
		m.logger.Warn("workspace subscribe failed", zap.Error(err))
		pubsub.Close()
		return
	}
	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var inv invalidateMessage
				if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
					m.logger.Warn("workspace invalidation decode failed", zap.Error(err))
					continue
				}
				if inv.Origin == m.id {
					continue
				}
				handler(inv.Session)
			}
		}
	}()
}

// Package workspace keeps the per-session inputs a later step needs: the last
// uploaded table and the last recognized text.
package workspace

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"insightsnap/internal/models"
	"insightsnap/internal/redis"
	"insightsnap/internal/table"
)

type entry struct {
	table     *table.Table
	tableName string
	text      *models.RecognizedText
}

// Registry is safe for concurrent use. With a redis client the entries are
// mirrored so every instance behind a load balancer sees the same workspace.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	mirror  *mirror
	logger  *zap.Logger

	// evictions counts forgets; a mirror load is only kept if none happened meanwhile.
	evictions uint64
}

func New(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		entries: make(map[string]*entry),
		logger:  logger,
	}
	if client.Enabled() {
		r.mirror = newMirror(client, ttl, logger)
	}
	return r
}

func (r *Registry) getOrCreateLocked(session string) *entry {
	e, ok := r.entries[session]
	if !ok {
		e = &entry{}
		r.entries[session] = e
	}
	return e
}

// SetTable replaces the session's table.
func (r *Registry) SetTable(ctx context.Context, session, name string, t *table.Table) {
	r.mu.Lock()
	e := r.getOrCreateLocked(session)
	e.table, e.tableName = t, name
	r.mu.Unlock()
	r.mirror.cacheTable(ctx, session, name, t)
	r.mirror.publishInvalidation(ctx, session)
}

// Table returns the session's table, falling back to the mirror on a local miss.
func (r *Registry) Table(ctx context.Context, session string) (*table.Table, string, bool) {
	r.mu.RLock()
	if e, ok := r.entries[session]; ok && e.table != nil {
		t, name := e.table, e.tableName
		r.mu.RUnlock()
		return t, name, true
	}
	epoch := r.evictions
	r.mu.RUnlock()

	t, name, ok := r.mirror.loadTable(ctx, session)
	if !ok {
		return nil, "", false
	}
	r.mu.Lock()
	if r.evictions == epoch {
		e := r.getOrCreateLocked(session)
		e.table, e.tableName = t, name
	}
	r.mu.Unlock()
	return t, name, true
}

// SetText replaces the session's recognized text.
func (r *Registry) SetText(ctx context.Context, session string, text models.RecognizedText) {
	r.mu.Lock()
	e := r.getOrCreateLocked(session)
	e.text = &text
	r.mu.Unlock()
	r.mirror.cacheText(ctx, session, text)
	r.mirror.publishInvalidation(ctx, session)
}

func (r *Registry) Text(ctx context.Context, session string) (models.RecognizedText, bool) {
	r.mu.RLock()
	if e, ok := r.entries[session]; ok && e.text != nil {
		text := *e.text
		r.mu.RUnlock()
		return text, true
	}
	epoch := r.evictions
	r.mu.RUnlock()

	text, ok := r.mirror.loadText(ctx, session)
	if !ok {
		return models.RecognizedText{}, false
	}
	r.mu.Lock()
	if r.evictions == epoch {
		r.getOrCreateLocked(session).text = &text
	}
	r.mu.Unlock()
	return text, true
}

// Drop forgets everything for the session on this and every mirrored instance.
func (r *Registry) Drop(ctx context.Context, session string) {
	r.forget(session)
	r.mirror.invalidate(ctx, session)
	r.mirror.publishInvalidation(ctx, session)
}

// Refresh restarts the mirror expiry for an active session.
func (r *Registry) Refresh(ctx context.Context, session string) {
	r.mirror.refresh(ctx, session)
}

func (r *Registry) forget(session string) {
	r.mu.Lock()
	delete(r.entries, session)
	r.evictions++
	r.mu.Unlock()
}

// Listen drops local entries when another instance writes to or ends a
// session, so the next read goes to the mirror. It
// returns immediately without a mirror and stops when ctx is done.
func (r *Registry) Listen(ctx context.Context) {
	r.mirror.startListener(ctx, r.forget)
}

// Len is the number of sessions with local state.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

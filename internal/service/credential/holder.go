// Package credential holds the language-model API secret each session entered.
package credential

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"insightsnap/internal/models"
)

// Holder validates nothing about the secret itself; a bad key only surfaces when
// the language model rejects it.
type Holder struct {
	store  Store
	logger *zap.Logger
}

func NewHolder(store Store, logger *zap.Logger) *Holder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Holder{store: store, logger: logger}
}

// Set stores secret verbatim for the session, overwriting any earlier value.
// A blank secret changes nothing and reports stored=false.
func (h *Holder) Set(ctx context.Context, sessionID, secret string) (bool, error) {
	if sessionID == "" {
		return false, errors.New("session id is required")
	}
	if strings.TrimSpace(secret) == "" {
		return false, nil
	}
	if err := h.store.Put(ctx, sessionID, secret); err != nil {
		return false, err
	}
	h.logger.Debug("credential stored", zap.String("session", shortID(sessionID)))
	return true, nil
}

// Get reports whether the session has a credential and returns it.
func (h *Holder) Get(ctx context.Context, sessionID string) (models.Credential, error) {
	if sessionID == "" {
		return models.Credential{}, nil
	}
	secret, err := h.store.Get(ctx, sessionID)
	if err != nil {
		return models.Credential{}, err
	}
	return models.Credential{Value: secret, Present: secret != ""}, nil
}

// Refresh keeps the credential alive for another full session lifetime.
func (h *Holder) Refresh(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return h.store.Touch(ctx, sessionID)
}

// Clear forgets the session's credential.
func (h *Holder) Clear(ctx context.Context, sessionID string) error {
	return h.store.Delete(ctx, sessionID)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

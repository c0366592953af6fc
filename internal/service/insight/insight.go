// Package insight asks a language model to summarise recognized text.
package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"insightsnap/internal/config"
	"insightsnap/internal/models"
)

const (
	SystemPrompt = "You are a helpful data analyst."
	promptPrefix = "Analyze the following data and provide insights:\n\n"
)

var (
	// ErrInsightUnavailable means the session lacks recognized text or a credential.
	ErrInsightUnavailable = errors.New("insight needs recognized text and a stored api key")
	ErrEmptyResponse      = errors.New("language model returned an empty response")
	ErrUnknownProvider    = errors.New("unknown llm provider")
)

// ProviderError wraps any failure reported by the language-model API.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

type Service struct {
	provider string
	provCfg  config.ProviderConfig
	factory  ModelFactory
	logger   *zap.Logger
}

// NewService resolves the configured provider. A nil factory selects NewChatModel.
func NewService(cfg *config.Config, factory ModelFactory, logger *zap.Logger) (*Service, error) {
	if factory == nil {
		factory = NewChatModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	provider := cfg.Insight.Provider
	if provider == "" {
		provider = config.DefaultProvider
	}
	provCfg, ok := cfg.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s not configured", ErrUnknownProvider, provider)
	}
	if provCfg.Model == "" && provider == config.DefaultProvider {
		provCfg.Model = config.DefaultInsightLLM
	}
	return &Service{provider: provider, provCfg: provCfg, factory: factory, logger: logger}, nil
}

func (s *Service) Provider() string { return s.provider }

// Ready reports whether Generate may be called.
func Ready(text string, cred models.Credential) bool {
	return strings.TrimSpace(text) != "" && cred.Present
}

// Prompt builds the user message sent to the model.
func Prompt(text string) string {
	return promptPrefix + text
}

// Generate sends one request and returns the model's reply unchanged.
func (s *Service) Generate(ctx context.Context, text string, cred models.Credential) (string, error) {
	if !Ready(text, cred) {
		return "", ErrInsightUnavailable
	}
	cm, err := s.factory(ctx, s.provider, s.provCfg, cred.Value)
	if err != nil {
		return "", &ProviderError{Provider: s.provider, Err: err}
	}

	start := time.Now()
	msg, err := cm.Generate(ctx, []*schema.Message{
		schema.SystemMessage(SystemPrompt),
		schema.UserMessage(Prompt(text)),
	})
	if err != nil {
		return "", &ProviderError{Provider: s.provider, Err: err}
	}
	if msg == nil || msg.Content == "" {
		return "", &ProviderError{Provider: s.provider, Err: ErrEmptyResponse}
	}
	s.logger.Info("insight generated",
		zap.String("provider", s.provider),
		zap.String("model", s.provCfg.Model),
		zap.Int("prompt_chars", len(text)),
		zap.Duration("took", time.Since(start)),
	)
	return msg.Content, nil
}

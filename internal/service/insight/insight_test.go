package insight

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"insightsnap/internal/config"
	"insightsnap/internal/models"
)

type fakeChatModel struct {
	reply *schema.Message
	err   error
	seen  [][]*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.seen = append(f.seen, input)
	return f.reply, f.err
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

type factoryCall struct {
	provider string
	model    string
	apiKey   string
}

func newTestService(t *testing.T, cm *fakeChatModel, calls *[]factoryCall) *Service {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	svc, err := NewService(cfg, func(_ context.Context, provider string, provCfg config.ProviderConfig, apiKey string) (model.BaseChatModel, error) {
		*calls = append(*calls, factoryCall{provider, provCfg.Model, apiKey})
		return cm, nil
	}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestGenerateSendsFixedPrompt(t *testing.T) {
	cm := &fakeChatModel{reply: schema.AssistantMessage("Revenue grows 10% a month.", nil)}
	var calls []factoryCall
	svc := newTestService(t, cm, &calls)

	got, err := svc.Generate(context.Background(), "jan 10\nfeb 11", models.Credential{Value: "sk-test", Present: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Revenue grows 10% a month." {
		t.Fatalf("insight = %q", got)
	}
	if len(calls) != 1 || calls[0] != (factoryCall{"openai", config.DefaultInsightLLM, "sk-test"}) {
		t.Fatalf("factory calls = %+v", calls)
	}
	msgs := cm.seen[0]
	if len(msgs) != 2 || msgs[0].Role != schema.System || msgs[0].Content != SystemPrompt {
		t.Fatalf("system message = %+v", msgs)
	}
	if msgs[1].Role != schema.User || msgs[1].Content != "Analyze the following data and provide insights:\n\njan 10\nfeb 11" {
		t.Fatalf("user message = %q", msgs[1].Content)
	}
}

func TestGenerateRequiresTextAndCredential(t *testing.T) {
	cm := &fakeChatModel{reply: schema.AssistantMessage("x", nil)}
	var calls []factoryCall
	svc := newTestService(t, cm, &calls)

	cases := []struct {
		text string
		cred models.Credential
	}{
		{"", models.Credential{Value: "k", Present: true}},
		{"   ", models.Credential{Value: "k", Present: true}},
		{"data", models.Credential{}},
	}
	for _, tc := range cases {
		if _, err := svc.Generate(context.Background(), tc.text, tc.cred); !errors.Is(err, ErrInsightUnavailable) {
			t.Fatalf("Generate(%q, %+v) err = %v", tc.text, tc.cred, err)
		}
	}
	if len(calls) != 0 || len(cm.seen) != 0 {
		t.Fatalf("model contacted without preconditions")
	}
}

func TestGenerateProviderErrors(t *testing.T) {
	quota := errors.New("429 quota exceeded")
	var calls []factoryCall
	svc := newTestService(t, &fakeChatModel{err: quota}, &calls)
	cred := models.Credential{Value: "k", Present: true}

	_, err := svc.Generate(context.Background(), "data", cred)
	var perr *ProviderError
	if !errors.As(err, &perr) || !errors.Is(err, quota) {
		t.Fatalf("err = %v", err)
	}

	svc = newTestService(t, &fakeChatModel{}, &calls)
	if _, err := svc.Generate(context.Background(), "data", cred); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("nil reply err = %v", err)
	}

	badURL := errors.New("init openai model: bad base url")
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	svc, err = NewService(cfg, func(context.Context, string, config.ProviderConfig, string) (model.BaseChatModel, error) {
		return nil, badURL
	}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	_, err = svc.Generate(context.Background(), "data", cred)
	if !errors.As(err, &perr) || !errors.Is(err, badURL) || perr.Provider != config.DefaultProvider {
		t.Fatalf("factory failure err = %v", err)
	}
}

func TestNewServiceUnknownProvider(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Insight.Provider = "mistral"
	if _, err := NewService(cfg, nil, nil); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("err = %v", err)
	}
}

func TestNewChatModelUnknownProvider(t *testing.T) {
	if _, err := NewChatModel(context.Background(), "mistral", config.ProviderConfig{}, "k"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("err = %v", err)
	}
}

func TestNewChatModelOpenAI(t *testing.T) {
	cm, err := NewChatModel(context.Background(), "openai", config.ProviderConfig{Model: "gpt-4o-mini"}, "sk-test")
	if err != nil || cm == nil {
		t.Fatalf("NewChatModel: %v", err)
	}
}

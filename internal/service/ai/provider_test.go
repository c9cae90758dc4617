package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/course-advisor/backend/internal/config"
	"github.com/zhouzirui/course-advisor/backend/internal/model/chat"
)

func TestNewProviderRejectsUnconfiguredBackend(t *testing.T) {
	_, err := NewProvider(context.Background(), config.AIConfig{Provider: ProviderOpenAI}, nil)
	assert.Error(t, err)
}

func TestProviderForIdentityWrapsCompleter(t *testing.T) {
	p, err := NewProvider(context.Background(), config.AIConfig{
		Provider:     ProviderOpenAI,
		OpenAIAPIKey: "sk-test",
		OpenAIModel:  "gpt-4o-mini",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p.Name())

	completer, err := p.ForIdentity(context.Background(), chat.Identity{Username: "s1234567"}, "")
	require.NoError(t, err)

	instrumented, ok := completer.(*Instrumented)
	require.True(t, ok)
	inner, ok := instrumented.next.(*OpenAICompleter)
	require.True(t, ok)
	assert.Equal(t, "gpt-4o-mini", inner.model)
}

func TestStaticCredentials(t *testing.T) {
	creds, err := StaticCredentials{}.Resolve(context.Background(), chat.Identity{Username: "u"})
	require.NoError(t, err)
	assert.Nil(t, creds)

	creds, err = StaticCredentials{AccessKeyID: "AKIA", SecretAccessKey: "secret"}.Resolve(context.Background(), chat.Identity{})
	require.NoError(t, err)
	require.NotNil(t, creds)

	value, err := creds.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIA", value.AccessKeyID)
}

func TestProviderArkHonoursSessionModel(t *testing.T) {
	var built []string
	p := &Provider{
		cfg: config.AIConfig{
			Provider:      ProviderArk,
			Model:         "doubao-pro",
			AllowedModels: []string{"doubao-pro", "doubao-lite"},
		},
		arkModels: make(map[string]*ArkCompleter),
		newArkModel: func(_ context.Context, modelID string) (model.BaseChatModel, error) {
			built = append(built, modelID)
			return &fakeChatModel{reply: schema.AssistantMessage("answered by "+modelID, nil)}, nil
		},
	}
	identity := chat.Identity{Username: "s1234567", Password: "pw"}

	def, err := p.ForIdentity(context.Background(), identity, "")
	require.NoError(t, err)
	got, err := def.Complete(context.Background(), "core units?", Options{})
	require.NoError(t, err)
	assert.Equal(t, "answered by doubao-pro", got)

	for i := 0; i < 2; i++ {
		lite, err := p.ForIdentity(context.Background(), identity, "doubao-lite")
		require.NoError(t, err)
		got, err = lite.Complete(context.Background(), "core units?", Options{})
		require.NoError(t, err)
		assert.Equal(t, "answered by doubao-lite", got)
	}

	assert.Equal(t, []string{"doubao-pro", "doubao-lite"}, built)
}

func TestProviderArkModelBuildFailure(t *testing.T) {
	p := &Provider{
		cfg:       config.AIConfig{Provider: ProviderArk, Model: "doubao-pro"},
		arkModels: make(map[string]*ArkCompleter),
		newArkModel: func(context.Context, string) (model.BaseChatModel, error) {
			return nil, errors.New("missing credentials")
		},
	}

	_, err := p.ForIdentity(context.Background(), chat.Identity{Username: "u"}, "doubao-lite")
	require.Error(t, err)
	assert.True(t, IsCompletionError(err))
}

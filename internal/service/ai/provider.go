package ai

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/cloudwego/eino/components/model"
	"golang.org/x/time/rate"

	"github.com/zhouzirui/course-advisor/backend/internal/config"
	"github.com/zhouzirui/course-advisor/backend/internal/model/chat"
)

// Provider names.
const (
	ProviderArk     = config.ProviderArk
	ProviderBedrock = config.ProviderBedrock
	ProviderOpenAI  = config.ProviderOpenAI
)

// CredentialResolver turns a session identity into AWS credentials for Bedrock calls.
type CredentialResolver interface {
	Resolve(ctx context.Context, identity chat.Identity) (aws.CredentialsProvider, error)
}

// StaticCredentials resolves every identity to the deployment's credentials. Empty keys defer
// to the default AWS credential chain.
type StaticCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Resolve implements CredentialResolver.
func (s StaticCredentials) Resolve(_ context.Context, _ chat.Identity) (aws.CredentialsProvider, error) {
	if s.AccessKeyID == "" || s.SecretAccessKey == "" {
		return nil, nil
	}
	return credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, s.SessionToken), nil
}

// Provider builds completers for sessions according to the configured backend.
type Provider struct {
	cfg      config.AIConfig
	limiter  *rate.Limiter
	resolver CredentialResolver

	// Ark binds the model id when the chat model is built, so one is kept per id.
	arkMu       sync.Mutex
	arkModels   map[string]*ArkCompleter
	newArkModel func(ctx context.Context, modelID string) (model.BaseChatModel, error)

	awsCfg aws.Config
	openai ChatCompletionAPI
}

// NewProvider initializes the backend selected by cfg.Provider. resolver may be nil, in which
// case Bedrock calls use the AWS_* credentials from cfg.
func NewProvider(ctx context.Context, cfg config.AIConfig, resolver CredentialResolver) (*Provider, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%s provider is not configured", cfg.Provider)
	}

	p := &Provider{cfg: cfg, resolver: resolver}
	if cfg.RequestsPerSec > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst)
	}

	switch cfg.Provider {
	case ProviderArk:
		p.arkModels = make(map[string]*ArkCompleter)
		p.newArkModel = func(ctx context.Context, modelID string) (model.BaseChatModel, error) {
			chatModel, err := cfg.NewChatModel(ctx, modelID)
			if err != nil {
				return nil, err
			}
			return chatModel, nil
		}
		if _, err := p.arkCompleter(ctx, cfg.DefaultModel()); err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
	case ProviderBedrock:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.BedrockRegion))
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		p.awsCfg = awsCfg
		if p.resolver == nil {
			p.resolver = StaticCredentials{
				AccessKeyID:     cfg.AWSAccessKeyID,
				SecretAccessKey: cfg.AWSSecretAccessKey,
				SessionToken:    cfg.AWSSessionToken,
			}
		}
	case ProviderOpenAI:
		p.openai = NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}

	return p, nil
}

// Name returns the configured backend name.
func (p *Provider) Name() string {
	return p.cfg.Provider
}

// StreamingEnabled 指示是否开启流式输出。
func (p *Provider) StreamingEnabled() bool {
	return p.cfg.StreamResponse
}

// ForIdentity returns the completer used for a session logged in as identity and bound to
// modelID (empty selects the default model).
func (p *Provider) ForIdentity(ctx context.Context, identity chat.Identity, modelID string) (Completer, error) {
	if modelID == "" {
		modelID = p.cfg.DefaultModel()
	}

	var next Completer
	switch p.cfg.Provider {
	case ProviderArk:
		completer, err := p.arkCompleter(ctx, modelID)
		if err != nil {
			return nil, newCompletionError(ProviderArk, KindUnknown, err)
		}
		next = completer
	case ProviderBedrock:
		creds, err := p.resolver.Resolve(ctx, identity)
		if err != nil {
			return nil, newCompletionError(ProviderBedrock, KindAuth, err)
		}
		awsCfg := p.awsCfg.Copy()
		if creds != nil {
			awsCfg.Credentials = aws.NewCredentialsCache(creds)
		}
		next = NewBedrockCompleter(bedrockruntime.NewFromConfig(awsCfg), modelID, p.cfg.AnthropicAPIVersion)
	case ProviderOpenAI:
		next = NewOpenAICompleter(p.openai, modelID)
	}

	return NewInstrumented(next, p.cfg.Provider, p.limiter, p.cfg.Timeout), nil
}

func (p *Provider) arkCompleter(ctx context.Context, modelID string) (*ArkCompleter, error) {
	p.arkMu.Lock()
	defer p.arkMu.Unlock()

	if completer, ok := p.arkModels[modelID]; ok {
		return completer, nil
	}
	chatModel, err := p.newArkModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	completer := NewArkCompleter(chatModel)
	p.arkModels[modelID] = completer
	return completer, nil
}

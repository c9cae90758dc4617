package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/course-advisor/backend/internal/memory"
)

// Supported completion providers.
const (
	ProviderArk     = "ark"
	ProviderBedrock = "bedrock"
	ProviderOpenAI  = "openai"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server        ServerConfig
	AI            AIConfig
	Memory        memory.Config
	Catalog       CatalogConfig
	Observability ObservabilityConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	mem, err := loadMemoryConfig()
	if err != nil {
		return nil, err
	}

	obs, err := loadObservabilityConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:        server,
		AI:            ai,
		Memory:        mem,
		Catalog:       loadCatalogConfig(),
		Observability: obs,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider string

	// Ark
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string

	// Bedrock
	BedrockRegion       string
	BedrockModel        string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSSessionToken     string
	AnthropicAPIVersion string

	// OpenAI compatible
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// AllowedModels lists the model ids a session may switch to. The first entry is the default.
	AllowedModels []string

	Temperature    float32
	TopP           float32
	MaxTokens      int
	StreamResponse bool

	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderBedrock:
		return c.BedrockRegion != "" && c.DefaultModel() != ""
	case ProviderOpenAI:
		return c.OpenAIAPIKey != "" && c.DefaultModel() != ""
	default:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	}
}

// DefaultModel returns the model used by sessions that did not pick one.
func (c AIConfig) DefaultModel() string {
	if len(c.AllowedModels) > 0 {
		return c.AllowedModels[0]
	}
	switch c.Provider {
	case ProviderBedrock:
		return c.BedrockModel
	case ProviderOpenAI:
		return c.OpenAIModel
	default:
		return c.Model
	}
}

// Models returns the selectable model ids.
func (c AIConfig) Models() []string {
	if len(c.AllowedModels) > 0 {
		return append([]string(nil), c.AllowedModels...)
	}
	if model := c.DefaultModel(); model != "" {
		return []string{model}
	}
	return nil
}

// NewChatModel 使用配置创建一个 Ark 模型实例。modelID 为空时使用 ARK_MODEL。
func (c AIConfig) NewChatModel(ctx context.Context, modelID string) (model.ChatModel, error) {
	if modelID == "" {
		modelID = c.Model
	}
	if modelID == "" || (c.APIKey == "" && (c.AccessKey == "" || c.SecretKey == "")) {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     modelID,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderBedrock))
	switch provider {
	case ProviderArk, ProviderBedrock, ProviderOpenAI:
	default:
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", provider)
	}

	temperature, err := parseFloatEnv("ANSWER_TEMPERATURE", 0.3)
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseFloatEnv("ANSWER_TOP_P", 0.9)
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseIntEnv("ANSWER_MAX_TOKENS", 640)
	if err != nil {
		return AIConfig{}, err
	}

	stream, err := parseBoolEnv("AI_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	timeoutSeconds, err := parseIntEnv("COMPLETION_TIMEOUT", 60)
	if err != nil {
		return AIConfig{}, err
	}

	rps, err := parseFloatEnv("COMPLETION_RPS", 0)
	if err != nil {
		return AIConfig{}, err
	}

	burst, err := parseIntEnv("COMPLETION_BURST", 1)
	if err != nil {
		return AIConfig{}, err
	}
	if burst < 1 {
		burst = 1
	}

	return AIConfig{
		Provider:            provider,
		APIKey:              strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:           strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:           strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:               strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:             getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:              getEnvOrDefault("ARK_REGION", "cn-beijing"),
		BedrockRegion:       getEnvOrDefault("BEDROCK_REGION", "ap-southeast-2"),
		BedrockModel:        getEnvOrDefault("BEDROCK_MODEL_ID", "anthropic.claude-3-5-sonnet-20241022-v2:0"),
		AWSAccessKeyID:      strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID")),
		AWSSecretAccessKey:  strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY")),
		AWSSessionToken:     strings.TrimSpace(os.Getenv("AWS_SESSION_TOKEN")),
		AnthropicAPIVersion: getEnvOrDefault("BEDROCK_ANTHROPIC_VERSION", "bedrock-2023-05-31"),
		OpenAIAPIKey:        strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:       strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		OpenAIModel:         getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		AllowedModels:       parseListEnv("ALLOWED_MODELS"),
		Temperature:         float32(temperature),
		TopP:                float32(topP),
		MaxTokens:           maxTokens,
		StreamResponse:      stream,
		Timeout:             time.Duration(timeoutSeconds) * time.Second,
		RequestsPerSec:      rps,
		Burst:               burst,
	}, nil
}

func loadMemoryConfig() (memory.Config, error) {
	cfg := memory.DefaultConfig()

	window, err := parseIntEnv("CONTEXT_WINDOW", cfg.ContextWindow)
	if err != nil {
		return memory.Config{}, err
	}
	interval, err := parseIntEnv("SUMMARY_INTERVAL", cfg.SummaryInterval)
	if err != nil {
		return memory.Config{}, err
	}
	maxTokens, err := parseIntEnv("SUMMARY_MAX_TOKENS", cfg.SummaryMaxTokens)
	if err != nil {
		return memory.Config{}, err
	}

	if window < 0 || interval < 0 || maxTokens < 1 {
		return memory.Config{}, fmt.Errorf("invalid memory settings: window=%d interval=%d maxTokens=%d", window, interval, maxTokens)
	}

	return memory.Config{
		ContextWindow:    window,
		SummaryInterval:  interval,
		SummaryMaxTokens: maxTokens,
	}, nil
}

// CatalogConfig locates the structured course data loaded at startup.
type CatalogConfig struct {
	Dir           string
	CoursesFile   string
	StructureFile string
}

func loadCatalogConfig() CatalogConfig {
	return CatalogConfig{
		Dir:           getEnvOrDefault("DATA_DIR", "data"),
		CoursesFile:   getEnvOrDefault("COURSES_FILE", "courses_data.json"),
		StructureFile: getEnvOrDefault("STRUCTURE_FILE", "cyber_security_program_structure.json"),
	}
}

// ObservabilityConfig 控制指标与链路追踪。
type ObservabilityConfig struct {
	ServiceName    string
	TracesExporter string
	MetricsEnabled bool
}

func loadObservabilityConfig() (ObservabilityConfig, error) {
	metrics, err := parseBoolEnv("METRICS_ENABLED", true)
	if err != nil {
		return ObservabilityConfig{}, err
	}

	exporter := strings.ToLower(getEnvOrDefault("OTEL_TRACES_EXPORTER", "none"))
	if exporter != "none" && exporter != "stdout" {
		return ObservabilityConfig{}, fmt.Errorf("invalid OTEL_TRACES_EXPORTER value %q", exporter)
	}

	return ObservabilityConfig{
		ServiceName:    getEnvOrDefault("OTEL_SERVICE_NAME", "course-advisor"),
		TracesExporter: exporter,
		MetricsEnabled: metrics,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseListEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}

	var items []string
	for _, part := range strings.Split(raw, ",") {
		if item := strings.TrimSpace(part); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	return *val, nil
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	val, err := parseOptionalFloatEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	return *val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider detection from the configured API keys
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/martinemde/toolloop/agentloop"
)

// Settings holds all application configuration.
type Settings struct {
	LLM       LLMConfig
	Agent     AgentConfig
	Log       LogConfig
	HooksFile string
}

// LLMConfig holds model backend configuration.
type LLMConfig struct {
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
}

// AgentConfig holds per-turn limits.
type AgentConfig struct {
	MaxRounds           int
	MaxToolInputRetries int
	LoopDetection       bool
	ToolOutputLimit     int
	SubAgentDepth       int
}

// LogConfig selects where and how logs are written.
type LogConfig struct {
	Level  string
	File   string
	Format string
}

// providerInfo holds configuration for a specific provider.
type providerInfo struct {
	apiKeyEnv string
}

// Supported providers, in detection order.
var providerOrder = []string{"anthropic", "openai", "gemini"}

var providers = map[string]providerInfo{
	"anthropic": {"ANTHROPIC_API_KEY"},
	"openai":    {"OPENAI_API_KEY"},
	"gemini":    {"GEMINI_API_KEY"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// New loads settings from TOOLLOOP_* environment variables. When
// TOOLLOOP_PROVIDER is unset the first provider with an API key is used.
func New() (Settings, error) {
	provider := normalizeProvider(os.Getenv("TOOLLOOP_PROVIDER"))
	if provider == "" {
		provider = DetectProvider()
	} else if _, err := getProviderInfo(provider); err != nil {
		return Settings{}, err
	}

	maxTokens, err := getEnvInt("TOOLLOOP_MAX_TOKENS", 4096)
	if err != nil {
		return Settings{}, err
	}

	temperature, err := getEnvFloat64("TOOLLOOP_TEMPERATURE", 0.7)
	if err != nil {
		return Settings{}, err
	}

	maxRounds, err := getEnvInt("TOOLLOOP_MAX_ROUNDS", 25)
	if err != nil {
		return Settings{}, err
	}
	if maxRounds <= 0 {
		return Settings{}, fmt.Errorf("invalid value for TOOLLOOP_MAX_ROUNDS: %d: must be positive", maxRounds)
	}

	maxRetries, err := getEnvInt("TOOLLOOP_MAX_TOOL_INPUT_RETRIES", 2)
	if err != nil {
		return Settings{}, err
	}

	loopDetection, err := getEnvBool("TOOLLOOP_LOOP_DETECTION", true)
	if err != nil {
		return Settings{}, err
	}

	outputLimit, err := getEnvInt("TOOLLOOP_TOOL_OUTPUT_LIMIT", agentloop.DefaultToolOutputLimit)
	if err != nil {
		return Settings{}, err
	}

	subAgentDepth, err := getEnvInt("TOOLLOOP_SUBAGENT_DEPTH", 1)
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		LLM: LLMConfig{
			Provider:    provider,
			Model:       os.Getenv("TOOLLOOP_MODEL"),
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
		Agent: AgentConfig{
			MaxRounds:           maxRounds,
			MaxToolInputRetries: maxRetries,
			LoopDetection:       loopDetection,
			ToolOutputLimit:     outputLimit,
			SubAgentDepth:       subAgentDepth,
		},
		Log: LogConfig{
			Level:  getEnvString("TOOLLOOP_LOG_LEVEL", "info"),
			File:   os.Getenv("TOOLLOOP_LOG_FILE"),
			Format: getEnvString("TOOLLOOP_LOG_FORMAT", "text"),
		},
		HooksFile: os.Getenv("TOOLLOOP_HOOKS_FILE"),
	}, nil
}

// LoopConfig converts the agent settings into loop limits.
func (s Settings) LoopConfig() agentloop.LoopConfig {
	cfg := agentloop.DefaultLoopConfig()
	cfg.MaxRounds = s.Agent.MaxRounds
	cfg.MaxToolInputRetries = s.Agent.MaxToolInputRetries
	cfg.EnableLoopDetection = s.Agent.LoopDetection
	cfg.ToolOutputLimit = s.Agent.ToolOutputLimit
	return cfg
}

// DetectProvider returns the first supported provider whose API key is set,
// or "" when none is.
func DetectProvider() string {
	for _, name := range providerOrder {
		if os.Getenv(providers[name].apiKeyEnv) != "" {
			return name
		}
	}
	return ""
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// SupportedProviders returns the supported provider names.
func SupportedProviders() []string {
	return append([]string(nil), providerOrder...)
}

func normalizeProvider(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// Environment variable helpers with proper error handling

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return b, nil
}

package config

import "time"

// DefaultConfig returns the configuration used when neither the YAML file nor
// the environment overrides a value. The default council mirrors the models
// the service ships with; deployments are expected to override it.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			MetricsPort:     9090,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    10 * time.Minute, // deliberations are slow
			ShutdownTimeout: 30 * time.Second,
			RateLimitRPS:    5,
			RateLimitBurst:  10,
		},
		OpenRouter: OpenRouterConfig{
			BaseURL:       "https://openrouter.ai/api",
			Timeout:       120 * time.Second,
			Title:         "councilflow",
			OutboundRPS:   10,
			OutboundBurst: 20,
		},
		Council: CouncilConfig{
			Members: []string{
				"anthropic/claude-haiku-4.5",
				"google/gemini-3-flash-preview",
				"openai/gpt-5-mini",
				"x-ai/grok-4.1-fast",
			},
			ReasoningEffort:   "medium",
			AnswerTokenBudget: 8000,
		},
		Storage: StorageConfig{
			Backend: "file",
			DataDir: "data/conversations",
		},
		Redis: RedisConfig{
			CacheTTL: time.Hour,
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stdout"},
		},
	}
}

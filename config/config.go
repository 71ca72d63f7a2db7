package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/councilflow/councilflow/llm"
)

// Config is the complete councilflow configuration. It is loaded once at
// startup and passed by value into the components that need it; the core
// pipeline never reads process-wide state.
type Config struct {
	Server     ServerConfig     `yaml:"server" env:"SERVER"`
	OpenRouter OpenRouterConfig `yaml:"openrouter" env:"OPENROUTER"`
	Council    CouncilConfig    `yaml:"council" env:"COUNCIL"`
	Storage    StorageConfig    `yaml:"storage" env:"STORAGE"`
	Redis      RedisConfig      `yaml:"redis" env:"REDIS"`
	Log        LogConfig        `yaml:"log" env:"LOG"`
}

// ServerConfig configures the HTTP and metrics listeners.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// Per-client request rate limit.
	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// CORSAllowedOrigins lists origins allowed to call the API. Empty
	// disables cross-origin requests.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// OpenRouterConfig configures the upstream model gateway.
type OpenRouterConfig struct {
	APIKey  string        `yaml:"api_key" env:"API_KEY"`
	BaseURL string        `yaml:"base_url" env:"BASE_URL"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	Referer string        `yaml:"referer" env:"REFERER"`
	Title   string        `yaml:"title" env:"TITLE"`
	// Process-wide outbound throttle across all member calls.
	OutboundRPS   float64 `yaml:"outbound_rps" env:"OUTBOUND_RPS"`
	OutboundBurst int     `yaml:"outbound_burst" env:"OUTBOUND_BURST"`
}

// CouncilConfig fixes the deliberation round: the ordered member list, the
// chairman, and prompt shaping.
type CouncilConfig struct {
	// Members is the ordered list of OpenRouter model ids. Order is
	// meaningful: it seeds anonymization and breaks aggregation ties.
	Members []string `yaml:"members" env:"MEMBERS"`
	// Chairman synthesizes the final answer. Defaults to the first member.
	Chairman string `yaml:"chairman" env:"CHAIRMAN"`
	// ReasoningEffort: high, medium, low, minimal, or none.
	ReasoningEffort string `yaml:"reasoning_effort" env:"REASONING_EFFORT"`
	// AnswerTokenBudget caps each quoted answer inside stage-2/3 prompts.
	// Zero disables trimming.
	AnswerTokenBudget int `yaml:"answer_token_budget" env:"ANSWER_TOKEN_BUDGET"`
}

// StorageConfig selects and configures the conversation store backend.
type StorageConfig struct {
	// Backend: "file" or "sqlite".
	Backend string `yaml:"backend" env:"BACKEND"`
	// DataDir holds per-conversation JSON files for the file backend.
	DataDir string `yaml:"data_dir" env:"DATA_DIR"`
	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"`
}

// RedisConfig configures the optional model-catalog cache. An empty Addr
// disables caching.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"ADDR"`
	Password string        `yaml:"password" env:"PASSWORD"`
	DB       int           `yaml:"db" env:"DB"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// LogConfig configures zap.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json or console.
	Format      string   `yaml:"format" env:"FORMAT"`
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// Validate checks invariants that must hold before the pipeline can run.
func (c *Config) Validate() error {
	if len(c.Council.Members) == 0 {
		return fmt.Errorf("council.members must not be empty")
	}
	seen := make(map[string]bool, len(c.Council.Members))
	for _, m := range c.Council.Members {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("council.members contains an empty model id")
		}
		if seen[m] {
			return fmt.Errorf("council.members contains duplicate model id %q", m)
		}
		seen[m] = true
	}
	if c.Council.Chairman != "" && !seen[c.Council.Chairman] {
		return fmt.Errorf("council.chairman %q is not a council member", c.Council.Chairman)
	}
	if _, ok := llm.ParseReasoningEffort(c.Council.ReasoningEffort); !ok {
		return fmt.Errorf("council.reasoning_effort %q is not one of high, medium, low, minimal, none", c.Council.ReasoningEffort)
	}
	switch c.Storage.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("storage.backend %q is not one of file, sqlite", c.Storage.Backend)
	}
	if c.OpenRouter.APIKey == "" {
		return fmt.Errorf("openrouter.api_key is required")
	}
	return nil
}

// EffectiveChairman returns the chairman model id, defaulting to the first
// council member.
func (c *CouncilConfig) EffectiveChairman() string {
	if c.Chairman != "" {
		return c.Chairman
	}
	if len(c.Members) > 0 {
		return c.Members[0]
	}
	return ""
}

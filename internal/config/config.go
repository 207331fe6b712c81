package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents runtime configuration for the service.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	AWS       AWSConfig       `mapstructure:"aws"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Voice     VoiceConfig     `mapstructure:"voice"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Security  SecurityConfig  `mapstructure:"security"`
	Sessions  SessionConfig   `mapstructure:"sessions"`
}

type ServerConfig struct {
	Address        string `mapstructure:"address"`
	Environment    string `mapstructure:"environment"`
	UploadDir      string `mapstructure:"upload_dir"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// Production reports whether detailed errors must be hidden from clients.
func (s ServerConfig) Production() bool {
	return strings.EqualFold(s.Environment, "production")
}

type AWSConfig struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// ChatConfig selects the completion provider.
// Provider is one of bedrock, claude, openai, gemini.
type ChatConfig struct {
	Provider     string `mapstructure:"provider"`
	Model        string `mapstructure:"model"`
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	MaxTokens    int    `mapstructure:"max_tokens"`
	HistoryLimit int    `mapstructure:"history_limit"`
	FileTool     bool   `mapstructure:"file_tool"`
}

type AgentConfig struct {
	AgentID      string `mapstructure:"agent_id"`
	AliasID      string `mapstructure:"alias_id"`
	SystemPrompt string `mapstructure:"system_prompt"`
	ContextFiles int    `mapstructure:"context_files"`
}

type VoiceConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	VoiceID string        `mapstructure:"voice_id"`
	BaseURL string        `mapstructure:"base_url"`
	ModelID string        `mapstructure:"model_id"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RateLimitConfig struct {
	WindowMS    int    `mapstructure:"window_ms"`
	MaxRequests int    `mapstructure:"max_requests"`
	Backend     string `mapstructure:"backend"`
}

// Window returns the rate-limit window as a duration.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowMS) * time.Millisecond
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Params   string `mapstructure:"params"`
}

type SecurityConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	CORSCredentials bool     `mapstructure:"cors_credentials"`
	CSPEnabled      bool     `mapstructure:"csp_enabled"`
	SecureHeaders   bool     `mapstructure:"secure_headers"`
	ForceHTTPS      bool     `mapstructure:"force_https"`
	BlockSuspicious bool     `mapstructure:"block_suspicious"`
	APIKey          string   `mapstructure:"api_key"`
}

type SessionConfig struct {
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

var defaults = map[string]any{
	"server.address":          ":5000",
	"server.environment":      "development",
	"server.upload_dir":       "./uploads",
	"server.max_upload_bytes": 10 << 20,

	"aws.region": "us-east-1",

	"chat.provider":      "bedrock",
	"chat.model":         "anthropic.claude-3-sonnet-20240229-v1:0",
	"chat.max_tokens":    2000,
	"chat.history_limit": 10,
	"chat.file_tool":     true,

	"agent.system_prompt": "You are Veron, a helpful teaching assistant. Answer clearly and cite uploaded documents when they are relevant.",
	"agent.context_files": 3,

	"voice.voice_id": "ueSxRO0nLF1bj93J2hVt",
	"voice.base_url": "https://api.elevenlabs.io",
	"voice.model_id": "eleven_multilingual_v2",
	"voice.timeout":  "60s",

	"rate_limit.window_ms":    900000,
	"rate_limit.max_requests": 100,
	"rate_limit.backend":      "memory",

	"redis.host": "127.0.0.1",
	"redis.port": 6379,

	"database.driver": "sqlite3",
	"database.dsn":    ":memory:",

	"security.allowed_origins":  []string{"http://localhost:3000"},
	"security.cors_credentials": true,
	"security.csp_enabled":      true,
	"security.secure_headers":   true,
	"security.force_https":      false,
	"security.block_suspicious": true,

	"sessions.idle_timeout":     "1h",
	"sessions.cleanup_interval": "10m",
}

// environment variable names understood for backwards compatibility with
// existing deployments.
var envBindings = map[string][]string{
	"server.address":           {"VERON_ADDR"},
	"server.environment":       {"NODE_ENV", "VERON_ENV"},
	"aws.region":               {"AWS_REGION"},
	"aws.access_key_id":        {"AWS_ACCESS_KEY_ID"},
	"aws.secret_access_key":    {"AWS_SECRET_ACCESS_KEY"},
	"chat.model":               {"BEDROCK_MODEL_ID"},
	"agent.agent_id":           {"BEDROCK_AGENT_ID"},
	"agent.alias_id":           {"BEDROCK_AGENT_ALIAS_ID"},
	"voice.api_key":            {"ELEVENLABS_API_KEY"},
	"voice.voice_id":           {"ELEVEN_VOICE_ID"},
	"rate_limit.window_ms":     {"RATE_LIMIT_WINDOW_MS"},
	"rate_limit.max_requests":  {"RATE_LIMIT_MAX_REQUESTS"},
	"rate_limit.backend":       {"RATE_LIMIT_BACKEND"},
	"security.allowed_origins": {"ALLOWED_ORIGINS"},
	"security.api_key":         {"API_KEY"},
	"redis.host":               {"REDIS_HOST"},
	"redis.port":               {"REDIS_PORT"},
	"redis.password":           {"REDIS_PASSWORD"},
	"database.driver":          {"VERON_DB"},
	"database.dsn":             {"DATABASE_DSN"},
	"port":                     {"PORT"},
}

// Load reads configuration from the provided path. An empty path means
// defaults plus environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var baseDir string
	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		v.SetConfigFile(absPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", absPath, err)
		}
		baseDir = filepath.Dir(absPath)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if port := v.GetString("port"); port != "" {
		cfg.Server.Address = ":" + port
	}
	if err := cfg.normalize(baseDir); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize(baseDir string) error {
	if c.RateLimit.WindowMS <= 0 || c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("rate_limit window_ms and max_requests must be positive")
	}
	switch c.RateLimit.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported rate_limit backend: %s", c.RateLimit.Backend)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server max_upload_bytes must be positive")
	}
	if baseDir != "" && !filepath.IsAbs(c.Server.UploadDir) {
		c.Server.UploadDir = filepath.Join(baseDir, c.Server.UploadDir)
	}
	origins := make([]string, 0, len(c.Security.AllowedOrigins))
	for _, o := range c.Security.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.Security.AllowedOrigins = origins
	c.Chat.Provider = strings.ToLower(c.Chat.Provider)
	return nil
}

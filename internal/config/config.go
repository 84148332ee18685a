package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// CurrentVersion is the only config schema version this build reads.
const CurrentVersion = 1

// Config is the complete repochat configuration.
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Server    ServerConfig    `json:"server" mapstructure:"server"`
	Ingest    IngestConfig    `json:"ingest" mapstructure:"ingest"`
	Chunking  ChunkingConfig  `json:"chunking" mapstructure:"chunking"`
	Embedding EmbeddingConfig `json:"embedding" mapstructure:"embedding"`
	LLM       LLMConfig       `json:"llm" mapstructure:"llm"`
	Retrieval RetrievalConfig `json:"retrieval" mapstructure:"retrieval"`
	Retry     RetryConfig     `json:"retry" mapstructure:"retry"`
	Jobs      JobsConfig      `json:"jobs" mapstructure:"jobs"`
	Sessions  SessionsConfig  `json:"sessions" mapstructure:"sessions"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host           string `json:"host" mapstructure:"host"`
	Port           int    `json:"port" mapstructure:"port"`
	ReadTimeoutMs  int    `json:"readTimeoutMs" mapstructure:"readTimeoutMs"`
	WriteTimeoutMs int    `json:"writeTimeoutMs" mapstructure:"writeTimeoutMs"`
	CorsOrigin     string `json:"corsOrigin" mapstructure:"corsOrigin"`
}

// IngestConfig controls how repositories are fetched and walked.
type IngestConfig struct {
	FetchTimeoutMs   int      `json:"fetchTimeoutMs" mapstructure:"fetchTimeoutMs"`
	GitBinary        string   `json:"gitBinary" mapstructure:"gitBinary"`
	WorkDir          string   `json:"workDir" mapstructure:"workDir"`
	MaxFileBytes     int64    `json:"maxFileBytes" mapstructure:"maxFileBytes"`
	Ignore           []string `json:"ignore" mapstructure:"ignore"`
	EmbedBatchSize   int      `json:"embedBatchSize" mapstructure:"embedBatchSize"`
	EmbedConcurrency int      `json:"embedConcurrency" mapstructure:"embedConcurrency"`

	// AllowLocal admits local directories and file:// URLs as sources. The
	// CLI enables it for its own commands; the HTTP server honours the setting.
	AllowLocal bool `json:"allowLocal" mapstructure:"allowLocal"`
}

// ChunkingConfig contains fragment size policy
type ChunkingConfig struct {
	FixedSize         int    `json:"fixedSize" mapstructure:"fixedSize"`
	FixedOverlap      int    `json:"fixedOverlap" mapstructure:"fixedOverlap"`
	LanguageChunkSize int    `json:"languageChunkSize" mapstructure:"languageChunkSize"`
	LanguagesFile     string `json:"languagesFile" mapstructure:"languagesFile"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider   string `json:"provider" mapstructure:"provider"`
	Model      string `json:"model" mapstructure:"model"`
	BaseURL    string `json:"baseUrl" mapstructure:"baseUrl"`
	APIKeyEnv  string `json:"apiKeyEnv" mapstructure:"apiKeyEnv"`
	Dimensions int    `json:"dimensions" mapstructure:"dimensions"`
	TaskType   string `json:"taskType" mapstructure:"taskType"`
}

// LLMConfig selects the generation provider.
type LLMConfig struct {
	Provider    string  `json:"provider" mapstructure:"provider"`
	Model       string  `json:"model" mapstructure:"model"`
	BaseURL     string  `json:"baseUrl" mapstructure:"baseUrl"`
	APIKeyEnv   string  `json:"apiKeyEnv" mapstructure:"apiKeyEnv"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"maxTokens" mapstructure:"maxTokens"`
}

// RetrievalConfig contains search settings
type RetrievalConfig struct {
	TopK int `json:"topK" mapstructure:"topK"`
}

// RetryConfig bounds retries of external calls.
type RetryConfig struct {
	MaxAttempts   int `json:"maxAttempts" mapstructure:"maxAttempts"`
	BaseDelayMs   int `json:"baseDelayMs" mapstructure:"baseDelayMs"`
	MaxDelayMs    int `json:"maxDelayMs" mapstructure:"maxDelayMs"`
	CallTimeoutMs int `json:"callTimeoutMs" mapstructure:"callTimeoutMs"`
}

// JobsConfig contains background ingestion settings
type JobsConfig struct {
	Workers        int    `json:"workers" mapstructure:"workers"`
	QueueSize      int    `json:"queueSize" mapstructure:"queueSize"`
	DBPath         string `json:"dbPath" mapstructure:"dbPath"`
	RetentionHours int    `json:"retentionHours" mapstructure:"retentionHours"`
}

// SessionsConfig contains session table settings
type SessionsConfig struct {
	Shards int `json:"shards" mapstructure:"shards"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	File       string `json:"file" mapstructure:"file"`
	MaxSize    string `json:"maxSize" mapstructure:"maxSize"`
	MaxBackups int    `json:"maxBackups" mapstructure:"maxBackups"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Server: ServerConfig{
			Host:           "localhost",
			Port:           5000,
			ReadTimeoutMs:  30000,
			WriteTimeoutMs: 600000,
			CorsOrigin:     "*",
		},
		Ingest: IngestConfig{
			FetchTimeoutMs:   120000,
			GitBinary:        "git",
			MaxFileBytes:     1 << 20,
			Ignore:           []string{"**/node_modules/**", "**/vendor/**", "**/*.min.js"},
			EmbedBatchSize:   32,
			EmbedConcurrency: 4,
		},
		Chunking: ChunkingConfig{
			FixedSize:         100,
			FixedOverlap:      20,
			LanguageChunkSize: 4000,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			BaseURL:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
			TaskType:  "RETRIEVAL_DOCUMENT",
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: 0,
			MaxTokens:   1024,
		},
		Retrieval: RetrievalConfig{TopK: 2},
		Retry: RetryConfig{
			MaxAttempts:   3,
			BaseDelayMs:   200,
			MaxDelayMs:    5000,
			CallTimeoutMs: 60000,
		},
		Jobs: JobsConfig{
			Workers:        2,
			QueueSize:      64,
			DBPath:         ":memory:",
			RetentionHours: 24,
		},
		Sessions: SessionsConfig{Shards: 16},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSize:    "10MB",
			MaxBackups: 3,
		},
	}
}

// FetchTimeout returns the clone deadline.
func (c IngestConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMs) * time.Millisecond
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + itoa(c.Port)
}

// DirName is the per-project config directory.
const DirName = ".repochat"

// LoadConfig loads configuration from <dir>/.repochat/config.json.
// A missing file yields DefaultConfig.
func LoadConfig(dir string) (*Config, error) {
	return loadFromViper(func(v *viper.Viper) {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(filepath.Join(dir, DirName))
	})
}

// LoadConfigFromPath loads an explicit file. The format follows its extension
// (json, yaml, yml or toml).
func LoadConfigFromPath(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return loadFromViper(func(v *viper.Viper) {
		v.SetConfigFile(path)
	})
}

func loadFromViper(setup func(*viper.Viper)) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	setup(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every default key so partial files keep the rest.
func setDefaults(v *viper.Viper) {
	data, _ := json.Marshal(DefaultConfig())
	var tree map[string]interface{}
	_ = json.Unmarshal(data, &tree)

	var walk func(prefix string, m map[string]interface{})
	walk = func(prefix string, m map[string]interface{}) {
		for k, val := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if sub, ok := val.(map[string]interface{}); ok {
				walk(key, sub)
				continue
			}
			v.SetDefault(key, val)
		}
	}
	walk("", tree)
}

// Save writes the configuration to <dir>/.repochat/config.json
func (c *Config) Save(dir string) error {
	if err := os.MkdirAll(filepath.Join(dir, DirName), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, DirName, "config.json"), data, 0o644)
}

var (
	embeddingProviders = map[string]bool{"openai": true, "ollama": true, "genai": true, "hash": true}
	llmProviders       = map[string]bool{"openai": true, "ollama": true, "genai": true}
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch {
	case c.Version != CurrentVersion:
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return &ConfigError{Field: "server.port", Message: "must be between 0 and 65535"}
	case c.Chunking.FixedSize <= 0:
		return &ConfigError{Field: "chunking.fixedSize", Message: "must be positive"}
	case c.Chunking.FixedOverlap < 0 || c.Chunking.FixedOverlap >= c.Chunking.FixedSize:
		return &ConfigError{Field: "chunking.fixedOverlap", Message: "must be in [0, fixedSize)"}
	case c.Chunking.LanguageChunkSize <= 0:
		return &ConfigError{Field: "chunking.languageChunkSize", Message: "must be positive"}
	case !embeddingProviders[c.Embedding.Provider]:
		return &ConfigError{Field: "embedding.provider", Message: "unknown provider " + c.Embedding.Provider}
	case !llmProviders[c.LLM.Provider]:
		return &ConfigError{Field: "llm.provider", Message: "unknown provider " + c.LLM.Provider}
	case c.Retrieval.TopK < 1:
		return &ConfigError{Field: "retrieval.topK", Message: "must be at least 1"}
	case c.Retry.MaxAttempts < 1:
		return &ConfigError{Field: "retry.maxAttempts", Message: "must be at least 1"}
	case c.Jobs.Workers < 1:
		return &ConfigError{Field: "jobs.workers", Message: "must be at least 1"}
	case c.Sessions.Shards < 1:
		return &ConfigError{Field: "sessions.shards", Message: "must be at least 1"}
	case c.Ingest.EmbedBatchSize < 1:
		return &ConfigError{Field: "ingest.embedBatchSize", Message: "must be at least 1"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

package config

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// EnvConfigPath names an explicit config file.
const EnvConfigPath = "REPOCHAT_CONFIG_PATH"

// EnvOverride records one environment variable that changed a value.
type EnvOverride struct {
	EnvVar    string `json:"envVar"`
	Path      string `json:"path"`
	FromValue string `json:"value"`
}

// LoadResult is a loaded config plus where it came from.
type LoadResult struct {
	Config       *Config       `json:"config"`
	ConfigPath   string        `json:"configPath,omitempty"`
	UsedDefaults bool          `json:"usedDefaults"`
	EnvOverrides []EnvOverride `json:"envOverrides,omitempty"`
}

// envMapping binds a variable to a config key. apply reports false when raw does not parse.
type envMapping struct {
	path  string
	apply func(c *Config, raw string) bool
}

func strVar(path string, set func(*Config, string)) envMapping {
	return envMapping{path, func(c *Config, raw string) bool { set(c, raw); return true }}
}

func intVar(path string, set func(*Config, int)) envMapping {
	return envMapping{path, func(c *Config, raw string) bool {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return false
		}
		set(c, n)
		return true
	}}
}

func floatVar(path string, set func(*Config, float64)) envMapping {
	return envMapping{path, func(c *Config, raw string) bool {
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return false
		}
		set(c, f)
		return true
	}}
}

func boolVar(path string, set func(*Config, bool)) envMapping {
	return envMapping{path, func(c *Config, raw string) bool {
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return false
		}
		set(c, b)
		return true
	}}
}

// listVar splits on commas.
func listVar(path string, set func(*Config, []string)) envMapping {
	return envMapping{path, func(c *Config, raw string) bool {
		var out []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		set(c, out)
		return true
	}}
}

var envVarMappings = map[string]envMapping{
	"REPOCHAT_HOST":               strVar("server.host", func(c *Config, v string) { c.Server.Host = v }),
	"REPOCHAT_PORT":               intVar("server.port", func(c *Config, v int) { c.Server.Port = v }),
	"REPOCHAT_CORS_ORIGIN":        strVar("server.corsOrigin", func(c *Config, v string) { c.Server.CorsOrigin = v }),
	"REPOCHAT_FETCH_TIMEOUT_MS":   intVar("ingest.fetchTimeoutMs", func(c *Config, v int) { c.Ingest.FetchTimeoutMs = v }),
	"REPOCHAT_WORK_DIR":           strVar("ingest.workDir", func(c *Config, v string) { c.Ingest.WorkDir = v }),
	"REPOCHAT_INGEST_ALLOW_LOCAL": boolVar("ingest.allowLocal", func(c *Config, v bool) { c.Ingest.AllowLocal = v }),
	"REPOCHAT_INGEST_IGNORE":      listVar("ingest.ignore", func(c *Config, v []string) { c.Ingest.Ignore = v }),
	"REPOCHAT_EMBED_BATCH_SIZE":   intVar("ingest.embedBatchSize", func(c *Config, v int) { c.Ingest.EmbedBatchSize = v }),
	"REPOCHAT_LANGUAGES_FILE":     strVar("chunking.languagesFile", func(c *Config, v string) { c.Chunking.LanguagesFile = v }),
	"REPOCHAT_EMBEDDING_PROVIDER": strVar("embedding.provider", func(c *Config, v string) { c.Embedding.Provider = v }),
	"REPOCHAT_EMBEDDING_MODEL":    strVar("embedding.model", func(c *Config, v string) { c.Embedding.Model = v }),
	"REPOCHAT_EMBEDDING_BASE_URL": strVar("embedding.baseUrl", func(c *Config, v string) { c.Embedding.BaseURL = v }),
	"REPOCHAT_LLM_PROVIDER":       strVar("llm.provider", func(c *Config, v string) { c.LLM.Provider = v }),
	"REPOCHAT_LLM_MODEL":          strVar("llm.model", func(c *Config, v string) { c.LLM.Model = v }),
	"REPOCHAT_LLM_BASE_URL":       strVar("llm.baseUrl", func(c *Config, v string) { c.LLM.BaseURL = v }),
	"REPOCHAT_LLM_TEMPERATURE":    floatVar("llm.temperature", func(c *Config, v float64) { c.LLM.Temperature = v }),
	"REPOCHAT_TOP_K":              intVar("retrieval.topK", func(c *Config, v int) { c.Retrieval.TopK = v }),
	"REPOCHAT_RETRY_MAX_ATTEMPTS": intVar("retry.maxAttempts", func(c *Config, v int) { c.Retry.MaxAttempts = v }),
	"REPOCHAT_CALL_TIMEOUT_MS":    intVar("retry.callTimeoutMs", func(c *Config, v int) { c.Retry.CallTimeoutMs = v }),
	"REPOCHAT_JOBS_WORKERS":       intVar("jobs.workers", func(c *Config, v int) { c.Jobs.Workers = v }),
	"REPOCHAT_JOBS_DB_PATH":       strVar("jobs.dbPath", func(c *Config, v string) { c.Jobs.DBPath = v }),
	"REPOCHAT_LOG_LEVEL":          strVar("logging.level", func(c *Config, v string) { c.Logging.Level = v }),
	"REPOCHAT_LOG_FILE":           strVar("logging.file", func(c *Config, v string) { c.Logging.File = v }),
}

// applyEnvOverrides applies REPOCHAT_* variables to cfg. Values that do not parse are skipped.
func applyEnvOverrides(cfg *Config) []EnvOverride {
	var applied []EnvOverride
	for _, name := range GetSupportedEnvVars() {
		raw, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		m := envVarMappings[name]
		if !m.apply(cfg, raw) {
			continue
		}
		applied = append(applied, EnvOverride{EnvVar: name, Path: m.path, FromValue: raw})
	}
	return applied
}

// LoadConfigWithDetails resolves the config file (REPOCHAT_CONFIG_PATH, then
// explicitPath, then <dir>/.repochat/config.json), applies env overrides and validates.
func LoadConfigWithDetails(dir, explicitPath string) (*LoadResult, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		path = explicitPath
	}

	result := &LoadResult{}
	var err error
	switch {
	case path != "":
		result.Config, err = LoadConfigFromPath(path)
		result.ConfigPath = path
	default:
		standard := configFilePath(dir)
		if _, statErr := os.Stat(standard); statErr == nil {
			result.Config, err = LoadConfig(dir)
			result.ConfigPath = standard
		} else {
			result.Config = DefaultConfig()
			result.UsedDefaults = true
		}
	}
	if err != nil {
		return nil, err
	}

	result.EnvOverrides = applyEnvOverrides(result.Config)
	if err := result.Config.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetSupportedEnvVars returns every recognised variable, sorted.
func GetSupportedEnvVars() []string {
	names := make([]string, 0, len(envVarMappings))
	for name := range envVarMappings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnvVarPath returns the config key an environment variable controls.
func EnvVarPath(name string) string {
	return envVarMappings[name].path
}

func configFilePath(dir string) string {
	return filepath.Join(dir, DirName, "config.json")
}

func itoa(n int) string { return strconv.Itoa(n) }

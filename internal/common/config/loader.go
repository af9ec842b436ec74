// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml (plus config.<env>.yaml) with environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional overlay

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env", // tests in test/e2e/
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from the conventional variable names.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Oracle.APIKey == "" {
		var name string
		switch cfg.Oracle.Provider {
		case OracleOpenAI:
			name = "OPENAI_API_KEY"
		case OracleAnthropic:
			name = "ANTHROPIC_API_KEY"
		case OracleGemini:
			name = "GEMINI_API_KEY"
		case OracleHTTP:
			name = "GENAI_API_KEY"
		}
		if val := os.Getenv(name); name != "" && val != "" {
			cfg.Oracle.APIKey = val
		}
	}

	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Database.SQLite.Path == "" {
		if val := os.Getenv("AGENCIES_DB_PATH"); val != "" {
			cfg.Database.SQLite.Path = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "hajj-assistant"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if cfg.Database.SQLite.Path == "" {
		cfg.Database.SQLite.Path = "data/hajj_companies.db"
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Oracle.Provider == "" {
		cfg.Oracle.Provider = OracleOpenAI
	}
	if cfg.Oracle.Model == "" {
		switch cfg.Oracle.Provider {
		case OracleAnthropic:
			cfg.Oracle.Model = "claude-3-5-haiku-latest"
		case OracleGemini:
			cfg.Oracle.Model = "gemini-2.0-flash"
		default:
			cfg.Oracle.Model = "gpt-4o-mini"
		}
	}
	if cfg.Oracle.Timeout == 0 {
		cfg.Oracle.Timeout = 8000
	}
	if cfg.Oracle.MaxTokens == 0 {
		cfg.Oracle.MaxTokens = 400
	}
	if cfg.Oracle.RatePerSecond == 0 {
		cfg.Oracle.RatePerSecond = 5
	}
	if cfg.Oracle.Burst == 0 {
		cfg.Oracle.Burst = 10
	}
	if cfg.Oracle.BreakerFailures == 0 {
		cfg.Oracle.BreakerFailures = 5
	}
	if cfg.Oracle.BreakerCooldown == 0 {
		cfg.Oracle.BreakerCooldown = 30000
	}
	if cfg.Oracle.CacheSize == 0 {
		cfg.Oracle.CacheSize = 512
	}

	if cfg.Resolver.MatchThreshold == 0 {
		cfg.Resolver.MatchThreshold = 0.55
	}
	if cfg.Resolver.AmbiguityGap == 0 {
		cfg.Resolver.AmbiguityGap = 0.05
	}
	if cfg.Resolver.MaxCandidates == 0 {
		cfg.Resolver.MaxCandidates = 5
	}
	if cfg.Resolver.RowCap == 0 {
		cfg.Resolver.RowCap = 200
	}
	if cfg.Resolver.QueryTimeout == 0 {
		cfg.Resolver.QueryTimeout = 3000
	}
	if cfg.Resolver.TurnTimeout == 0 {
		cfg.Resolver.TurnTimeout = 20000
	}
	if cfg.Resolver.MaxClarificationRounds == 0 {
		cfg.Resolver.MaxClarificationRounds = 1
	}
	if cfg.Resolver.GeneralAnswerTimeout == 0 {
		cfg.Resolver.GeneralAnswerTimeout = 8000
	}
	if cfg.Resolver.GeneralAnswerMaxChars == 0 {
		cfg.Resolver.GeneralAnswerMaxChars = 1200
	}

	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 1800000
	}
	if cfg.Session.LockTTL == 0 {
		cfg.Session.LockTTL = 30000
	}

	if len(cfg.Reports.Sinks) == 0 {
		cfg.Reports.Sinks = []string{"redis"}
	}
	if cfg.Reports.Stream == "" {
		cfg.Reports.Stream = "hajj:fraud-reports"
	}
	if cfg.Reports.StreamMax == 0 {
		cfg.Reports.StreamMax = 100000
	}
	if cfg.Reports.Table == "" {
		cfg.Reports.Table = "complaints"
	}
	if cfg.Reports.Index == "" {
		cfg.Reports.Index = "fraud-reports"
	}

	if cfg.HTTP.Address == "" {
		cfg.HTTP.Address = ":8080"
	}
	if cfg.Registry.Path == "" {
		cfg.Registry.Path = "configs/activity-registry.json"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda is enabled")
	}

	switch cfg.Database.Driver {
	case DriverSQLite:
		if cfg.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required")
		}
	case DriverPostgres:
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, cfg.Database.Driver)
	}

	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	switch cfg.Oracle.Provider {
	case OracleOpenAI, OracleAnthropic, OracleGemini:
	case OracleHTTP:
		if cfg.Oracle.BaseURL == "" {
			return fmt.Errorf("oracle.base_url is required for the http provider")
		}
	default:
		return fmt.Errorf("unknown oracle.provider %q", cfg.Oracle.Provider)
	}

	if cfg.Resolver.MatchThreshold <= 0 || cfg.Resolver.MatchThreshold > 1 {
		return fmt.Errorf("resolver.match_threshold must be in (0,1]")
	}
	if cfg.Resolver.AmbiguityGap < 0 || cfg.Resolver.AmbiguityGap >= 1 {
		return fmt.Errorf("resolver.ambiguity_gap must be in [0,1)")
	}
	if cfg.Resolver.RowCap < 1 {
		return fmt.Errorf("resolver.row_cap must be positive")
	}
	if cfg.Resolver.MaxClarificationRounds < 1 {
		return fmt.Errorf("resolver.max_clarification_rounds must be at least 1")
	}

	for _, sink := range cfg.Reports.Sinks {
		switch sink {
		case "redis", "sql", "elasticsearch":
		default:
			return fmt.Errorf("unknown report sink %q", sink)
		}
		if sink == "elasticsearch" && len(cfg.Database.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("database.elasticsearch.addresses is required for the elasticsearch sink")
		}
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}

// internal/common/config/config.go
package config

import (
	"fmt"
	"net/url"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Oracle        OracleConfig            `mapstructure:"oracle"`
	Resolver      ResolverConfig          `mapstructure:"resolver"`
	Session       SessionConfig           `mapstructure:"session"`
	Reports       ReportsConfig           `mapstructure:"reports"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	HTTP          HTTPConfig              `mapstructure:"http"`
	Registry      RegistryConfig          `mapstructure:"registry"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type DatabaseConfig struct {
	Driver        string              `mapstructure:"driver"`
	SQLite        SQLiteConfig        `mapstructure:"sqlite"`
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// GetDSN opens the file for writing, used by the complaints sink.
func (s SQLiteConfig) GetDSN() string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", s.Path)
}

// GetReadOnlyDSN opens the file read-only with query_only set on every connection.
func (s SQLiteConfig) GetReadOnlyDSN() string {
	return fmt.Sprintf("file:%s?mode=ro&_pragma=query_only(1)&_pragma=busy_timeout(2000)", s.Path)
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// GetReadOnlyDSN returns a DSN whose sessions default to read-only transactions.
func (p PostgresConfig) GetReadOnlyDSN() string {
	return p.GetDSN() + " options='-c default_transaction_read_only=on'"
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Assistant Configuration ---

const (
	OracleOpenAI    = "openai"
	OracleAnthropic = "anthropic"
	OracleGemini    = "gemini"
	OracleHTTP      = "http"
)

// OracleConfig selects and bounds the text-completion backend.
type OracleConfig struct {
	Provider        string  `mapstructure:"provider"`
	Model           string  `mapstructure:"model"`
	APIKey          string  `mapstructure:"api_key"`
	BaseURL         string  `mapstructure:"base_url"`
	Timeout         int     `mapstructure:"timeout"` // milliseconds
	MaxTokens       int     `mapstructure:"max_tokens"`
	RatePerSecond   float64 `mapstructure:"rate_per_second"`
	Burst           int     `mapstructure:"burst"`
	BreakerFailures int     `mapstructure:"breaker_failures"`
	BreakerCooldown int     `mapstructure:"breaker_cooldown"` // milliseconds
	CacheSize       int     `mapstructure:"cache_size"`
	MaxRetries      int     `mapstructure:"max_retries"` // http provider only
}

// ResolverConfig holds the tunable thresholds of the turn pipeline.
type ResolverConfig struct {
	MatchThreshold         float64 `mapstructure:"match_threshold"`
	AmbiguityGap           float64 `mapstructure:"ambiguity_gap"`
	MaxCandidates          int     `mapstructure:"max_candidates"`
	RowCap                 int     `mapstructure:"row_cap"`
	QueryTimeout           int     `mapstructure:"query_timeout"` // milliseconds
	TurnTimeout            int     `mapstructure:"turn_timeout"`  // milliseconds
	MaxClarificationRounds int     `mapstructure:"max_clarification_rounds"`
	ResultCacheTTL         int     `mapstructure:"result_cache_ttl"` // milliseconds, 0 disables
	IndexRefresh           int     `mapstructure:"index_refresh"`    // milliseconds, 0 disables
	ValidateReportsWithLLM bool    `mapstructure:"validate_reports_with_llm"`
	GeneralAnswerTimeout   int     `mapstructure:"general_answer_timeout"` // milliseconds
	GeneralAnswerMaxChars  int     `mapstructure:"general_answer_max_chars"`
}

type SessionConfig struct {
	TTL     int `mapstructure:"ttl"`      // milliseconds
	LockTTL int `mapstructure:"lock_ttl"` // milliseconds
}

// ReportsConfig lists the append-only sinks fraud reports are written to.
type ReportsConfig struct {
	Sinks     []string `mapstructure:"sinks"` // redis, sql, elasticsearch
	Stream    string   `mapstructure:"stream"`
	StreamMax int64    `mapstructure:"stream_max"`
	Table     string   `mapstructure:"table"`
	Index     string   `mapstructure:"index"`
}

// NotificationConfig holds operator alerting and reporter acknowledgements.
type NotificationConfig struct {
	Region string `mapstructure:"region"`
	SNS    struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	SES struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"ses"`
}

type HTTPConfig struct {
	Address string `mapstructure:"address"`
}

type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// redactURL strips credentials before a URL is logged.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User("***")
	return u.String()
}

// Summary returns the non-secret settings worth logging at startup.
func (c *Config) Summary() map[string]interface{} {
	return map[string]interface{}{
		"environment":    c.App.Environment,
		"dbDriver":       c.Database.Driver,
		"oracleProvider": c.Oracle.Provider,
		"oracleModel":    c.Oracle.Model,
		"oracleBaseURL":  redactURL(c.Oracle.BaseURL),
		"reportSinks":    c.Reports.Sinks,
		"camunda":        c.Camunda.Enabled,
		"httpAddress":    c.HTTP.Address,
	}
}

package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/lead-enricher/internal/cost"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "LEADGEN"

// Config holds the full application configuration.
type Config struct {
	SkipTrace SkipTraceConfig `yaml:"skiptrace" mapstructure:"skiptrace"`
	Telnyx    TelnyxConfig    `yaml:"telnyx" mapstructure:"telnyx"`
	DNC       DNCConfig       `yaml:"dnc" mapstructure:"dnc"`
	Token     TokenConfig     `yaml:"token" mapstructure:"token"`
	RateLimit RateLimitConfig `yaml:"ratelimit" mapstructure:"ratelimit"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Circuit   CircuitConfig   `yaml:"circuit" mapstructure:"circuit"`
	Gatekeep  GatekeepConfig  `yaml:"gatekeep" mapstructure:"gatekeep"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Geo       GeoConfig       `yaml:"geo" mapstructure:"geo"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Pricing   cost.Rates      `yaml:"pricing" mapstructure:"pricing"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// SkipTraceConfig holds skip-tracing API settings.
type SkipTraceConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Host    string `yaml:"host" mapstructure:"host"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// TelnyxConfig holds number-lookup API settings.
type TelnyxConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// DNCConfig holds Do-Not-Call API settings.
type DNCConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	AgentNumber string `yaml:"agent_number" mapstructure:"agent_number"`
}

// TokenConfig configures the bearer token source for the DNC API. A static
// token wins over refresh.
type TokenConfig struct {
	Static          string `yaml:"static" mapstructure:"static"`
	RefreshToken    string `yaml:"refresh_token" mapstructure:"refresh_token"`
	ClientID        string `yaml:"client_id" mapstructure:"client_id"`
	Region          string `yaml:"region" mapstructure:"region"`
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"`
	RefreshSkewSecs int    `yaml:"refresh_skew_secs" mapstructure:"refresh_skew_secs"`
}

// RateLimitConfig configures the shared outbound throttle.
type RateLimitConfig struct {
	MinDelayMs  int `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RetryConfig configures provider retries. max_attempts 1 disables them.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig configures per-provider circuit breakers.
type CircuitConfig struct {
	Enabled          bool `yaml:"enabled" mapstructure:"enabled"`
	FailureThreshold int  `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CooldownSecs     int  `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// GatekeepConfig adds carrier deny fragments on top of the built-in list.
type GatekeepConfig struct {
	PolicyFile string   `yaml:"policy_file" mapstructure:"policy_file"`
	ExtraDeny  []string `yaml:"extra_deny" mapstructure:"extra_deny"`
}

// BatchConfig configures the batch driver.
type BatchConfig struct {
	CheckpointInterval int `yaml:"checkpoint_interval" mapstructure:"checkpoint_interval"`
	DLQMaxRetries      int `yaml:"dlq_max_retries" mapstructure:"dlq_max_retries"`
}

// GeoConfig configures the local ZIP index.
type GeoConfig struct {
	ZipCSV string `yaml:"zip_csv" mapstructure:"zip_csv"`
}

// StoreConfig configures the result store. Driver is sqlite, postgres or none.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CacheConfig configures the provider lookup cache.
type CacheConfig struct {
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
	LookupTTLHours int  `yaml:"lookup_ttl_hours" mapstructure:"lookup_ttl_hours"`
}

// OutputConfig configures result sinks beyond the output file.
type OutputConfig struct {
	Format string      `yaml:"format" mapstructure:"format"`
	S3     S3Config    `yaml:"s3" mapstructure:"s3"`
	Kafka  KafkaConfig `yaml:"kafka" mapstructure:"kafka"`
}

// S3Config configures the object-storage sink. Empty bucket disables it.
type S3Config struct {
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	Prefix    string `yaml:"prefix" mapstructure:"prefix"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
	Region    string `yaml:"region" mapstructure:"region"`
	UseSSL    bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
}

// KafkaConfig configures the message-bus sink. No brokers disables it.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
	Topic   string   `yaml:"topic" mapstructure:"topic"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// secretKeys have no default but must still be readable from the environment.
var secretKeys = []string{
	"skiptrace.key",
	"telnyx.key",
	"dnc.base_url",
	"dnc.agent_number",
	"token.static",
	"token.refresh_token",
	"token.client_id",
	"store.database_url",
	"output.s3.endpoint",
	"output.s3.bucket",
	"output.s3.access_key",
	"output.s3.secret_key",
	"output.kafka.brokers",
	"metrics.file",
	"gatekeep.policy_file",
	"geo.zip_csv",
}

// Load reads configuration from .env, config.yaml and the environment.
// Environment wins over file, file wins over defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !isNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range secretKeys {
		if err := v.BindEnv(k); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", k)
		}
	}

	v.SetDefault("skiptrace.host", "skip-tracing-working-api.p.rapidapi.com")
	v.SetDefault("skiptrace.base_url", "https://skip-tracing-working-api.p.rapidapi.com")
	v.SetDefault("telnyx.base_url", "https://api.telnyx.com")
	v.SetDefault("dnc.enabled", false)
	v.SetDefault("token.region", "us-east-1")
	v.SetDefault("token.refresh_skew_secs", 60)
	v.SetDefault("ratelimit.min_delay_ms", 1000)
	v.SetDefault("ratelimit.timeout_secs", 30)
	v.SetDefault("retry.max_attempts", 1)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.2)
	v.SetDefault("circuit.enabled", true)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.cooldown_secs", 30)
	v.SetDefault("gatekeep.extra_deny", []string{})
	v.SetDefault("batch.checkpoint_interval", 5)
	v.SetDefault("batch.dlq_max_retries", 3)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leads.db")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.lookup_ttl_hours", 720)
	v.SetDefault("pricing.skiptrace.per_search", 0.01)
	v.SetDefault("pricing.skiptrace.per_reverse", 0.01)
	v.SetDefault("pricing.skiptrace.per_age", 0.01)
	v.SetDefault("pricing.telnyx.per_lookup", 0.005)
	v.SetDefault("pricing.dnc.per_check", 0.0)
	v.SetDefault("output.format", "json")
	v.SetDefault("output.s3.prefix", "enriched/")
	v.SetDefault("output.s3.region", "us-east-1")
	v.SetDefault("output.s3.use_ssl", true)
	v.SetDefault("output.kafka.topic", "enriched-leads")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.Output.Kafka.Brokers = splitList(cfg.Output.Kafka.Brokers)

	return &cfg, nil
}

// splitList expands comma-separated entries, as produced by env overrides.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

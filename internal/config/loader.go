package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/kunay1/seal/pkg/constants"
	"github.com/kunay1/seal/pkg/logger"
)

// EnvPrefix prefixes every environment override, e.g. SEAL_POLICY_MAX_POLICY_IDS.
const EnvPrefix = "SEAL"

// Loader reads configuration from file, environment variables and defaults, and can watch
// the file for policy changes.
type Loader struct {
	v   *viper.Viper
	log logger.Logger
}

// NewLoader prepares a loader. An empty path searches ./config.yaml and /etc/seal/config.yaml.
func NewLoader(path string, log logger.Logger) *Loader {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/seal/")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v, log: log}
}

// Load reads and validates the configuration. A missing config file is not an error when
// no explicit path was given.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		l.log.Info(context.Background(), "No config file found, using defaults and environment")
	}
	return l.decode()
}

// WatchPolicy calls onChange with each valid policy section after the config file changes.
// Invalid edits are logged and ignored.
func (l *Loader) WatchPolicy(onChange func(PolicyConfig)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		ctx := context.Background()
		cfg, err := l.decode()
		if err != nil {
			l.log.Warn(ctx, "Ignoring invalid config change",
				logger.String("file", e.Name), logger.Err(err))
			return
		}
		l.log.Info(ctx, "Config file changed, reloading policy", logger.String("file", e.Name))
		onChange(cfg.Policy)
	})
	l.v.WatchConfig()
}

func (l *Loader) decode() (*Config, error) {
	// An unquoted all-digit hex secret is parsed by YAML as a number and cannot be recovered.
	if raw := l.v.Get("key_authority.master_secret_hex"); raw != nil {
		if _, ok := raw.(string); !ok {
			return nil, fmt.Errorf("key_authority.master_secret_hex must be a quoted string, got %T", raw)
		}
	}
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig is a convenience wrapper around NewLoader(path).Load().
func LoadConfig(path string, log logger.Logger) (*Config, error) {
	return NewLoader(path, log).Load()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 2024)
	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.service_id", "")

	v.SetDefault("policy.max_certificate_ttl_minutes", constants.DefaultMaxCertificateTTLMinutes)
	v.SetDefault("policy.max_request_age", constants.DefaultMaxRequestAge)
	v.SetDefault("policy.max_policy_ids", constants.DefaultMaxPolicyIDs)
	v.SetDefault("policy.evaluator_timeout", constants.DefaultEvaluatorTimeout)
	v.SetDefault("policy.replay_protection", false)
	v.SetDefault("policy.replay_store", "memory")

	v.SetDefault("chain.mode", "rpc")
	v.SetDefault("chain.static_policy_file", "")
	v.SetDefault("chain.rpc_url", "http://127.0.0.1:9000")
	v.SetDefault("chain.gas_budget", constants.DefaultGasBudget)
	v.SetDefault("chain.http_timeout", 10*time.Second)

	v.SetDefault("key_authority.source", "vault")
	v.SetDefault("key_authority.master_secret_hex", "")
	v.SetDefault("key_authority.share_cache_ttl", time.Minute)

	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.mount_path", "secret")
	v.SetDefault("vault.secret_path", "seal/master")
	v.SetDefault("vault.timeout", 5*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addresses", []string{"127.0.0.1:6379"})
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.dimension", string(constants.RateLimitDimensionIdentity))
	v.SetDefault("rate_limit.requests", constants.DefaultRateLimitPerMinute)
	v.SetDefault("rate_limit.window", constants.RateLimitWindow)
	v.SetDefault("rate_limit.local_fallback", true)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "seal.audit")
	v.SetDefault("kafka.write_timeout", 5*time.Second)
	v.SetDefault("kafka.batch_timeout", 100*time.Millisecond)
	v.SetDefault("kafka.signing_key", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.service_name", "seal-key-server")
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("tracing.sampling_rate", 0.1)
}

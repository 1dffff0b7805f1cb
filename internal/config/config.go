package config

import (
	"encoding/hex"
	"fmt"
	"time"
)

// Config holds the application's configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Policy       PolicyConfig       `mapstructure:"policy"`
	Chain        ChainConfig        `mapstructure:"chain"`
	KeyAuthority KeyAuthorityConfig `mapstructure:"key_authority"`
	Vault        VaultConfig        `mapstructure:"vault"`
	Redis        RedisConfig        `mapstructure:"redis"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Log          LogConfig          `mapstructure:"log"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	Environment     string        `mapstructure:"environment"`
	// ServiceID identifies this node to clients. Defaults to the master id.
	ServiceID string `mapstructure:"service_id"`
}

// Addr returns the HTTP listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GRPCAddr returns the gRPC health listen address. A zero port disables gRPC.
func (c *ServerConfig) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}

// IsProduction reports whether debug surfaces must stay off.
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// PolicyConfig is the hot-reloadable authorization section.
type PolicyConfig struct {
	MaxCertificateTTLMinutes int           `mapstructure:"max_certificate_ttl_minutes"`
	MaxRequestAge            time.Duration `mapstructure:"max_request_age"`
	MaxPolicyIDs             int           `mapstructure:"max_policy_ids"`
	EvaluatorTimeout         time.Duration `mapstructure:"evaluator_timeout"`
	ReplayProtection         bool          `mapstructure:"replay_protection"`
	// ReplayStore is "memory" or "redis".
	ReplayStore string `mapstructure:"replay_store"`
}

type ChainConfig struct {
	// Mode is "rpc" or "static". Static evaluates against a local YAML allowlist, development only.
	Mode             string `mapstructure:"mode"`
	StaticPolicyFile string `mapstructure:"static_policy_file"`

	RPCURL      string        `mapstructure:"rpc_url"`
	GasBudget   uint64        `mapstructure:"gas_budget"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

// KeyAuthorityConfig selects where the master secret comes from.
type KeyAuthorityConfig struct {
	// Source is "vault" or "static". Static is for development only.
	Source          string        `mapstructure:"source"`
	MasterSecretHex string        `mapstructure:"master_secret_hex"`
	ShareCacheTTL   time.Duration `mapstructure:"share_cache_ttl"`
}

type VaultConfig struct {
	Address    string        `mapstructure:"address"`
	Token      string        `mapstructure:"token"`
	MountPath  string        `mapstructure:"mount_path"`
	SecretPath string        `mapstructure:"secret_path"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addresses    []string      `mapstructure:"addresses"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
}

type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Dimension is "identity" or "session".
	Dimension     string        `mapstructure:"dimension"`
	Requests      int           `mapstructure:"requests"`
	Window        time.Duration `mapstructure:"window"`
	LocalFallback bool          `mapstructure:"local_fallback"`
}

type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	// SigningKey, when set, HMAC-signs every audit message.
	SigningKey string `mapstructure:"signing_key"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	Environment    string  `mapstructure:"environment"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range", c.Server.GRPCPort)
	}
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	switch c.Chain.Mode {
	case "rpc":
		if c.Chain.RPCURL == "" {
			return fmt.Errorf("chain.rpc_url is required")
		}
	case "static":
		if c.Chain.StaticPolicyFile == "" {
			return fmt.Errorf("chain.static_policy_file is required when chain.mode is static")
		}
		if c.Server.IsProduction() {
			return fmt.Errorf("chain.mode static is not allowed in production")
		}
	default:
		return fmt.Errorf("unknown chain.mode %q", c.Chain.Mode)
	}

	switch c.KeyAuthority.Source {
	case "vault":
		if c.Vault.Address == "" || c.Vault.SecretPath == "" {
			return fmt.Errorf("vault.address and vault.secret_path are required when key_authority.source is vault")
		}
	case "static":
		secret, err := hex.DecodeString(c.KeyAuthority.MasterSecretHex)
		if err != nil || len(secret) != 32 {
			return fmt.Errorf("key_authority.master_secret_hex must be 64 hex characters")
		}
		if c.Server.IsProduction() {
			return fmt.Errorf("key_authority.source static is not allowed in production")
		}
	default:
		return fmt.Errorf("unknown key_authority.source %q", c.KeyAuthority.Source)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate_limit.requests and rate_limit.window must be positive")
		}
		if c.RateLimit.Dimension != "identity" && c.RateLimit.Dimension != "session" {
			return fmt.Errorf("unknown rate_limit.dimension %q", c.RateLimit.Dimension)
		}
	}
	if c.Policy.ReplayProtection && c.Policy.ReplayStore == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("policy.replay_store redis requires redis.enabled")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka.brokers and kafka.topic are required when kafka is enabled")
	}
	return nil
}

// Validate checks the policy section on its own so reloads can be vetted before they apply.
func (p *PolicyConfig) Validate() error {
	if p.MaxCertificateTTLMinutes <= 0 || p.MaxCertificateTTLMinutes > 65535 {
		return fmt.Errorf("policy.max_certificate_ttl_minutes %d is out of range", p.MaxCertificateTTLMinutes)
	}
	if p.MaxRequestAge < 0 {
		return fmt.Errorf("policy.max_request_age must not be negative")
	}
	if p.MaxPolicyIDs <= 0 {
		return fmt.Errorf("policy.max_policy_ids must be positive")
	}
	if p.EvaluatorTimeout <= 0 {
		return fmt.Errorf("policy.evaluator_timeout must be positive")
	}
	if p.ReplayStore != "memory" && p.ReplayStore != "redis" {
		return fmt.Errorf("unknown policy.replay_store %q", p.ReplayStore)
	}
	return nil
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Env                string `mapstructure:"env"`
	LocalStackEndpoint string `mapstructure:"localstack_endpoint"`
	Signer             SignerConfig
	Crypto             CryptoConfig
	ArmSession         ArmSessionConfig
	Risk               RiskConfig
	Quote              QuoteConfig
	HTTPClient         HTTPClientConfig
	CircuitBreaker     CircuitBreakerConfig
	Metrics            MetricsConfig
	Solana             SolanaConfig
	DB                 DBConfig
	Redis              RedisConfig
	Oracle             OracleConfig
}

// SignerConfig holds signer-specific settings.
type SignerConfig struct {
	SessionTTLSec int    `mapstructure:"session_ttl_sec"`
	KMSKeyID      string `mapstructure:"kms_key_id"`
	AWSRegion     string `mapstructure:"aws_region"`
}

// CryptoConfig tunes the KDFs behind the two KEK provenances (spec §4.2).
type CryptoConfig struct {
	// ServerSecretEnv is the env var holding the server-derived-KEK secret,
	// either a KMS ciphertext blob (base64, when KMSKeyID is set) or the
	// raw secret itself (hex or utf-8, per spec §4.2).
	ServerSecretEnv string `mapstructure:"server_secret_env"`
	Argon2Time      uint32 `mapstructure:"argon2_time"`
	Argon2MemoryKiB uint32 `mapstructure:"argon2_memory_kib"`
	Argon2Threads   uint8  `mapstructure:"argon2_threads"`
}

// ArmSessionConfig tunes the Arm-Session Manager (C5).
type ArmSessionConfig struct {
	DefaultTTLSec int           `mapstructure:"default_ttl_sec"`
	MaxTTLSec     int           `mapstructure:"max_ttl_sec"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// RiskConfig tunes the Risk Gate (C6).
type RiskConfig struct {
	MaxHolderPercent        float64  `mapstructure:"max_holder_percent"`
	MinLpBurnPercent        float64  `mapstructure:"min_lp_burn_percent"`
	EnableInsiderHeuristics bool     `mapstructure:"enable_insider_heuristics"`
	MinPumpPercent          float64  `mapstructure:"min_pump_percent"`
	MinVolumeUSD            float64  `mapstructure:"min_volume_usd"`
	Blacklist               []string `mapstructure:"blacklist"`
	Whitelist               []string `mapstructure:"whitelist"`
}

// QuoteConfig tunes the Quote Service Client (C7).
type QuoteConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	DefaultSlipBps int     `mapstructure:"default_slip_bps"`
	MaxImpactPct   float64 `mapstructure:"max_impact_pct"`
}

// HTTPClientConfig tunes the generic outbound HTTP client (C8).
type HTTPClientConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	Retries    int           `mapstructure:"retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// CircuitBreakerConfig tunes the per-host breaker embedded in the HTTP client (C8).
type CircuitBreakerConfig struct {
	FailureThreshold         int           `mapstructure:"failure_threshold"`
	Cooldown                 time.Duration `mapstructure:"cooldown"`
	HalfOpenSuccessThreshold int           `mapstructure:"half_open_success_threshold"`
}

// MetricsConfig tunes the Prometheus exporter (C10).
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// SolanaConfig holds the RPC endpoint used to build/submit transactions.
type SolanaConfig struct {
	RPCEndpoint string `mapstructure:"rpc_endpoint"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// OracleConfig points the token-overview poller at an upstream analytics
// provider (the source of the holder-concentration/LP-burn/insider/pump
// data the Risk Gate's FetchOverview callback reads from the Hub's cache).
type OracleConfig struct {
	OverviewBaseURL string        `mapstructure:"overview_base_url"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	SnapshotMaxAge  time.Duration `mapstructure:"snapshot_max_age"`
}

// Load reads configuration from environment variables prefixed with CAESAR_.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CAESAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("env", "development")

	// Signer defaults
	v.SetDefault("signer.session_ttl_sec", 3600)
	v.SetDefault("signer.aws_region", "us-east-1")

	// Crypto defaults
	v.SetDefault("crypto.server_secret_env", "SERVER_ENCRYPTION_SECRET")
	v.SetDefault("crypto.argon2_time", 3)
	v.SetDefault("crypto.argon2_memory_kib", 65536) // 2^16 KiB
	v.SetDefault("crypto.argon2_threads", 1)

	// Arm-session defaults
	v.SetDefault("armsession.default_ttl_sec", 900)
	v.SetDefault("armsession.max_ttl_sec", 3600)
	v.SetDefault("armsession.sweep_interval", 30*time.Second)

	// Risk defaults
	v.SetDefault("risk.max_holder_percent", 50.0)
	v.SetDefault("risk.min_lp_burn_percent", 80.0)
	v.SetDefault("risk.enable_insider_heuristics", true)
	v.SetDefault("risk.min_pump_percent", 0.0)
	v.SetDefault("risk.min_volume_usd", 0.0)

	// Quote defaults
	v.SetDefault("quote.default_slip_bps", 100)
	v.SetDefault("quote.max_impact_pct", 5.0)

	// HTTP client defaults
	v.SetDefault("httpclient.timeout", 6*time.Second)
	v.SetDefault("httpclient.retries", 2)
	v.SetDefault("httpclient.retry_delay", 200*time.Millisecond)

	// Circuit breaker defaults
	v.SetDefault("circuitbreaker.failure_threshold", 3)
	v.SetDefault("circuitbreaker.cooldown", 30*time.Second)
	v.SetDefault("circuitbreaker.half_open_success_threshold", 1)

	// Metrics defaults
	v.SetDefault("metrics.listen_addr", ":9090")

	// Solana defaults
	v.SetDefault("solana.rpc_endpoint", "https://api.mainnet-beta.solana.com")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "caesar")
	v.SetDefault("db.password", "caesar")
	v.SetDefault("db.dbname", "caesar")
	v.SetDefault("db.sslmode", "disable")

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Oracle defaults
	v.SetDefault("oracle.poll_interval", 20*time.Second)
	v.SetDefault("oracle.snapshot_max_age", 2*time.Minute)

	cfg := &Config{}

	cfg.Env = v.GetString("env")
	cfg.LocalStackEndpoint = v.GetString("localstack_endpoint")

	cfg.Signer = SignerConfig{
		SessionTTLSec: v.GetInt("signer.session_ttl_sec"),
		KMSKeyID:      v.GetString("signer.kms_key_id"),
		AWSRegion:     v.GetString("signer.aws_region"),
	}

	cfg.Crypto = CryptoConfig{
		ServerSecretEnv: v.GetString("crypto.server_secret_env"),
		Argon2Time:      uint32(v.GetInt("crypto.argon2_time")),
		Argon2MemoryKiB: uint32(v.GetInt("crypto.argon2_memory_kib")),
		Argon2Threads:   uint8(v.GetInt("crypto.argon2_threads")),
	}

	cfg.ArmSession = ArmSessionConfig{
		DefaultTTLSec: v.GetInt("armsession.default_ttl_sec"),
		MaxTTLSec:     v.GetInt("armsession.max_ttl_sec"),
		SweepInterval: v.GetDuration("armsession.sweep_interval"),
	}

	cfg.Risk = RiskConfig{
		MaxHolderPercent:        v.GetFloat64("risk.max_holder_percent"),
		MinLpBurnPercent:        v.GetFloat64("risk.min_lp_burn_percent"),
		EnableInsiderHeuristics: v.GetBool("risk.enable_insider_heuristics"),
		MinPumpPercent:          v.GetFloat64("risk.min_pump_percent"),
		MinVolumeUSD:            v.GetFloat64("risk.min_volume_usd"),
		Blacklist:               v.GetStringSlice("risk.blacklist"),
		Whitelist:               v.GetStringSlice("risk.whitelist"),
	}

	cfg.Quote = QuoteConfig{
		BaseURL:        v.GetString("quote.base_url"),
		DefaultSlipBps: v.GetInt("quote.default_slip_bps"),
		MaxImpactPct:   v.GetFloat64("quote.max_impact_pct"),
	}

	cfg.HTTPClient = HTTPClientConfig{
		Timeout:    v.GetDuration("httpclient.timeout"),
		Retries:    v.GetInt("httpclient.retries"),
		RetryDelay: v.GetDuration("httpclient.retry_delay"),
	}

	cfg.CircuitBreaker = CircuitBreakerConfig{
		FailureThreshold:         v.GetInt("circuitbreaker.failure_threshold"),
		Cooldown:                 v.GetDuration("circuitbreaker.cooldown"),
		HalfOpenSuccessThreshold: v.GetInt("circuitbreaker.half_open_success_threshold"),
	}

	cfg.Metrics = MetricsConfig{
		ListenAddr: v.GetString("metrics.listen_addr"),
	}

	cfg.Solana = SolanaConfig{
		RPCEndpoint: v.GetString("solana.rpc_endpoint"),
	}

	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		DBName:   v.GetString("db.dbname"),
		SSLMode:  v.GetString("db.sslmode"),
	}

	cfg.Redis = RedisConfig{
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
	}

	cfg.Oracle = OracleConfig{
		OverviewBaseURL: v.GetString("oracle.overview_base_url"),
		PollInterval:    v.GetDuration("oracle.poll_interval"),
		SnapshotMaxAge:  v.GetDuration("oracle.snapshot_max_age"),
	}

	return cfg, nil
}

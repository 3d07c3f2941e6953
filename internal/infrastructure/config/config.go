package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Tenancy   TenancyConfig
	Billing   BillingConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret                string
	AccessTokenExpiration time.Duration
	Issuer                string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// TenancyConfig holds tenant resolution and registry cache settings
type TenancyConfig struct {
	BaseDomain          string        // Tenants are reachable at <slug>.<base_domain>
	SessionResolution   bool          // Fall back to the session's bound tenant when the host does not resolve
	CacheTTL            time.Duration // Upper bound on registry staleness if an invalidation is lost
	CacheMaxEntries     int64
	ResolveTimeout      time.Duration
	InvalidationEnabled bool // Fan out registry invalidations over Redis Pub/Sub
	InvalidationChannel string
}

// BillingConfig holds webhook ingestion and plan catalog settings
type BillingConfig struct {
	WebhookSecret      string
	SignatureTolerance time.Duration
	ApplyTimeout       time.Duration
	LedgerTimeout      time.Duration
	MaxPayloadBytes    int64
	OfferedPlans       []string
	// Plans maps plan code to roles_on_activation
	Plans map[string][]string
	// Sweep retries received events whose redelivery never arrived; rejected events are never swept
	SweepEnabled   bool
	SweepInterval  time.Duration
	SweepMinAge    time.Duration
	SweepBatchSize int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with TC_ prefix (e.g., TC_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("TC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:                v.GetString("jwt.secret"),
			AccessTokenExpiration: v.GetDuration("jwt.access_token_expiration"),
			Issuer:                v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:  v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: getList(v, "http.cors_allow_origins"),
			CORSAllowMethods: getList(v, "http.cors_allow_methods"),
			CORSAllowHeaders: getList(v, "http.cors_allow_headers"),
			TrustedProxies:   getList(v, "http.trusted_proxies"),
		},
		Tenancy: TenancyConfig{
			BaseDomain:          strings.ToLower(strings.TrimSpace(v.GetString("tenancy.base_domain"))),
			SessionResolution:   v.GetBool("tenancy.session_resolution"),
			CacheTTL:            v.GetDuration("tenancy.cache_ttl"),
			CacheMaxEntries:     v.GetInt64("tenancy.cache_max_entries"),
			ResolveTimeout:      v.GetDuration("tenancy.resolve_timeout"),
			InvalidationEnabled: v.GetBool("tenancy.invalidation_enabled"),
			InvalidationChannel: v.GetString("tenancy.invalidation_channel"),
		},
		Billing: BillingConfig{
			WebhookSecret:      v.GetString("billing.webhook_secret"),
			SignatureTolerance: v.GetDuration("billing.signature_tolerance"),
			ApplyTimeout:       v.GetDuration("billing.apply_timeout"),
			LedgerTimeout:      v.GetDuration("billing.ledger_timeout"),
			MaxPayloadBytes:    v.GetInt64("billing.max_payload_bytes"),
			OfferedPlans:       getList(v, "billing.offered_plans"),
			Plans:              loadPlans(v),
			SweepEnabled:       v.GetBool("billing.sweep_enabled"),
			SweepInterval:      v.GetDuration("billing.sweep_interval"),
			SweepMinAge:        v.GetDuration("billing.sweep_min_age"),
			SweepBatchSize:     v.GetInt("billing.sweep_batch_size"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// getList reads a list from TOML arrays or comma-separated env values
func getList(v *viper.Viper, key string) []string {
	raw := v.GetStringSlice(key)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// loadPlans reads billing.plans.<code>.roles_on_activation.
// Env overrides use TC_BILLING_PLANS_<CODE>_ROLES_ON_ACTIVATION for codes present in the file or offered list.
func loadPlans(v *viper.Viper) map[string][]string {
	codes := make(map[string]struct{})
	for code := range v.GetStringMap("billing.plans") {
		codes[strings.ToLower(code)] = struct{}{}
	}
	for _, code := range getList(v, "billing.offered_plans") {
		codes[strings.ToLower(code)] = struct{}{}
	}

	plans := make(map[string][]string, len(codes))
	for code := range codes {
		key := "billing.plans." + code + ".roles_on_activation"
		if !v.IsSet(key) {
			continue
		}
		plans[code] = getList(v, key)
	}
	return plans
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "tenantcore"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "tenantcore"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.AccessTokenExpiration == 0 {
		cfg.JWT.AccessTokenExpiration = 15 * time.Minute
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "tenantcore"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	// Empty CORS origins means no cross-origin requests until configured
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}

	if cfg.Tenancy.BaseDomain == "" {
		cfg.Tenancy.BaseDomain = "localhost"
	}
	if cfg.Tenancy.CacheTTL == 0 {
		cfg.Tenancy.CacheTTL = 5 * time.Minute
	}
	if cfg.Tenancy.CacheMaxEntries == 0 {
		cfg.Tenancy.CacheMaxEntries = 100_000
	}
	if cfg.Tenancy.ResolveTimeout == 0 {
		cfg.Tenancy.ResolveTimeout = 2 * time.Second
	}
	if cfg.Tenancy.InvalidationChannel == "" {
		cfg.Tenancy.InvalidationChannel = "tenantcore:registry:invalidate"
	}

	if cfg.Billing.SignatureTolerance == 0 {
		cfg.Billing.SignatureTolerance = 5 * time.Minute
	}
	if cfg.Billing.ApplyTimeout == 0 {
		cfg.Billing.ApplyTimeout = 10 * time.Second
	}
	if cfg.Billing.LedgerTimeout == 0 {
		cfg.Billing.LedgerTimeout = 3 * time.Second
	}
	if cfg.Billing.MaxPayloadBytes == 0 {
		cfg.Billing.MaxPayloadBytes = 64 << 10 // 64KB
	}
	if cfg.Billing.SweepInterval == 0 {
		cfg.Billing.SweepInterval = 5 * time.Minute
	}
	if cfg.Billing.SweepMinAge == 0 {
		cfg.Billing.SweepMinAge = 15 * time.Minute
	}
	if cfg.Billing.SweepBatchSize == 0 {
		cfg.Billing.SweepBatchSize = 50
	}
	if len(cfg.Billing.OfferedPlans) == 0 && len(cfg.Billing.Plans) == 0 {
		cfg.Billing.OfferedPlans = []string{"free", "basic", "pro", "enterprise"}
		cfg.Billing.Plans = map[string][]string{
			"free":       {"member"},
			"basic":      {"member", "billing_viewer"},
			"pro":        {"admin", "billing_viewer"},
			"enterprise": {"admin", "billing_viewer", "auditor"},
		}
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "tenantcore"
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Tenancy.CacheTTL < 0 {
		return fmt.Errorf("tenancy.cache_ttl cannot be negative")
	}
	if c.Tenancy.CacheMaxEntries < 0 {
		return fmt.Errorf("tenancy.cache_max_entries cannot be negative")
	}
	if c.Billing.ApplyTimeout < 0 || c.Billing.LedgerTimeout < 0 {
		return fmt.Errorf("billing timeouts cannot be negative")
	}
	if c.Billing.SweepInterval < 0 || c.Billing.SweepMinAge < 0 || c.Billing.SweepBatchSize < 0 {
		return fmt.Errorf("billing sweep settings cannot be negative")
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Billing.WebhookSecret == "" {
			return fmt.Errorf("billing.webhook_secret is required in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis address in host:port form
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// PlanCodes returns the configured plan codes in sorted order
func (b *BillingConfig) PlanCodes() []string {
	codes := make([]string, 0, len(b.Plans))
	for code := range b.Plans {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

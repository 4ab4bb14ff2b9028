package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings sourced from environment variables.
type Config struct {
	API         APIConfig         `mapstructure:"api"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	MinIO       MinIOConfig       `mapstructure:"minio"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Internal    InternalConfig    `mapstructure:"internal"`
	Browser     BrowserConfig     `mapstructure:"browser"`
	Export      ExportConfig      `mapstructure:"export"`
	Clamd       ClamdConfig       `mapstructure:"clamd"`
	Entitlement EntitlementConfig `mapstructure:"entitlement"`
	Worker      WorkerConfig      `mapstructure:"worker"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port           int    `mapstructure:"port"`
	AllowedOrigins string `mapstructure:"allowed_origins"` // 逗号分隔，空表示不做 CORS/WS Origin 限制
	MaxCVsPerUser  int    `mapstructure:"max_cvs_per_user"`
	ExportsPerHour int    `mapstructure:"exports_per_hour"`
}

// Origins 返回去空白后的允许来源列表。
func (a APIConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(a.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr 返回 host:port。
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	PublicEndpoint   string `mapstructure:"public_endpoint"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	BucketLookup     string `mapstructure:"bucket_lookup"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
}

// AuthConfig 只包含验签所需的公钥；令牌签发由认证协作方负责。
type AuthConfig struct {
	PublicKeyPath string `mapstructure:"public_key_path"`
	PublicKeyPEM  string `mapstructure:"public_key_pem"`
}

// InternalConfig 描述服务间调用（支付/授权协作方）。
type InternalConfig struct {
	SharedSecret   string `mapstructure:"shared_secret"`
	PaymentBaseURL string `mapstructure:"payment_base_url"`
}

// BrowserConfig 控制无头浏览器。
type BrowserConfig struct {
	Driver            string        `mapstructure:"driver"` // rod | chromedp
	BinaryPath        string        `mapstructure:"binary_path"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
}

// ExportConfig 控制导出引擎。
type ExportConfig struct {
	ImageTimeout  time.Duration `mapstructure:"image_timeout"`
	PrintGrace    time.Duration `mapstructure:"print_grace"`
	StandardScale float64       `mapstructure:"standard_scale"`
	HighScale     float64       `mapstructure:"high_scale"`
	PresignTTL    time.Duration `mapstructure:"presign_ttl"`
}

// ClamdConfig 为空地址时不扫描上传内容。
type ClamdConfig struct {
	Address string `mapstructure:"address"`
}

// EntitlementConfig 选择授权快照来源。
type EntitlementConfig struct {
	Source string `mapstructure:"source"` // database | http
}

// WorkerConfig 控制导出 worker。
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	MetricsPort int `mapstructure:"metrics_port"` // 0 表示不暴露 /metrics
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.max_cvs_per_user", 20)
	v.SetDefault("api.exports_per_hour", 30)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "cvstudio")
	v.SetDefault("database.user", "cvstudio")
	v.SetDefault("database.password", "cvstudio")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.public_endpoint", "http://localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "cvs")
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("auth.public_key_path", "/run/secrets/jwt_public.pem")
	v.SetDefault("browser.driver", "rod")
	v.SetDefault("browser.navigation_timeout", 30*time.Second)
	v.SetDefault("export.image_timeout", 10*time.Second)
	v.SetDefault("export.print_grace", 60*time.Second)
	v.SetDefault("export.standard_scale", 2.0)
	v.SetDefault("export.high_scale", 3.0)
	v.SetDefault("export.presign_ttl", 15*time.Minute)
	v.SetDefault("entitlement.source", "database")
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.metrics_port", 9091)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                   "API_PORT",
		"api.allowed_origins":        "API_ALLOWED_ORIGINS",
		"api.max_cvs_per_user":       "API_MAX_CVS_PER_USER",
		"api.exports_per_hour":       "API_EXPORTS_PER_HOUR",
		"database.host":              "DATABASE_HOST",
		"database.port":              "DATABASE_PORT",
		"database.name":              "POSTGRES_DB",
		"database.user":              "POSTGRES_USER",
		"database.password":          "POSTGRES_PASSWORD",
		"database.sslmode":           "DATABASE_SSLMODE",
		"redis.host":                 "REDIS_HOST",
		"redis.port":                 "REDIS_PORT",
		"minio.endpoint":             "MINIO_ENDPOINT",
		"minio.public_endpoint":      "MINIO_PUBLIC_ENDPOINT",
		"minio.access_key_id":        "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":    "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":              "MINIO_USE_SSL",
		"minio.bucket":               "MINIO_BUCKET",
		"minio.region":               "MINIO_REGION",
		"minio.bucket_lookup":        "MINIO_BUCKET_LOOKUP",
		"minio.auto_create_bucket":   "MINIO_AUTO_CREATE_BUCKET",
		"auth.public_key_path":       "JWT_PUBLIC_KEY_PATH",
		"auth.public_key_pem":        "JWT_PUBLIC_KEY",
		"internal.shared_secret":     "INTERNAL_API_SECRET",
		"internal.payment_base_url":  "PAYMENT_BASE_URL",
		"browser.driver":             "BROWSER_DRIVER",
		"browser.binary_path":        "BROWSER_BIN",
		"browser.navigation_timeout": "BROWSER_NAVIGATION_TIMEOUT",
		"export.image_timeout":       "EXPORT_IMAGE_TIMEOUT",
		"export.print_grace":         "EXPORT_PRINT_GRACE",
		"export.standard_scale":      "EXPORT_STANDARD_SCALE",
		"export.high_scale":          "EXPORT_HIGH_SCALE",
		"export.presign_ttl":         "EXPORT_PRESIGN_TTL",
		"clamd.address":              "CLAMD_ADDRESS",
		"entitlement.source":         "ENTITLEMENT_SOURCE",
		"worker.concurrency":         "WORKER_CONCURRENCY",
		"worker.metrics_port":        "WORKER_METRICS_PORT",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if cfg.MinIO.AccessKeyID == "" {
		return errors.New("minio access key id is required")
	}
	if cfg.MinIO.SecretAccessKey == "" {
		return errors.New("minio secret access key is required")
	}
	if cfg.MinIO.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	if cfg.Auth.PublicKeyPath == "" && cfg.Auth.PublicKeyPEM == "" {
		return errors.New("jwt public key is required")
	}
	switch cfg.Browser.Driver {
	case "rod", "chromedp":
	default:
		return fmt.Errorf("unsupported browser driver %q", cfg.Browser.Driver)
	}
	if cfg.Export.ImageTimeout <= 0 {
		return errors.New("export image timeout must be positive")
	}
	if cfg.Export.PrintGrace <= 0 {
		return errors.New("export print grace must be positive")
	}
	if cfg.Export.StandardScale <= 0 || cfg.Export.HighScale < cfg.Export.StandardScale {
		return errors.New("export scales must be positive and high >= standard")
	}
	if cfg.Worker.Concurrency <= 0 {
		return errors.New("worker concurrency must be positive")
	}
	switch cfg.Entitlement.Source {
	case "database":
	case "http":
		if cfg.Internal.PaymentBaseURL == "" {
			return errors.New("payment base url is required for http entitlement source")
		}
	default:
		return fmt.Errorf("unsupported entitlement source %q", cfg.Entitlement.Source)
	}
	return nil
}

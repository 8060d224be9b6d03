package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Storage  StorageConfig
	App      AppConfig
}

type ServerConfig struct {
	Port           int
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`

	// ForceHTTPS redirects plain HTTP requests to HTTPS.
	ForceHTTPS bool `mapstructure:"force_https"`
	// TrustProxy honours X-Forwarded-For/Proto and CF-Connecting-IP. Enable
	// only behind a proxy that overwrites them.
	TrustProxy bool `mapstructure:"trust_proxy"`
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type JWTConfig struct {
	Secret       string
	TTL          time.Duration `mapstructure:"ttl"`
	CookieName   string        `mapstructure:"cookie_name"`
	SecureCookie bool          `mapstructure:"secure_cookie"`
}

// StorageConfig selects where clock-in photos are written.
// Backend is "local" or "s3" (any S3-compatible endpoint: AWS, R2, MinIO).
type StorageConfig struct {
	Backend      string
	LocalDir     string `mapstructure:"local_dir"`
	PublicPrefix string `mapstructure:"public_prefix"`
	S3           S3Config
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	PublicURL string `mapstructure:"public_url"`
}

type AppConfig struct {
	Timezone string
}

// ConnectionString returns a libpq-style DSN understood by pgx
func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.force_https", false)
	v.SetDefault("server.trust_proxy", false)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "attendance")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", 24*time.Hour)
	v.SetDefault("jwt.cookie_name", "session")
	v.SetDefault("jwt.secure_cookie", false)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "static/uploads")
	v.SetDefault("storage.public_prefix", "/uploads")
	v.SetDefault("storage.s3.region", "auto")

	v.SetDefault("app.timezone", "Local")
}

// Load reads .env, config.yaml and ATTENDANCE_* environment variables.
// It exits the process on an invalid configuration.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[Config] No .env file found, using process environment")
	}

	cfg, err := LoadFrom(viper.New(), ".", "./configs")
	if err != nil {
		log.Fatalf("[Config] %v", err)
	}
	return cfg
}

// LoadFrom builds a Config from v, searching paths for config.yaml.
func LoadFrom(v *viper.Viper, paths ...string) (*Config, error) {
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("ATTENDANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required (set ATTENDANCE_JWT_SECRET)")
	}
	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

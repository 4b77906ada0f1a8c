package config

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Backend names accepted by BACKEND.
const (
	BackendSQL   = "sql"
	BackendREST  = "rest"
	BackendMongo = "mongo"
)

type Config struct {
	Port        string   `env:"PORT,         default=8080"`
	Env         string   `env:"ENV,          default=development"`
	LogLevel    string   `env:"LOG_LEVEL,    default=info"`
	LogPretty   bool     `env:"LOG_PRETTY,   default=false"`
	ProjectName string   `env:"PROJECT_NAME, default=Identity API"`
	APIPrefix   string   `env:"API_PREFIX,   default=/api/v1"`
	Backend     string   `env:"BACKEND,      default=sql"`
	CORSOrigins []string `env:"CORS_ORIGINS, default=*"`

	Auth  AuthConfig
	SQL   SQLConfig
	REST  RESTConfig
	Mongo MongoConfig
	Redis RedisConfig
	Admin AdminConfig
	Tasks TaskConfig
}

type AuthConfig struct {
	SecretKey                 string `env:"SECRET_KEY"`
	AccessTokenExpireMinutes  int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES, default=11520"`
	BcryptCost                int    `env:"BCRYPT_COST,                 default=12"`
	OpenRegistration          bool   `env:"USERS_OPEN_REGISTRATION,     default=true"`
	AllowElevatedRegistration bool   `env:"REGISTRATION_ALLOW_ELEVATED, default=false"`
	FirstSuperuser            string `env:"FIRST_SUPERUSER"`
	FirstSuperuserUsername    string `env:"FIRST_SUPERUSER_USERNAME,    default=admin"`
	FirstSuperuserPassword    string `env:"FIRST_SUPERUSER_PASSWORD"`

	// GeneratedSecret is true when SecretKey was filled with a random value.
	GeneratedSecret bool
}

// TokenTTL is the configured access token lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.AccessTokenExpireMinutes) * time.Minute
}

type SQLConfig struct {
	Driver string `env:"SQL_DRIVER, default=sqlite"`
	DSN    string `env:"SQL_DSN,    default=identity.db"`
}

type RESTConfig struct {
	URL     string        `env:"REST_URL"`
	Key     string        `env:"REST_KEY"`
	Table   string        `env:"REST_TABLE,   default=users"`
	Timeout time.Duration `env:"REST_TIMEOUT, default=10s"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=identity"`
}

type RedisConfig struct {
	// Addr empty keeps admin sessions in process memory.
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

type AdminConfig struct {
	SessionTTL   time.Duration `env:"ADMIN_SESSION_TTL,   default=24h"`
	CookieSecure bool          `env:"ADMIN_COOKIE_SECURE, default=false"`
}

type TaskConfig struct {
	Workers    int `env:"TASK_WORKERS,     default=4"`
	MaxRetries int `env:"TASK_MAX_RETRIES, default=3"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadContext(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadContext reads configuration through lookuper and validates it.
func LoadContext(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case BackendSQL, BackendREST, BackendMongo:
	default:
		return fmt.Errorf("config: unknown BACKEND %q", c.Backend)
	}
	if c.Backend == BackendREST && c.REST.URL == "" {
		return fmt.Errorf("config: REST_URL is required when BACKEND=rest")
	}
	if c.APIPrefix != "" && !strings.HasPrefix(c.APIPrefix, "/") {
		c.APIPrefix = "/" + c.APIPrefix
	}
	c.APIPrefix = strings.TrimRight(c.APIPrefix, "/")
	if c.Auth.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("config: ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.Auth.SecretKey == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return fmt.Errorf("config: generate secret: %w", err)
		}
		c.Auth.SecretKey = hex.EncodeToString(b)
		c.Auth.GeneratedSecret = true
	}
	return nil
}

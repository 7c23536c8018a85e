package app

import (
	"net/url"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Catalog sources.
const (
	CatalogAPI      = "api"
	CatalogPostgres = "postgres"
	CatalogFile     = "file"
)

// Session stores.
const (
	SessionFile  = "file"
	SessionRedis = "redis"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (SALESDESK_ prefix), a .env file, or YAML config
// files.
type Config struct {
	Addr       string `default:"0.0.0.0:8080" usage:"API server listen address"`
	TaxPercent string `default:"19" usage:"Tax percent applied to new sales" flag:"tax-percent"`
	Backend    BackendConfig
	Catalog    CatalogConfig
	Session    SessionConfig
	Builders   BuildersConfig
	Desks      DesksConfig
	RateLimit  RateLimitConfig
	CORS       CORSConfig
	Graceful   GracefulConfig

	taxPercent decimal.Decimal
}

// BackendConfig points at the back-office REST API.
type BackendConfig struct {
	URL      string        `usage:"Back-office base URL" flag:"backend-url"`
	Timeout  time.Duration `default:"15s" usage:"Back-office request timeout"`
	Email    string        `usage:"Back-office login email"`
	Password string        `usage:"Back-office login password"`
}

// CatalogConfig selects where builders load products from.
type CatalogConfig struct {
	Source      string `default:"api" usage:"Catalog source: api, postgres or file"`
	DatabaseURL string `usage:"PostgreSQL URL for the postgres source (or DATABASE_URL)" flag:"database-url"`
	Migrate     bool   `default:"false" usage:"Apply catalog migrations on start"`
	Snapshot    string `default:"catalog.jsonl.gz" usage:"Snapshot path for the file source"`
}

// SessionConfig selects where the back-office token is kept.
type SessionConfig struct {
	Store string        `default:"file" usage:"Session store: file or redis"`
	Path  string        `default:".salesdesk/session.json" usage:"Session file path"`
	Redis RedisConfig
}

// RedisConfig configures the redis session store.
type RedisConfig struct {
	Addr     string        `default:"localhost:6379" usage:"Redis address"`
	Password string        `usage:"Redis password"`
	DB       int           `default:"0" usage:"Redis database"`
	Key      string        `default:"salesdesk:session" usage:"Redis key holding the session"`
	TTL      time.Duration `default:"12h" usage:"Session lifetime, 0 keeps it until logout"`
}

// BuildersConfig bounds the open sale builders.
type BuildersConfig struct {
	Max           int           `default:"256" usage:"Maximum open builders, 0 for no limit"`
	Idle          time.Duration `default:"30m" usage:"Idle time after which a builder is dropped"`
	SweepInterval time.Duration `default:"1m" usage:"How often idle builders are swept"`
}

// DesksConfig lists the desk keys allowed to use the API. With no keys the
// API is open.
type DesksConfig struct {
	Pepper string            `usage:"HMAC pepper for desk key hashes"`
	Keys   map[string]string `usage:"Desk name to hex HMAC-SHA256 key hash"`
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	Max    int           `default:"300" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads .env, then environment variables and YAML config files,
// and validates the result.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix:        "SALESDESK",
		AllowUnknownEnvs: true,
		Files:            []string{"config.yaml", "/etc/salesdesk/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration and parses derived values.
func (c *Config) Validate() error {
	tax, err := decimal.NewFromString(c.TaxPercent)
	if err != nil {
		return errors.Wrapf(err, "tax percent %q", c.TaxPercent)
	}
	if tax.IsNegative() {
		return errors.Errorf("tax percent %s is negative", tax)
	}
	c.taxPercent = tax

	switch c.Catalog.Source {
	case CatalogAPI:
	case CatalogPostgres:
		if c.Catalog.DatabaseURL == "" {
			return errors.New("database URL is required for the postgres catalog: set SALESDESK_CATALOG_DATABASE_URL or DATABASE_URL")
		}
	case CatalogFile:
		if c.Catalog.Snapshot == "" {
			return errors.New("snapshot path is required for the file catalog")
		}
	default:
		return errors.Errorf("unknown catalog source %q", c.Catalog.Source)
	}

	switch c.Session.Store {
	case SessionFile, SessionRedis:
	default:
		return errors.Errorf("unknown session store %q", c.Session.Store)
	}

	if c.Backend.URL == "" {
		return errors.New("back-office URL is required: set SALESDESK_BACKEND_URL")
	}
	if u, err := url.Parse(c.Backend.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Errorf("back-office URL %q is not absolute", c.Backend.URL)
	}
	if c.Builders.Idle <= 0 || c.Builders.SweepInterval <= 0 {
		return errors.New("builder idle time and sweep interval must be positive")
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit max and window must be positive")
	}
	return nil
}

// Tax returns the parsed tax percent. Valid after Validate.
func (c *Config) Tax() decimal.Decimal {
	return c.taxPercent
}

// applyPlatformDefaults maps platform-provided environment variables that
// use standard names like DATABASE_URL and PORT.
func (c *Config) applyPlatformDefaults() {
	if c.Catalog.DatabaseURL == "" {
		c.Catalog.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

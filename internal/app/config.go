package app

import (
	"io/fs"
	"os"
	"slices"
	"time"
	_ "time/tzdata" // Location must resolve in minimal images.

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

const defaultAddr = "0.0.0.0:8080"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config holds the complete application configuration, loadable from
// environment variables (TABERNA_ prefix), flags, or YAML config files.
type Config struct {
	Addr string `default:"0.0.0.0:8080" usage:"API server listen address"`
	// Location is the restaurant time zone for order days and the calendar.
	Location  string `default:"Europe/Madrid" usage:"IANA time zone of the restaurant"`
	CMS       CMSConfig
	Store     StoreConfig
	Catalog   CatalogConfig
	Order     OrderConfig
	Cookies   CookiesConfig
	Admin     AdminConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// CMSConfig points at the headless CMS that owns menu, orders and users.
type CMSConfig struct {
	URL      string        `default:"http://localhost:1337" usage:"CMS base URL" flag:"cms-url"`
	APIToken string        `usage:"Bearer token for CMS content calls" flag:"cms-token"`
	Timeout  time.Duration `default:"10s" usage:"Timeout of a single CMS request"`
}

// StoreConfig selects where carts and sessions live.
type StoreConfig struct {
	Driver      string        `default:"memory" usage:"Key-value store: memory, redis or postgres"`
	RedisURL    string        `usage:"Redis URL for the redis driver (or REDIS_URL)" flag:"redis-url"`
	DatabaseURL string        `usage:"PostgreSQL URL for the postgres driver (or DATABASE_URL)" flag:"database-url"`
	Namespace   string        `default:"taberna" usage:"Redis key namespace"`
	CartTTL     time.Duration `default:"720h" usage:"Idle lifetime of a cart"`
	SessionTTL  time.Duration `default:"168h" usage:"Lifetime of a login session"`
	// PurgeInterval is how often the postgres driver deletes expired rows.
	PurgeInterval time.Duration `default:"10m" usage:"Expired entry purge interval (postgres)"`
}

// CatalogConfig controls the menu cache.
type CatalogConfig struct {
	TTL time.Duration `default:"1m" usage:"How long a fetched menu is served before refreshing"`
}

// OrderConfig controls order submission.
type OrderConfig struct {
	PaymentURL      string   `default:"https://redesis.example.com/payment" usage:"Payment page the customer is sent to" flag:"payment-url"`
	Tables          []string `default:"Mesa 1,Mesa 2,Mesa 3,Mesa 4,Mesa 5,Mesa 6,Mesa 7,Mesa 8,Mesa 9,Mesa 10" usage:"Accepted table labels"`
	CommentKeywords []string `default:"cerveza" usage:"Product name keywords that require an order comment"`
}

// CookiesConfig controls the cart and session cookies.
type CookiesConfig struct {
	Secure bool   `default:"false" usage:"Send cookies over HTTPS only"`
	Domain string `usage:"Cookie domain"`
}

// AdminConfig protects the staff endpoints.
type AdminConfig struct {
	Pepper       string   `usage:"HMAC pepper for API key hashing" flag:"api-key-pepper"`
	APIKeyHashes []string `usage:"Hex HMAC-SHA256 hashes of the accepted staff API keys" flag:"api-key-hashes"`
}

// KafkaConfig enables order events when brokers are set.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka brokers for order events, empty disables publishing"`
	Topic   string   `default:"taberna.orders" usage:"Order events topic"`
	// Timeout bounds one publish, which runs before the payment redirect.
	Timeout time.Duration `default:"2s" usage:"Maximum time spent publishing one order event"`
}

// RateLimitConfig controls the per-client limiter on form submissions.
type RateLimitConfig struct {
	Max    int           `default:"20" usage:"Max form submissions per window"`
	Window time.Duration `default:"1m" usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies), requires explicit origins" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads an optional .env file, then configuration from
// environment variables, YAML config files and flags.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}
	return loadConfig(aconfig.Config{
		Files: []string{"config.yaml", "/etc/taberna/config.yaml"},
	})
}

func loadConfig(base aconfig.Config) (*Config, error) {
	base.EnvPrefix = "TABERNA"
	base.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}

	var cfg Config
	if err := aconfig.LoaderFor(&cfg, base).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's TABERNA_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Store.DatabaseURL == "" {
		c.Store.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Store.RedisURL == "" {
		c.Store.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Store.RedisURL == "" {
			return errors.New("redis URL is required by the redis store: set it in config or REDIS_URL")
		}
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("database URL is required by the postgres store: set it in config or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.CMS.URL == "" {
		return errors.New("CMS URL is required")
	}
	if _, err := time.LoadLocation(c.Location); err != nil {
		return errors.Wrapf(err, "time zone %q", c.Location)
	}
	if c.CORS.AllowCredentials && (len(c.CORS.Origins) == 0 || slices.Contains(c.CORS.Origins, "*")) {
		return errors.New("CORS credentials require an explicit origin list without \"*\"")
	}
	if slices.Contains(c.Order.Tables, "") {
		return errors.New("table labels must not be empty")
	}
	return nil
}

package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewNotificationConfigHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// LocalDev selects credential loading from local files instead of
	// credentials injected by the hosting platform.
	LocalDev bool

	AdminKey string
	SiteURL  string

	Stripe StripeConfig

	StoreBackend string
	Firestore    FirestoreConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis RedisConfig
	Email EmailConfig

	DispatchWorkers   int
	DispatchQueueSize int

	OTLPEndpoint string

	MetricsPush MetricsPushConfig
}

type StripeConfig struct {
	SecretKey               string
	APIVersion              string
	WebhookSecret           string
	WebhookToleranceSeconds int
}

type FirestoreConfig struct {
	ProjectID       string
	CredentialsFile string
	CredentialsJSON string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MetricsPushConfig forwards the payment pipeline series to a remote
// collector for deployments nothing scrapes.
type MetricsPushConfig struct {
	Exporter        string
	Endpoint        string
	AuthToken       string
	IntervalSeconds int
	// Prefixes selects which metric families are forwarded.
	Prefixes []string
}

type EmailConfig struct {
	Provider     string
	FunctionPath string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

const (
	StoreFirestore = "firestore"
	StoreSQL       = "sql"

	EmailProviderHTTP = "http"
	EmailProviderSMTP = "smtp"
	EmailProviderNoop = "noop"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "rentpay"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		LocalDev:    getenvBool("LOCAL_DEV", false),
		AdminKey:    strings.TrimSpace(getenv("ADMIN_KEY", "")),
		SiteURL:     strings.TrimRight(strings.TrimSpace(getenv("SITE_URL", "http://localhost:8888")), "/"),
		Stripe: StripeConfig{
			SecretKey:               strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			APIVersion:              strings.TrimSpace(getenv("STRIPE_API_VERSION", "")),
			WebhookSecret:           strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			WebhookToleranceSeconds: getenvInt("STRIPE_WEBHOOK_TOLERANCE_SECONDS", 300),
		},
		StoreBackend: normalizeStore(getenv("STORE_BACKEND", StoreFirestore)),
		Firestore: FirestoreConfig{
			ProjectID:       strings.TrimSpace(getenv("FIRESTORE_PROJECT_ID", "")),
			CredentialsFile: strings.TrimSpace(getenv("FIRESTORE_CREDENTIALS_FILE", "serviceAccountKey.json")),
			CredentialsJSON: strings.TrimSpace(getenv("FIRESTORE_CREDENTIALS_JSON", "")),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "rentpay"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Email: EmailConfig{
			Provider:     normalizeEmailProvider(getenv("EMAIL_PROVIDER", EmailProviderHTTP)),
			FunctionPath: getenv("EMAIL_FUNCTION_PATH", "/.netlify/functions/send-email"),
			SMTPHost:     getenv("SMTP_HOST", "localhost"),
			SMTPPort:     getenvInt("SMTP_PORT", 1025),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "no-reply@rentpay.local"),
		},
		DispatchWorkers:   getenvInt("DISPATCH_WORKERS", 4),
		DispatchQueueSize: getenvInt("DISPATCH_QUEUE_SIZE", 256),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		MetricsPush: MetricsPushConfig{
			Exporter:        strings.ToLower(strings.TrimSpace(getenv("METRICS_PUSH_EXPORTER", ""))),
			Endpoint:        strings.TrimSpace(getenv("METRICS_PUSH_ENDPOINT", "")),
			AuthToken:       strings.TrimSpace(getenv("METRICS_PUSH_AUTH_TOKEN", "")),
			IntervalSeconds: getenvInt("METRICS_PUSH_INTERVAL_SECONDS", 60),
			Prefixes:        getenvList("METRICS_PUSH_PREFIXES", "rentpay_,gorm_dbstats_"),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// EmailFunctionURL is the absolute URL of the web app's send-email function.
func (c Config) EmailFunctionURL() string {
	path := strings.TrimSpace(c.Email.FunctionPath)
	if path == "" {
		return c.SiteURL
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.SiteURL + path
}

func normalizeStore(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case StoreSQL, "postgres", "gorm":
		return StoreSQL
	default:
		return StoreFirestore
	}
}

func normalizeEmailProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case EmailProviderSMTP:
		return EmailProviderSMTP
	case EmailProviderNoop, "none", "disabled":
		return EmailProviderNoop
	default:
		return EmailProviderHTTP
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvList(key, def string) []string {
	var out []string
	for _, item := range strings.Split(getenv(key, def), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

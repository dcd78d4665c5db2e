package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mtalha0777/arfurniture/internal/money"
)

type Config struct {
	HTTPPort           string
	GRPCPort           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64

	DB Postgres

	MongoURI    string
	MongoDBName string

	CatalogDBPath         string
	CatalogMigrationsPath string

	RedisAddr     string
	RedisPassword string

	KafkaBrokers      []string
	NotificationTopic string
	NotifierGroupID   string
	NotifierPort      string

	JWTSecret string

	Currency    money.Currency
	ShippingFee money.Amount

	PaymentMode        string // "stripe" or "simulated"
	StripeSecretKey    string
	StripeBaseURL      string
	PaymentTimeout     time.Duration
	SimulatedFailRatio int

	CheckoutRateLimit float64
	CheckoutRateBurst int

	OutboxTick    time.Duration
	RecoveryTick  time.Duration
	RecoveryGrace time.Duration

	SMTPAddr     string
	SMTPUser     string
	SMTPPassword string
	MailFrom     string

	LogLevel  string
	LogFormat string
}

type Postgres struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// Load builds the process configuration from the environment. It is called once in main
// and the result is passed to every component that needs it.
func Load() (*Config, error) {
	var errs []string
	fail := func(key string, err error) {
		errs = append(errs, fmt.Sprintf("%s: %v", key, err))
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		fail("DB_PORT", err)
	}

	currency, err := money.LookupCurrency(getEnv("CURRENCY", "INR"))
	if err != nil {
		fail("CURRENCY", err)
	}

	shippingFee, err := money.ParseMajor(getEnv("SHIPPING_FEE", "200"), currency)
	if err != nil {
		fail("SHIPPING_FEE", err)
	}

	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		GRPCPort:           getEnv("GRPC_PORT", "50056"),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second, fail),
		ShutdownTimeout:    getDuration("SHUTDOWN_TIMEOUT", 10*time.Second, fail),
		MaxRequestBodySize: 1 << 20, // 1MB

		DB: Postgres{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              dbPort,
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnvFromFile("DB_PASSWORD_FILE", "DB_PASSWORD", "postgres"),
			DBName:            getEnv("DB_NAME", "arfurniture"),
			MigrationsDirPath: getEnv("MIGRATIONS_PATH", "./internal/repository/migrations"),
		},

		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGO_DB_NAME", "cartdb"),

		CatalogDBPath:         getEnv("CATALOG_DB_PATH", "./catalog.db"),
		CatalogMigrationsPath: getEnv("CATALOG_MIGRATIONS_PATH", "./internal/catalog/migrations"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnvFromFile("REDIS_PASSWORD_FILE", "REDIS_PASSWORD", ""),

		KafkaBrokers:      getList("KAFKA_BROKERS", []string{"localhost:9092"}),
		NotificationTopic: getEnv("NOTIFICATION_TOPIC", "order-notifications"),
		NotifierGroupID:   getEnv("NOTIFIER_GROUP_ID", "order-notifier"),
		NotifierPort:      getEnv("NOTIFIER_PORT", "9102"),

		JWTSecret: getEnvFromFile("JWT_SECRET_FILE", "JWT_SECRET", ""),

		Currency:    currency,
		ShippingFee: shippingFee,

		PaymentMode:        getEnv("PAYMENT_MODE", "simulated"),
		StripeSecretKey:    getEnvFromFile("STRIPE_SECRET_KEY_FILE", "STRIPE_SECRET_KEY", ""),
		StripeBaseURL:      getEnv("STRIPE_BASE_URL", "https://api.stripe.com"),
		PaymentTimeout:     getDuration("PAYMENT_TIMEOUT", 10*time.Second, fail),
		SimulatedFailRatio: getInt("SIMULATED_FAIL_PERCENT", 0, fail),

		CheckoutRateLimit: float64(getInt("CHECKOUT_RATE_PER_MINUTE", 30, fail)) / 60,
		CheckoutRateBurst: getInt("CHECKOUT_RATE_BURST", 5, fail),

		OutboxTick:    getDuration("OUTBOX_TICK", time.Second, fail),
		RecoveryTick:  getDuration("RECOVERY_TICK", 30*time.Second, fail),
		RecoveryGrace: getDuration("RECOVERY_GRACE", 2*time.Minute, fail),

		SMTPAddr:     getEnv("SMTP_ADDR", ""),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnvFromFile("SMTP_PASSWORD_FILE", "SMTP_PASSWORD", ""),
		MailFrom:     getEnv("MAIL_FROM", "orders@arfurniture.example"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if cfg.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET: must be set")
	}
	switch cfg.PaymentMode {
	case "simulated":
	case "stripe":
		if cfg.StripeSecretKey == "" {
			errs = append(errs, "STRIPE_SECRET_KEY: must be set when PAYMENT_MODE=stripe")
		}
	default:
		errs = append(errs, fmt.Sprintf("PAYMENT_MODE: unknown mode %q", cfg.PaymentMode))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvFromFile prefers a mounted secret file over the plain variable.
func getEnvFromFile(fileKey, envKey, defaultValue string) string {
	if filePath := os.Getenv(fileKey); filePath != "" {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return getEnv(envKey, defaultValue)
}

func getDuration(key string, defaultValue time.Duration, fail func(string, error)) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		fail(key, err)
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int, fail func(string, error)) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		fail(key, err)
		return defaultValue
	}
	return n
}

func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

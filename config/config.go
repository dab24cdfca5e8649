package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Server    ServerConfig
	Logger    LoggerConfig
	Postgres  PostgresConfig
	JWT       JWTConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Elastic   ElasticsearchConfig
	Costing   CostingConfig
	Stock     StockConfig
	Dashboard DashboardConfig
	Channels  ChannelConfig
	Settings  SettingsConfig
}

type ServerConfig struct {
	AppEnv          string
	HTTPPort        string
	GRPCPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	RateLimit       float64 // requests per second per client, 0 disables
	RateBurst       int
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

type JWTConfig struct {
	SecretKey string
	Issuer    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers     []string
	OrdersTopic string
	EventsTopic string
	GroupID     string
	Enabled     bool
}

type ElasticsearchConfig struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
}

type CostingConfig struct {
	// ExchangeRate converts foreign purchase costs into local currency.
	ExchangeRate     decimal.Decimal
	AllocationPolicy string
}

type StockConfig struct {
	CriticalThreshold int
	LowThreshold      int
}

type DashboardConfig struct {
	TopN          int
	RecentPerKind int
	RecentLimit   int
	CacheTTL      time.Duration
}

// ChannelConfig holds the conventional fee percentage of each sales channel.
type ChannelConfig struct {
	SmartStoreFee    decimal.Decimal
	MarketplaceAFee  decimal.Decimal
	OwnStorefrontFee decimal.Decimal
	OtherFee         decimal.Decimal
}

// Fees maps channel codes to their default fee percentage.
func (c ChannelConfig) Fees() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"smart_store":    c.SmartStoreFee,
		"marketplace_a":  c.MarketplaceAFee,
		"own_storefront": c.OwnStorefrontFee,
		"other":          c.OtherFee,
	}
}

// SettingsConfig seeds the app settings row the first time the service starts.
type SettingsConfig struct {
	DefaultPackagingCost decimal.Decimal
	DefaultShippingCost  decimal.Decimal
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:          getEnv("APP_ENV", "dev"),
			HTTPPort:        getEnv("HTTP_PORT", ":8080"),
			GRPCPort:        getEnv("GRPC_PORT", ":8082"),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			RateLimit:       getEnvFloat("RATE_LIMIT_RPS", 20),
			RateBurst:       getEnvInt("RATE_LIMIT_BURST", 40),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5433"),
			User:            getEnv("POSTGRES_USER", "omnipos"),
			Password:        getEnv("POSTGRES_PASSWORD", "omnipos"),
			DBName:          getEnv("POSTGRES_DB", "omnipos_margin"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET_KEY", "your-secret-key-change-this-in-prod"),
			Issuer:    getEnv("JWT_ISSUER", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:     getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			OrdersTopic: getEnv("KAFKA_TOPIC_ORDERS", "orders.events"),
			EventsTopic: getEnv("KAFKA_TOPIC_MARGIN", "margin.events"),
			GroupID:     getEnv("KAFKA_GROUP_MARGIN", "margin"),
			Enabled:     getEnvBool("KAFKA_ENABLED", true),
		},
		Elastic: ElasticsearchConfig{
			Addresses: getEnvSlice("ELASTICSEARCH_ADDRESSES", []string{"http://localhost:9200"}),
			Username:  getEnv("ELASTICSEARCH_USERNAME", ""),
			Password:  getEnv("ELASTICSEARCH_PASSWORD", ""),
			Index:     getEnv("ELASTICSEARCH_PRODUCT_INDEX", "products"),
		},
		Costing: CostingConfig{
			ExchangeRate:     getEnvDecimal("COSTING_EXCHANGE_RATE", decimal.NewFromInt(190)),
			AllocationPolicy: getEnv("COSTING_ALLOCATION_POLICY", "blended"),
		},
		Stock: StockConfig{
			CriticalThreshold: getEnvInt("STOCK_CRITICAL_THRESHOLD", 5),
			LowThreshold:      getEnvInt("STOCK_LOW_THRESHOLD", 10),
		},
		Dashboard: DashboardConfig{
			TopN:          getEnvInt("DASHBOARD_TOP_N", 5),
			RecentPerKind: getEnvInt("DASHBOARD_RECENT_PER_KIND", 5),
			RecentLimit:   getEnvInt("DASHBOARD_RECENT_LIMIT", 10),
			CacheTTL:      getEnvDuration("DASHBOARD_CACHE_TTL", 5*time.Minute),
		},
		Channels: ChannelConfig{
			SmartStoreFee:    getEnvDecimal("CHANNEL_FEE_SMART_STORE", decimal.RequireFromString("5.5")),
			MarketplaceAFee:  getEnvDecimal("CHANNEL_FEE_MARKETPLACE_A", decimal.RequireFromString("10.8")),
			OwnStorefrontFee: getEnvDecimal("CHANNEL_FEE_OWN_STOREFRONT", decimal.RequireFromString("3.3")),
			OtherFee:         getEnvDecimal("CHANNEL_FEE_OTHER", decimal.Zero),
		},
		Settings: SettingsConfig{
			DefaultPackagingCost: getEnvDecimal("DEFAULT_PACKAGING_COST", decimal.Zero),
			DefaultShippingCost:  getEnvDecimal("DEFAULT_SHIPPING_COST", decimal.Zero),
		},
	}
}

// Validate rejects values the cost engine cannot work with.
func (c *Config) Validate() error {
	var errs []error

	if !c.Costing.ExchangeRate.IsPositive() {
		errs = append(errs, fmt.Errorf("COSTING_EXCHANGE_RATE must be positive, got %s", c.Costing.ExchangeRate))
	}
	switch c.Costing.AllocationPolicy {
	case "blended", "value_share":
	default:
		errs = append(errs, fmt.Errorf("COSTING_ALLOCATION_POLICY must be blended or value_share, got %q", c.Costing.AllocationPolicy))
	}

	hundred := decimal.NewFromInt(100)
	for channel, fee := range c.Channels.Fees() {
		if fee.IsNegative() || fee.GreaterThanOrEqual(hundred) {
			errs = append(errs, fmt.Errorf("CHANNEL_FEE_%s must be in [0, 100), got %s", strings.ToUpper(channel), fee))
		}
	}

	if c.Stock.CriticalThreshold < 0 || c.Stock.LowThreshold < c.Stock.CriticalThreshold {
		errs = append(errs, fmt.Errorf("stock thresholds must satisfy 0 <= critical (%d) <= low (%d)",
			c.Stock.CriticalThreshold, c.Stock.LowThreshold))
	}
	if c.Settings.DefaultPackagingCost.IsNegative() || c.Settings.DefaultShippingCost.IsNegative() {
		errs = append(errs, errors.New("default packaging and shipping costs must not be negative"))
	}
	if c.JWT.SecretKey == "" {
		errs = append(errs, errors.New("JWT_SECRET_KEY must be set"))
	}

	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return fallback
}

func getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := decimal.NewFromString(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

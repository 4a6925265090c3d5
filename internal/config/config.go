package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort  string
	AppEnv      string
	DBDriver    string
	MySQLDSN    string
	PostgresDSN string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	JWTSecret   string
	AMQPURL     string
	SwaggerHost string
	ResetDB     bool

	TracingEnabled bool
	OTLPEndpoint   string
	ServiceName    string
	ServiceVersion string
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load builds Config from environment with sensible defaults.
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	return &Config{
		ServerPort:  v.GetString("SERVER_PORT"),
		AppEnv:      v.GetString("APP_ENV"),
		DBDriver:    strings.ToLower(v.GetString("DB_DRIVER")),
		MySQLDSN:    v.GetString("MYSQL_DSN"),
		PostgresDSN: v.GetString("POSTGRES_DSN"),
		RedisAddr:   v.GetString("REDIS_ADDR"),
		RedisDB:     v.GetInt("REDIS_DB"),
		RedisPass:   v.GetString("REDIS_PASSWORD"),
		JWTSecret:   v.GetString("JWT_SECRET"),
		AMQPURL:     v.GetString("AMQP_URL"),
		SwaggerHost: v.GetString("SWAGGER_HOST"),
		ResetDB:     v.GetBool("RESET_DB"),

		TracingEnabled: v.GetBool("OTEL_ENABLED"),
		OTLPEndpoint:   v.GetString("OTEL_COLLECTOR_ADDR"),
		ServiceName:    v.GetString("OTEL_SERVICE_NAME"),
		ServiceVersion: v.GetString("SERVICE_VERSION"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("MYSQL_DSN", "user:password@tcp(localhost:3306)/eventhub?charset=utf8mb4&parseTime=True&loc=UTC")
	v.SetDefault("POSTGRES_DSN", "host=localhost port=5432 user=postgres password=postgres dbname=eventhub sslmode=disable")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("AMQP_URL", "")
	v.SetDefault("SWAGGER_HOST", "")
	v.SetDefault("RESET_DB", false)
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")
	v.SetDefault("OTEL_SERVICE_NAME", "eventhub")
	v.SetDefault("SERVICE_VERSION", "1.0.0")
}

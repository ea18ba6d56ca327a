package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ApplyEnv loads envFile (if present) into the process environment and
// overlays any WMS_* variables onto c. Missing files are not an error.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	setString(&c.Database.Driver, "WMS_DB_DRIVER")
	setString(&c.Database.SQLite.Path, "WMS_SQLITE_PATH")
	setString(&c.Database.Postgres.Host, "WMS_PG_HOST")
	setInt(&c.Database.Postgres.Port, "WMS_PG_PORT")
	setString(&c.Database.Postgres.Database, "WMS_PG_DATABASE")
	setString(&c.Database.Postgres.User, "WMS_PG_USER")
	setString(&c.Database.Postgres.Password, "WMS_PG_PASSWORD")
	setString(&c.Database.Postgres.SSLMode, "WMS_PG_SSLMODE")
	setString(&c.Redis.Address, "WMS_REDIS_ADDR")
	setString(&c.Redis.Password, "WMS_REDIS_PASSWORD")
	setInt(&c.Web.Port, "WMS_WEB_PORT")
	setString(&c.Web.SessionSecret, "WMS_SESSION_SECRET")
	setString(&c.Log.Level, "WMS_LOG_LEVEL")
	setBool(&c.Tracing.Enabled, "WMS_TRACING_ENABLED")
	setString(&c.Tracing.JaegerEndpoint, "WMS_JAEGER_ENDPOINT")
	if v, ok := os.LookupEnv("WMS_CORS_ORIGINS"); ok && v != "" {
		c.Web.CORSOrigins = strings.Split(v, ",")
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

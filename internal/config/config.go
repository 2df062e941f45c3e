package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Config holds application configuration values.
type Config struct {
	Secret         string
	TokenTTL       time.Duration
	DatabaseDriver string
	DatabaseDSN    string
	HTTPPort       string
	LogLevel       string
	LogFormat      string
	CatalogCSV     string
}

// Load reads configuration from a .env file (when present) and environment
// variables with reasonable defaults.
func Load() Config {
	_ = godotenv.Load()

	secret := os.Getenv("SECRET")
	if secret == "" {
		secret = "dev_secret"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}
	// Validate that port is numeric.
	if _, err := strconv.Atoi(port); err != nil {
		log.Printf("invalid HTTP_PORT value %q, defaulting to 8080", port)
		port = "8080"
	}

	ttl := 24 * time.Hour
	if raw := os.Getenv("TOKEN_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			log.Printf("invalid TOKEN_TTL value %q, defaulting to %s", raw, ttl)
		} else {
			ttl = parsed
		}
	}

	driver := os.Getenv("DATABASE_DRIVER")
	switch driver {
	case "":
		driver = DriverSQLite
	case DriverSQLite, DriverPostgres:
	case "postgres":
		driver = DriverPostgres
	default:
		log.Printf("unsupported DATABASE_DRIVER %q, defaulting to %s", driver, DriverSQLite)
		driver = DriverSQLite
	}

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = defaultDSN(driver)
	}

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	format := os.Getenv("LOG_FORMAT")
	if format != "console" {
		format = "json"
	}

	return Config{
		Secret:         secret,
		TokenTTL:       ttl,
		DatabaseDriver: driver,
		DatabaseDSN:    dsn,
		HTTPPort:       port,
		LogLevel:       level,
		LogFormat:      format,
		CatalogCSV:     os.Getenv("CATALOG_CSV"),
	}
}

func defaultDSN(driver string) string {
	if driver == DriverSQLite {
		return "file:tailorshop.db?_pragma=foreign_keys(1)"
	}
	host := os.Getenv("DB_HOST")
	if host == "" {
		host = "localhost"
	}
	user := os.Getenv("DB_USER")
	if user == "" {
		user = "postgres"
	}
	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}
	name := os.Getenv("DB_NAME")
	if name == "" {
		name = "tailorshop"
	}
	password := os.Getenv("DB_PASSWORD")

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, dbPort, name)
}

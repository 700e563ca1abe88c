// Package config reads the bot configuration from the environment, after
// loading any .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"kamadata-bot/internal/database"
	"kamadata-bot/internal/flows"
	"kamadata-bot/pkg/logger"

	"github.com/joho/godotenv"
)

var ErrMissing = errors.New("missing required setting")

const (
	AuthStorePostgres = "postgres"
	AuthStoreBadger   = "badger"
)

type Config struct {
	BotToken    string
	APIEndpoint string
	AdminIDs    []int64

	Logger   logger.Config
	Database database.Config

	AuthStore      string
	AuthBadgerPath string

	Codes flows.AccessCodes
}

// Load reads files with godotenv (".env" when none is given, missing files
// are ignored) and then the environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(files...); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}

	cfg := &Config{
		BotToken:    os.Getenv("BOT_TOKEN"),
		APIEndpoint: os.Getenv("TELEGRAM_API_ENDPOINT"),
		Logger: logger.Config{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Database: database.Config{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnv("DB_PORT", "5432"),
			User:          os.Getenv("DB_USER"),
			Password:      os.Getenv("DB_PASSWORD"),
			DBName:        os.Getenv("DB_NAME"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			MigrationsDir: os.Getenv("MIGRATIONS_DIR"),
		},
		AuthStore:      strings.ToLower(getEnv("AUTH_STORE", AuthStorePostgres)),
		AuthBadgerPath: getEnv("AUTH_BADGER_PATH", "data/auth"),
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("%w: BOT_TOKEN", ErrMissing)
	}

	attempts, err := strconv.ParseUint(getEnv("DB_CONNECT_ATTEMPTS", "5"), 10, 64)
	if err != nil || attempts == 0 {
		return nil, fmt.Errorf("invalid DB_CONNECT_ATTEMPTS %q", os.Getenv("DB_CONNECT_ATTEMPTS"))
	}
	cfg.Database.ConnectAttempts = attempts

	cfg.AdminIDs, err = parseIDs(os.Getenv("ADMIN_IDS"))
	if err != nil {
		return nil, err
	}
	if len(cfg.AdminIDs) == 0 {
		return nil, fmt.Errorf("%w: ADMIN_IDS", ErrMissing)
	}

	switch cfg.AuthStore {
	case AuthStorePostgres, AuthStoreBadger:
	default:
		return nil, fmt.Errorf("invalid AUTH_STORE %q", cfg.AuthStore)
	}

	if cfg.Codes, err = accessCodes(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// accessCodes resolves ACCESS_CODE_<AREA>, falling back to ACCESS_CODE.
func accessCodes() (flows.AccessCodes, error) {
	def := os.Getenv("ACCESS_CODE")
	var missing []string
	code := func(area string) string {
		key := "ACCESS_CODE_" + area
		v := getEnv(key, def)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	codes := flows.AccessCodes{
		Sardine: code("SARDINA"),
		Table:   code("MESA"),
		Line:    code("LINEA"),
		Packing: code("EMPAQUE"),
		Workers: code("TRABAJADORES"),
		Reports: code("REPORTES"),
	}
	if len(missing) > 0 {
		return flows.AccessCodes{}, fmt.Errorf("%w: %s (or ACCESS_CODE)", ErrMissing, strings.Join(missing, ", "))
	}
	return codes, nil
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid ADMIN_IDS entry %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

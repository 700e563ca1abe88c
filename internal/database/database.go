package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"kamadata-bot/pkg/logger"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrStorage wraps every failure reported by the gateway.
var ErrStorage = errors.New("storage failure")

type DB struct {
	*sql.DB
	logger *zap.Logger
}

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	// ConnectAttempts bounds the retries of the initial ping.
	ConnectAttempts uint64
	MigrationsDir   string
}

func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// New opens the pool and waits for the server with exponential backoff.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*DB, error) {
	return Open(ctx, cfg.DSN(), cfg.ConnectAttempts, log)
}

func Open(ctx context.Context, dsn string, attempts uint64, log *zap.Logger) (*DB, error) {
	log = log.With(zap.String(logger.FieldComponent, "database"))

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if attempts == 0 {
		attempts = 5
	}
	backoff := retry.WithMaxRetries(attempts-1, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			log.Warn("Database not ready", zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to ping database: %w", err), db.Close())
	}

	log.Info("Database connection established successfully")

	return &DB{DB: db, logger: log}, nil
}

// RunMigrations applies the goose migrations found in dir, falling back to
// the usual locations when dir is empty.
func (db *DB) RunMigrations(dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	migrationsDir := dir
	if migrationsDir == "" {
		migrationsDir = "migrations"
		if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
			migrationsDir = "/app/migrations"
		}
	}

	db.logger.Info("Using migrations directory", zap.String("dir", migrationsDir))

	if err := goose.Up(db.DB, migrationsDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	db.logger.Info("Database migrations completed successfully")
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// withTx runs fn in a transaction, committing when fn returns nil.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, tx.Rollback())
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

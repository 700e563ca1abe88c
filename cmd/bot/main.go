package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"kamadata-bot/internal/auth"
	"kamadata-bot/internal/auth/badgerstore"
	"kamadata-bot/internal/bot"
	"kamadata-bot/internal/config"
	"kamadata-bot/internal/database"
	"kamadata-bot/internal/dialogue"
	"kamadata-bot/internal/flows"
	"kamadata-bot/internal/handlers"
	"kamadata-bot/internal/session"
	"kamadata-bot/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	zapLogger, err := logger.New(&cfg.Logger, logger.DefaultServiceName)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to init logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()
	zap.ReplaceGlobals(zapLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		zap.L().Fatal("Bot stopped", zap.Error(err))
	}
	zap.L().Info("Bot stopped")
}

func run(ctx context.Context, cfg *config.Config) (err error) {
	db, err := database.New(ctx, cfg.Database, zap.L())
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, db.Close()) }()

	zap.L().Info("Running database migrations...")
	if err := db.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		return err
	}

	var store auth.Store = db
	if cfg.AuthStore == config.AuthStoreBadger {
		bs, openErr := badgerstore.Open(cfg.AuthBadgerPath)
		if openErr != nil {
			return openErr
		}
		defer func() { err = multierr.Append(err, bs.Close()) }()
		store = bs
	}

	registry, err := auth.NewRegistry(ctx, store, cfg.AdminIDs, zap.L())
	if err != nil {
		return err
	}

	engine, err := dialogue.New(session.NewMemory(), zap.L(), flows.All(flows.Deps{
		Records: db,
		Workers: db,
		Reports: db,
		Codes:   cfg.Codes,
	})...)
	if err != nil {
		return err
	}

	b, err := bot.New(cfg.BotToken, cfg.APIEndpoint, zap.L())
	if err != nil {
		return err
	}

	handshake, err := auth.NewHandshake(ctx, registry, b, zap.L())
	if err != nil {
		return err
	}

	h := handlers.New(b, engine, registry, handshake, zap.L())

	zap.L().Info("Bot started successfully")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.API.GetUpdatesChan(u)

	// Updates are handled one at a time, in arrival order.
	for {
		select {
		case <-ctx.Done():
			b.API.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			h.HandleUpdate(ctx, update)
		}
	}
}

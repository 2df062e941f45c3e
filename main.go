package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tailorshop/m/internal/accounts"
	"tailorshop/m/internal/api"
	"tailorshop/m/internal/catalog"
	"tailorshop/m/internal/config"
	"tailorshop/m/internal/database"
	"tailorshop/m/internal/logging"
	"tailorshop/m/internal/migrations"
	"tailorshop/m/internal/sales"
	"tailorshop/m/internal/seed"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Run(ctx, db); err != nil {
		return err
	}
	if err := seed.Groups(ctx, db); err != nil {
		return err
	}
	if cfg.CatalogCSV != "" {
		n, err := seed.LoadProducts(ctx, db, cfg.CatalogCSV, logger)
		if err != nil {
			return err
		}
		logger.Info("catalog imported", zap.String("path", cfg.CatalogCSV), zap.Int("products", n))
	}

	sessions := database.NewSessions(db)
	handler := api.New(
		catalog.NewStore(sessions, logger),
		accounts.NewStore(sessions, logger),
		sales.NewRecorder(sessions, logger),
		api.Options{Secret: cfg.Secret, TokenTTL: cfg.TokenTTL},
		logger,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("tailor shop server starting",
			zap.String("addr", srv.Addr),
			zap.String("driver", cfg.DatabaseDriver),
		)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

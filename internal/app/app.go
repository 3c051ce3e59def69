package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"auth-core-service/internal/config"
	"auth-core-service/internal/observability"
)

// App owns the process-level resources. Components receive their
// dependencies explicitly; connect and disconnect happen here, not inside
// the components.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime

	PrimaryDB   *gorm.DB
	SecondaryDB *gorm.DB
	Redis       redis.UniversalClient
}

func New(cfg *config.Config, logger *slog.Logger, server *http.Server, runtime *observability.Runtime) *App {
	return &App{Config: cfg, Logger: logger, Server: server, Observability: runtime}
}

// Run serves HTTP until the context is cancelled or a termination signal
// arrives, then drains connections and releases every shared resource.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("http server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.Logger.Info("shutting down")
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.Server.Shutdown(drainCtx)
	})

	err := g.Wait()
	a.close()
	return err
}

func (a *App) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("close redis", "error", err)
		}
	}
	for _, db := range []*gorm.DB{a.PrimaryDB, a.SecondaryDB} {
		if db == nil {
			continue
		}
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				a.Logger.Error("close database", "error", err)
			}
		}
	}
	if err := a.Observability.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("shutdown observability", "error", err)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"label-platform/internal/database"
	"label-platform/internal/server"
	"label-platform/internal/store"
	ws "label-platform/internal/websocket"
)

const (
	shutdownTimeout = 10 * time.Second
	cartPurgeEvery  = time.Hour
)

func newServeCommand(a *app) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func (a *app) serve(migrate bool) error {
	cfg, logger := a.cfg, a.logger
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if missing := cfg.MissingRequired(); len(missing) > 0 {
		logger.Warn("Required configuration missing", zap.Strings("keys", missing))
	}
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to the Database
	db, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if migrate {
		if err := db.Migrate(ctx, logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	hub := ws.NewHub(logger.Named("ws"))
	h, err := server.Wire(cfg, db, hub, logger)
	if err != nil {
		return err
	}
	engine, err := server.New(server.Options{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins(),
		AllowAnyOrigin: cfg.IsDev() && len(cfg.AllowedOrigins()) == 0,
	}, h, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		purgeCarts(gctx, store.NewCarts(db), logger)
		return nil
	})
	g.Go(func() error {
		logger.Info("Server starting", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *app) openDB(ctx context.Context) (*database.DB, error) {
	if a.cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := database.Open(connectCtx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to database: %w", err)
	}
	a.logger.Info("Connected to PostgreSQL")
	return db, nil
}

// purgeCarts drops expired carts every hour until ctx is done.
func purgeCarts(ctx context.Context, carts *store.Carts, logger *zap.Logger) {
	ticker := time.NewTicker(cartPurgeEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := carts.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("Cart purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("Expired carts purged", zap.Int64("count", n))
			}
		}
	}
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"canteen-orders-api/clock"
	"canteen-orders-api/config"
	"canteen-orders-api/handlers"
	"canteen-orders-api/menu"
	"canteen-orders-api/middleware"
	"canteen-orders-api/ordering"
	"canteen-orders-api/queue"
	"canteen-orders-api/routes"
	"canteen-orders-api/store"
	"canteen-orders-api/streak"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	gin.SetMode(cfg.GinMode)

	policy, err := cfg.Cutoff()
	if err != nil {
		return err
	}
	catalog, err := menu.Load(cfg.MenuFile)
	if err != nil {
		return err
	}

	st, err := store.Open(store.Options{
		Path:         cfg.DatabasePath,
		MaxOpenConns: cfg.MaxOpenConns,
		LogLevel:     cfg.GormLogLevel(),
	})
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("database connected and migrated", "path", cfg.DatabasePath)

	clk := clock.System{}
	orders := ordering.NewManager(ordering.Config{
		Store:         st,
		Catalog:       catalog,
		Policy:        policy,
		Tracker:       streak.NewTracker(cfg.RewardStreak),
		Clock:         clk,
		DailyCapacity: cfg.DailyCapacity,
	})

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLog(logger),
		middleware.CORS(),
		middleware.Timeout(cfg.RequestTimeout),
	)
	routes.SetupRoutes(r, routes.Deps{
		Auth:    middleware.NewAuth(cfg.JWTSecret),
		Public:  handlers.NewPublicHandler(catalog, policy, st),
		Student: handlers.NewStudentHandler(orders, clk),
		Staff:   handlers.NewStaffHandler(queue.NewAggregator(st), orders),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"addr", srv.Addr,
			"cutoff", policy.String(),
			"menu_items", len(catalog.Items()),
			"daily_capacity", cfg.DailyCapacity,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownWait)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownWait)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

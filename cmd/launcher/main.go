package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/finarena/finarena/internal/adapters/duckdb"
	"github.com/finarena/finarena/internal/config"
	"github.com/finarena/finarena/internal/core/services"
	"github.com/finarena/finarena/pkg/a2a"
	"github.com/finarena/finarena/pkg/launcher"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Info("starting launcher")

	if err := run(logger); err != nil {
		logger.Error("launcher startup failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		cancel()
	}()

	cfg := config.LoadLauncher()

	repo, err := duckdb.NewRepository(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	defer repo.Close()

	probe := func(ctx context.Context, baseURL string) error {
		health, err := a2a.NewClient(baseURL, cfg.HealthTimeout).Health(ctx)
		if err != nil {
			return err
		}
		if health.Status != "ok" {
			return fmt.Errorf("agent reported %q", health.Status)
		}
		return nil
	}

	supervisor := services.NewSupervisor(logger,
		[]config.AgentProcess{cfg.Assessor, cfg.Executor},
		probe,
		services.SupervisorOptions{
			ReadyTimeout:  cfg.ReadyTimeout,
			HealthTimeout: cfg.HealthTimeout,
			StopGrace:     cfg.StopGrace,
		})
	defer supervisor.Stop()

	assessorClient := launcher.NewAssessorClient(cfg.AssessorURL, 0)
	executorClient := a2a.NewClient(cfg.ExecutorURL, cfg.HealthTimeout)
	runner := services.NewRunner(logger, assessorClient, repo, cfg.ReportPath)

	if cfg.AutoStart {
		if err := supervisor.Start(ctx); err != nil {
			return fmt.Errorf("auto-start agents: %w", err)
		}
	}

	server := launcher.NewServer(logger, supervisor, runner, assessorClient, executorClient)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: server.Handler(),
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting launcher api server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Package main запускает HTTP-сервер сервиса договоров.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/realty-contracts/internal/config"
	"github.com/mmeshcher/realty-contracts/internal/directory"
	"github.com/mmeshcher/realty-contracts/internal/handler"
	"github.com/mmeshcher/realty-contracts/internal/logger"
	"github.com/mmeshcher/realty-contracts/internal/repository"
	"github.com/mmeshcher/realty-contracts/internal/service"
	"github.com/mmeshcher/realty-contracts/internal/storage"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("logger initialization error: %v", err)
	}
	defer zl.Sync()

	sugar := zl.Sugar()

	policy, err := cfg.Policy()
	if err != nil {
		sugar.Fatalw("transition policy error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := service.Dependencies{
		Repository: repo,
		Notifier:   service.NewLogNotifier(zl.Named("notify")),
		Policy:     policy,
		Logger:     zl.Named("service"),
	}

	if cfg.DirectoryAddress != "" {
		deps.Directory = directory.NewClient(cfg.DirectoryAddress)
	}

	if cfg.StorageEnabled() {
		files, err := storage.NewMinioStorage(storage.Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
			PublicURL: cfg.Storage.PublicURL,
		})
		if err != nil {
			sugar.Fatalw("storage initialization error", "error", err.Error())
		}
		if err := files.EnsureBucket(ctx); err != nil {
			sugar.Fatalw("storage bucket error", "error", err.Error())
		}
		deps.Storage = files
	} else {
		sugar.Warn("document storage is not configured, uploads are disabled")
	}

	svc := service.NewService(deps)

	h := handler.NewHandler(svc, zl.Named("http"))
	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Фоновое обновление адресов объектов из справочника
	g.Go(func() error {
		svc.StartAddressSync(ctx, cfg.AddressSyncInterval)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting contracts server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

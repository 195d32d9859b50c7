package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"

	server "github.com/orderline/orderline/internal"
	"github.com/orderline/orderline/internal/catalog"
	"github.com/orderline/orderline/internal/config"
	"github.com/orderline/orderline/internal/engine"
	"github.com/orderline/orderline/internal/eventbus"
	"github.com/orderline/orderline/internal/fallback"
	"github.com/orderline/orderline/internal/notify"
	notifyrepo "github.com/orderline/orderline/internal/notify/repositoryimpl"
	sessionrepo "github.com/orderline/orderline/internal/session/repositoryimpl"
	"github.com/orderline/orderline/internal/turn"
	"github.com/orderline/orderline/pkg/clog"
	"github.com/orderline/orderline/pkg/storage"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewHTTPTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	// Setup storage
	var store storage.Storage
	switch env.StorageEnv.Type {
	case "s3":
		store, err = storage.NewS3Storage(context.Background(), env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
		if err != nil {
			slog.Error("failed to create S3 storage", "error", err)
			os.Exit(1)
		}
	default:
		store, err = storage.NewLocalStorage(env.StorageEnv.BaseDir)
		if err != nil {
			slog.Error("failed to create local storage", "error", err)
			os.Exit(1)
		}
	}

	// Setup catalog
	provider, err := catalog.NewYAMLProvider(env.CatalogEnv.CatalogPath)
	if err != nil {
		slog.Error("failed to load catalog", "path", env.CatalogEnv.CatalogPath, "error", err)
		os.Exit(1)
	}

	// Setup fallback interpreter (optional)
	var interp fallback.Interpreter
	if env.FallbackEnv.GenAIAPIKey != "" {
		genaiInterp, err := fallback.NewGenAIInterpreter(context.Background(), env.FallbackEnv.GenAIAPIKey, env.FallbackEnv.GenAIModel, provider)
		if err != nil {
			slog.Error("failed to create fallback interpreter", "error", err)
			os.Exit(1)
		}
		interp = genaiInterp
	} else {
		slog.Warn("no genai api key configured, fallback interpreter disabled")
	}
	adapter := fallback.NewAdapter(interp, provider, env.FallbackEnv.Timeout)

	// Setup event bus and repositories
	bus := eventbus.New()
	sessionRepo := sessionrepo.NewYAMLRepository(store)
	subscriptionRepo := notifyrepo.NewYAMLRepository(store)

	// Setup engine and servers
	eng := engine.New(sessionRepo, provider, adapter, bus)
	turnServer := turn.NewServer(eng, sessionRepo)

	vapidEnv := config.VAPIDEnvFromEnv(env)
	pushSender := notify.NewSender(vapidEnv, subscriptionRepo)
	notifyServer := notify.NewServer(vapidEnv, subscriptionRepo, pushSender)
	dispatcher := notify.NewDispatcher(bus, pushSender)

	srv := server.NewServer(env, turnServer, notifyServer)

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	var wg conc.WaitGroup
	wg.Go(func() {
		dispatcher.Start(ctx)
	})
	if env.CatalogEnv.WatchReload {
		watcher := catalog.NewWatcher(provider)
		wg.Go(func() {
			if err := watcher.Start(ctx); err != nil {
				slog.Error("catalog watcher error", "error", err)
			}
		})
	}
	wg.Go(func() {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	})

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	wg.Wait()
}

// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/forca/internal/cache"
	"github.com/jason-s-yu/forca/internal/catalog"
	"github.com/jason-s-yu/forca/internal/config"
	"github.com/jason-s-yu/forca/internal/database"
	"github.com/jason-s-yu/forca/internal/game"
	"github.com/jason-s-yu/forca/internal/handlers"
	"github.com/jason-s-yu/forca/internal/lobby"
	"github.com/jason-s-yu/forca/internal/models"
	"github.com/jason-s-yu/forca/internal/store"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	logger.SetLevel(cfg.LogLevel)
	if cfg.Production() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	var (
		backend store.Backend
		rdb     *redis.Client
	)
	switch cfg.StoreBackend {
	case "memory":
		logger.Warn("using the in-memory room store, rooms are lost on restart")
		backend = store.NewMemoryBackend()
	default:
		client, err := cache.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		rdb = client
		backend = cache.NewRedisBackend(client, cfg.StoreNamespace)
	}
	tree := store.NewKVTree(backend, store.WithLogger(logger))
	defer tree.Close()

	src, err := moduleSource(ctx, cfg, logger)
	if err != nil {
		return err
	}

	rooms := lobby.NewManager(tree, logger, lobby.WithMaxPlayers(cfg.MaxPlayers))
	watcher := game.NewWatcher(tree, logger, cfg.WatchInterval)
	if rdb != nil {
		queue := cache.NewResultsQueue(rdb, cfg.ResultsQueue)
		watcher.OnFinished = func(ctx context.Context, room *models.Room) {
			if err := queue.PublishRoomResult(ctx, game.Report(room)); err != nil {
				logger.WithError(err).WithField("room", room.RoomCode).Error("could not enqueue room result")
			}
		}
	}
	engine := game.NewEngine(tree, watcher, logger)

	srv := handlers.NewRoomServer(logger, rooms, engine, watcher, catalog.New(src))
	defer srv.Close()
	srv.OriginPatterns = handlers.OriginPatterns(cfg.AllowedOrigins)

	addr := ":" + cfg.Port
	if !cfg.Production() {
		addr = "localhost:" + cfg.Port
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handlers.NewRouter(srv, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Running on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// moduleSource picks Postgres when a database is configured and the modules
// directory otherwise.
func moduleSource(ctx context.Context, cfg config.Config, logger *logrus.Logger) (catalog.Source, error) {
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.EnsureSchema(ctx, pool); err != nil {
			return nil, err
		}
		logger.Info("serving modules from Postgres")
		return catalog.NewPGSource(pool), nil
	}
	dir := cfg.ModulesDir
	if dir == "" {
		dir = "data/modules"
	}
	logger.Infof("serving modules from %s", dir)
	return catalog.NewDirSource(dir)
}

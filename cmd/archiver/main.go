// cmd/archiver/main.go drains finished-room reports from the Redis results queue and stores them in PostgreSQL.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/forca/internal/cache"
	"github.com/jason-s-yu/forca/internal/config"
	"github.com/jason-s-yu/forca/internal/database"
	"github.com/jason-s-yu/forca/internal/models"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// popTimeout bounds each BLPOP so shutdown is noticed promptly.
const popTimeout = 3 * time.Second

// Archiver batches room reports popped from the queue and flushes them to the
// database when the batch fills or the flush interval passes.
type Archiver struct {
	queue      *cache.ResultsQueue
	pool       *pgxpool.Pool
	logger     *logrus.Logger
	batchSize  int
	flushDelay time.Duration

	batchMu sync.Mutex
	batch   []*models.RoomReport
}

// NewArchiver builds an Archiver. A non-positive batch size means 1.
func NewArchiver(queue *cache.ResultsQueue, pool *pgxpool.Pool, logger *logrus.Logger, batchSize int, flushDelay time.Duration) *Archiver {
	if batchSize <= 0 {
		batchSize = 1
	}
	if flushDelay <= 0 {
		flushDelay = 500 * time.Millisecond
	}
	return &Archiver{
		queue:      queue,
		pool:       pool,
		logger:     logger,
		batchSize:  batchSize,
		flushDelay: flushDelay,
		batch:      make([]*models.RoomReport, 0, batchSize),
	}
}

// Run pops and flushes until ctx is cancelled, then flushes what is left.
func (a *Archiver) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.readLoop(gctx) })
	g.Go(func() error { return a.flushLoop(gctx) })
	err := g.Wait()

	// ctx is done; use a fresh one for the final flush.
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.flush(flushCtx)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *Archiver) readLoop(ctx context.Context) error {
	a.logger.Infof("reading room results from %s", a.queue.Name())
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		report, err := a.queue.Pop(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.logger.WithError(err).Error("BLPOP failed")
			time.Sleep(time.Second)
			continue
		}
		if report == nil {
			continue
		}
		a.add(ctx, report)
	}
}

func (a *Archiver) flushLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.flushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.flush(ctx)
		}
	}
}

func (a *Archiver) add(ctx context.Context, report *models.RoomReport) {
	a.batchMu.Lock()
	a.batch = append(a.batch, report)
	full := len(a.batch) >= a.batchSize
	a.batchMu.Unlock()
	if full {
		a.flush(ctx)
	}
}

// flush writes the pending batch in one transaction. A failed batch is kept
// for the next attempt.
func (a *Archiver) flush(ctx context.Context) {
	a.batchMu.Lock()
	defer a.batchMu.Unlock()
	if len(a.batch) == 0 {
		return
	}

	if err := database.InsertRoomResults(ctx, a.pool, a.batch); err != nil {
		a.logger.WithError(err).WithField("pending", len(a.batch)).Error("flush room results failed")
		return
	}
	a.logger.Infof("Flushed %d room results to DB.", len(a.batch))
	a.batch = a.batch[:0]
}

func main() {
	cfg := config.Load()

	logger := logrus.New()
	logger.SetLevel(cfg.LogLevel)
	if cfg.Production() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		logger.Fatal("archiver needs DATABASE_URL or the PG_* variables")
	}
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("connect database: %v", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Fatalf("ensure schema: %v", err)
	}

	rdb, err := cache.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Fatalf("connect redis: %v", err)
	}
	defer rdb.Close()

	a := NewArchiver(cache.NewResultsQueue(rdb, cfg.ResultsQueue), pool, logger, cfg.ArchiverBatchSize, cfg.ArchiverFlush)
	logger.Info("forca-archiver service started.")
	if err := a.Run(ctx); err != nil {
		logger.Errorf("archiver stopped: %v", err)
	}
	logger.Info("Archiver shutdown complete.")
}

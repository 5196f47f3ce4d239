package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"tickd/internal/config"
	"tickd/internal/db"
	"tickd/internal/logging"
	"tickd/internal/pipeline"
	"tickd/internal/processor"
	"tickd/internal/queue"
	"tickd/internal/rules"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume tick jobs from the Redis queue",
	Args:  cobra.NoArgs,
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.Logger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	policy, err := rules.Load(cfg.RulesPath)
	if err != nil {
		return fmt.Errorf("rules load failed: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("db connection failed: %w", err)
	}
	defer pool.Close()

	store := db.NewStore(pool)
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("db migration failed: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}
	// Honor context cancellation on in-flight commands so shutdown does not
	// wait out a blocking BRPOP.
	redisOpts.ContextTimeoutEnabled = true
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	pipe := pipeline.New(store, policy, cfg.HistoryScanLimit)
	proc := processor.NewTickProcessor(ctx, pipe)
	q := queue.NewRedisQueue(redisClient)

	logger.Infof("starting tick consumption with %d worker(s)", cfg.WorkerCount)
	err = q.Consume(ctx, cfg.RedisQueue, cfg.WorkerCount, cfg.JobBufferSize, proc.Handle)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("queue consumption ended: %w", err)
	}
	return nil
}

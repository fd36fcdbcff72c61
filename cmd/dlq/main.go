// cmd/dlq/main.go inspects or drains the low-stock dead letter queue.
// Usage: go run ./cmd/dlq [requeue N]
package main

import (
	"context"
	"os"
	"strconv"

	"possync/internal/config"
	"possync/internal/infra"
	"possync/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rdb.Close()

	ctx := context.Background()
	if len(os.Args) > 1 && os.Args[1] == "requeue" {
		max := 100
		if len(os.Args) > 2 {
			if max, err = strconv.Atoi(os.Args[2]); err != nil || max < 1 {
				log.Fatal().Str("arg", os.Args[2]).Msg("count must be a positive integer")
			}
		}
		moved, err := worker.Requeue(ctx, rdb, worker.QueueLowStock, max)
		if err != nil {
			log.Fatal().Err(err).Int("moved", moved).Msg("requeue failed")
		}
		log.Info().Int("moved", moved).Msg("dead jobs requeued")
	}

	n, err := worker.DLQLength(ctx, rdb, worker.QueueLowStock)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read dlq length")
	}
	log.Info().Str("queue", worker.QueueLowStock).Int64("dead", n).Msg("dlq status")
}

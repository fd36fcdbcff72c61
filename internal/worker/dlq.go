package worker

// dlq.go
// Jobs still failing after MaxJobAttempts land in dlq:<queue> with the last
// error attached. Nothing consumes the DLQ automatically; Requeue moves
// entries back once the cause (usually SMTP) is fixed.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DLQPrefix = "dlq:"

// DLQEntry is a dead job plus the reason it was given up on.
type DLQEntry struct {
	Queue    string    `json:"queue"`
	Job      Job       `json:"job"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

func dlqKey(queue string) string { return DLQPrefix + queue }

// SendToDLQ parks job in the dead letter list of queue.
func SendToDLQ(ctx context.Context, rdb *redis.Client, queue string, job Job, reason string) {
	data, err := json.Marshal(DLQEntry{Queue: queue, Job: job, Reason: reason, FailedAt: time.Now().UTC()})
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: marshal failed")
		return
	}
	if err := rdb.LPush(ctx, dlqKey(queue), data).Err(); err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: push failed, job dropped")
		return
	}
	log.Warn().
		Str("queue", queue).
		Str("job_type", job.Type).
		Int("attempts", job.Attempts).
		Str("reason", reason).
		Msg("dlq: job parked")
}

// DLQLength reports how many dead jobs queue has.
func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, dlqKey(queue)).Result()
}

// Requeue moves up to max dead jobs of queue back onto it with a fresh
// attempt limit, oldest first. It returns how many were moved.
func Requeue(ctx context.Context, rdb *redis.Client, queue string, max int) (int, error) {
	moved := 0
	for moved < max {
		raw, err := rdb.RPop(ctx, dlqKey(queue)).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return moved, err
		}
		var entry DLQEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			log.Error().Err(err).Str("queue", queue).Msg("dlq: skipping unreadable entry")
			continue
		}
		entry.Job.Attempts = 0
		if err := push(ctx, rdb, queue, entry.Job); err != nil {
			return moved, fmt.Errorf("requeue %s: %w", queue, err)
		}
		moved++
	}
	return moved, nil
}

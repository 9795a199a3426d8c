package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"jobmate/aggregator-service/internal/logger"
	"jobmate/aggregator-service/internal/model"
)

// EventJobsSynced is published after every successful Redis sync.
const EventJobsSynced = "EVENT_JOBS_SYNCED"

// Redis stores each record as JSON in one hash, field = job_id.
type Redis struct {
	rdb *redis.Client
	now func() time.Time
	log *logger.Logger
}

// NewRedis wraps an already connected client.
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb, now: time.Now, log: logger.Named("export")}
}

// Sync writes records into the hash named key. Fields already present are
// replaced except for the user-owned values, which are carried over from the
// stored copy.
func (r *Redis) Sync(ctx context.Context, key string, records []model.JobRecord) error {
	if key == "" {
		return errors.New("redis export: empty key")
	}
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.JobID
	}
	stored, err := r.rdb.HMGet(ctx, key, ids...).Result()
	if err != nil {
		return fmt.Errorf("redis export read %s: %w", key, err)
	}

	fields := make(map[string]any, len(records))
	for i, rec := range records {
		if raw, ok := stored[i].(string); ok {
			var prev model.JobRecord
			if err := json.Unmarshal([]byte(raw), &prev); err == nil {
				rec.UserStatus = prev.UserStatus
				rec.UserNotes = prev.UserNotes
				rec.PossibleDuplicate = prev.PossibleDuplicate
				rec.FirstSeen = prev.FirstSeen
				rec.CollectedAt = prev.CollectedAt
			}
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("redis export encode %s: %w", rec.JobID, err)
		}
		fields[rec.JobID] = b
	}
	if err := r.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis export write %s: %w", key, err)
	}

	event, _ := json.Marshal(map[string]any{
		"type":     EventJobsSynced,
		"key":      key,
		"count":    len(records),
		"syncedAt": r.now().UTC().Format(time.RFC3339),
	})
	if err := r.rdb.Publish(ctx, EventJobsSynced, event).Err(); err != nil {
		r.log.Warn().Err(err).Msg("publish EVENT_JOBS_SYNCED failed — continuing")
	}
	r.log.Info().Str("key", key).Int("records", len(records)).Msg("redis hash synced")
	return nil
}

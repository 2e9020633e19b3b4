package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aescanero/scriptflow/pkg/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "scriptflow:run:"

// RunStorage implements RunStorage using Redis.
// Snapshots expire after the configured TTL.
type RunStorage struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewRunStorage creates a new Redis run storage
func NewRunStorage(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RunStorage {
	return &RunStorage{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// SaveRun stores the run snapshot as JSON with TTL
func (s *RunStorage) SaveRun(ctx context.Context, run *domain.RunState) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	if err := s.client.Set(ctx, getRunKey(run.RunID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	s.logger.Debug("run saved",
		zap.String("run_id", run.RunID),
		zap.String("status", string(run.Status)))

	return nil
}

// GetRun retrieves a run snapshot
func (s *RunStorage) GetRun(ctx context.Context, runID string) (*domain.RunState, error) {
	data, err := s.client.Get(ctx, getRunKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var run domain.RunState
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}

	return &run, nil
}

// DeleteRun removes a run snapshot
func (s *RunStorage) DeleteRun(ctx context.Context, runID string) error {
	if err := s.client.Del(ctx, getRunKey(runID)).Err(); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	s.logger.Debug("run deleted", zap.String("run_id", runID))
	return nil
}

// ListRuns returns all stored runs, most recently submitted first
func (s *RunStorage) ListRuns(ctx context.Context) ([]*domain.RunState, error) {
	var cursor uint64
	var keys []string

	for {
		var batch []string
		var err error

		batch, cursor, err = s.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	runs := make([]*domain.RunState, 0, len(keys))
	for _, key := range keys {
		run, err := s.GetRun(ctx, strings.TrimPrefix(key, keyPrefix))
		if err != nil {
			// expired between SCAN and GET
			if errors.Is(err, domain.ErrRunNotFound) {
				continue
			}
			return nil, err
		}
		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].SubmittedAt.After(runs[j].SubmittedAt)
	})
	return runs, nil
}

// getRunKey returns the Redis key for a run snapshot
func getRunKey(runID string) string {
	return keyPrefix + runID
}

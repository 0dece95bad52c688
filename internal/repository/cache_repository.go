package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/loan-query-api/internal/models"
	appErrors "github.com/noah-isme/loan-query-api/pkg/errors"
)

// LegacyChatCache wraps the global Redis message list older dashboards still
// write to. Entries of every query share one list, so reads filter by query.
type LegacyChatCache struct {
	client *redis.Client
	key    string
	max    int64
	logger *zap.Logger
}

// NewLegacyChatCache constructs the cache. max bounds the list length.
func NewLegacyChatCache(client *redis.Client, key string, max int64, logger *zap.Logger) *LegacyChatCache {
	if key == "" {
		key = "chat:messages"
	}
	if max <= 0 {
		max = 5000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LegacyChatCache{client: client, key: key, max: max, logger: logger}
}

// legacyEntry tolerates numeric query ids written by older clients.
type legacyEntry struct {
	models.ChatMessage
	QueryID models.QueryRef `json:"queryId"`
}

// Push appends a message and trims the list to its newest max entries.
func (r *LegacyChatCache) Push(ctx context.Context, msg models.ChatMessage) error {
	if r.client == nil {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal legacy chat message: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, r.key, payload)
	pipe.LTrim(ctx, r.key, -r.max, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis push %s: %w", r.key, err)
	}
	return nil
}

// Messages returns the cached messages whose normalized query id equals queryID.
// Undecodable entries are skipped.
func (r *LegacyChatCache) Messages(ctx context.Context, queryID string) ([]models.ChatMessage, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}
	raw, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %s: %w", r.key, err)
	}
	want := models.NormalizeQueryID(queryID)
	out := make([]models.ChatMessage, 0)
	for _, item := range raw {
		var entry legacyEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			r.logger.Debug("skip undecodable legacy chat entry", zap.Error(err))
			continue
		}
		if entry.QueryID.String() != want {
			continue
		}
		msg := entry.ChatMessage
		msg.QueryID = entry.QueryID.String()
		out = append(out, msg)
	}
	if len(out) == 0 {
		return nil, appErrors.ErrCacheMiss
	}
	return out, nil
}

// Close releases the underlying Redis connection if present.
func (r *LegacyChatCache) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

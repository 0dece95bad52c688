package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loan-query-api/internal/models"
	appErrors "github.com/noah-isme/loan-query-api/pkg/errors"
)

func TestLegacyChatCacheFiltersByQuery(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	cache := NewLegacyChatCache(client, "chat:messages", 3, nil)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, cache.Push(ctx, models.ChatMessage{ID: "1", QueryID: "7", Message: "a", Timestamp: now}))
	require.NoError(t, cache.Push(ctx, models.ChatMessage{ID: "2", QueryID: "8", Message: "b", Timestamp: now}))
	_, err := srv.RPush("chat:messages", `{"id":"3","queryId":7.0,"message":"c","sender":"legacy"}`)
	require.NoError(t, err)

	msgs, err := cache.Messages(ctx, "7")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		require.Equal(t, "7", m.QueryID)
	}
}

func TestLegacyChatCacheTrims(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	cache := NewLegacyChatCache(client, "chat:messages", 2, nil)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, cache.Push(ctx, models.ChatMessage{ID: id, QueryID: "q"}))
	}
	list, err := srv.List("chat:messages")
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestLegacyChatCacheWithoutClient(t *testing.T) {
	cache := NewLegacyChatCache(nil, "", 0, nil)
	require.NoError(t, cache.Push(context.Background(), models.ChatMessage{}))
	_, err := cache.Messages(context.Background(), "q")
	require.True(t, errors.Is(err, appErrors.ErrCacheMiss))
}

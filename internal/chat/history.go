package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Entry is a single persisted message of a user's coaching conversation.
type Entry struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryStore persists coaching conversations in Redis lists, one list
// per user. Writes are best-effort from the gateway's point of view: a
// failed append never fails the AI request.
type HistoryStore struct {
	client  *redis.Client
	maxMsgs int
	ttl     time.Duration
}

func NewHistoryStore(client *redis.Client, maxMsgs, ttlSec int) *HistoryStore {
	return &HistoryStore{
		client:  client,
		maxMsgs: maxMsgs,
		ttl:     time.Duration(ttlSec) * time.Second,
	}
}

func historyKey(userID uuid.UUID) string {
	return "chat:history:" + userID.String()
}

// Append adds entries to the user's conversation and trims it to the
// configured maximum, refreshing the TTL.
func (s *HistoryStore) Append(ctx context.Context, userID uuid.UUID, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	key := historyKey(userID)

	values := make([]any, 0, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshaling chat entry: %w", err)
		}
		values = append(values, string(data))
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, int64(-s.maxMsgs), -1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pipeline exec for %s: %w", key, err)
	}
	return nil
}

// Recent returns the last `limit` entries of the user's conversation.
func (s *HistoryStore) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]Entry, error) {
	key := historyKey(userID)

	vals, err := s.client.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}

	entries := make([]Entry, 0, len(vals))
	for _, v := range vals {
		var e Entry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			continue // skip malformed entries
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Clear deletes the user's conversation.
func (s *HistoryStore) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.client.Del(ctx, historyKey(userID)).Err()
}

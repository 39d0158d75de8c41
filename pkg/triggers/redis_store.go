package triggers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/tcmartin/flowexec/pkg/models"
)

// Redis key prefixes per trigger kind
const (
	scheduleKeyPrefix = "trigger:schedule:"
	webhookKeyPrefix  = "trigger:webhook:"
	eventKeyPrefix    = "trigger:event:"
)

// RedisStore implements Store on Redis, so trigger registrations survive
// process restarts. Each trigger is one JSON value under a kind-prefixed
// key.
type RedisStore struct {
	client *redis.Client
	ctx    context.Context
}

// RedisConfig contains connection settings for the Redis trigger store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects to Redis and returns a trigger store backed by it.
func NewRedisStore(config RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, ctx: ctx}, nil
}

// SaveSchedule persists a schedule trigger (insert or update)
func (s *RedisStore) SaveSchedule(t models.ScheduleTrigger) error {
	return s.save(scheduleKeyPrefix+t.ID, t)
}

// SaveWebhook persists a webhook trigger
func (s *RedisStore) SaveWebhook(t models.WebhookTrigger) error {
	return s.save(webhookKeyPrefix+t.ID, t)
}

// SaveEvent persists an event trigger
func (s *RedisStore) SaveEvent(t models.EventTrigger) error {
	return s.save(eventKeyPrefix+t.ID, t)
}

func (s *RedisStore) save(key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger: %w", err)
	}
	if err := s.client.Set(s.ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to save trigger: %w", err)
	}
	return nil
}

// ListSchedules returns all schedule triggers
func (s *RedisStore) ListSchedules() ([]models.ScheduleTrigger, error) {
	var out []models.ScheduleTrigger
	err := s.list(scheduleKeyPrefix, func(data []byte) error {
		var t models.ScheduleTrigger
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		out = append(out, t)
		return nil
	})
	return out, err
}

// ListWebhooks returns all webhook triggers
func (s *RedisStore) ListWebhooks() ([]models.WebhookTrigger, error) {
	var out []models.WebhookTrigger
	err := s.list(webhookKeyPrefix, func(data []byte) error {
		var t models.WebhookTrigger
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		out = append(out, t)
		return nil
	})
	return out, err
}

// ListEvents returns all event triggers
func (s *RedisStore) ListEvents() ([]models.EventTrigger, error) {
	var out []models.EventTrigger
	err := s.list(eventKeyPrefix, func(data []byte) error {
		var t models.EventTrigger
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		out = append(out, t)
		return nil
	})
	return out, err
}

func (s *RedisStore) list(prefix string, decode func([]byte) error) error {
	keys, err := s.client.Keys(s.ctx, prefix+"*").Result()
	if err != nil {
		return fmt.Errorf("failed to list triggers: %w", err)
	}
	for _, key := range keys {
		data, err := s.client.Get(s.ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load trigger %s: %w", key, err)
		}
		if err := decode([]byte(data)); err != nil {
			return fmt.Errorf("failed to unmarshal trigger %s: %w", key, err)
		}
	}
	return nil
}

// DeleteTrigger removes a trigger of any kind by ID
func (s *RedisStore) DeleteTrigger(id string) (bool, error) {
	for _, prefix := range []string{scheduleKeyPrefix, webhookKeyPrefix, eventKeyPrefix} {
		deleted, err := s.client.Del(s.ctx, prefix+id).Result()
		if err != nil {
			return false, fmt.Errorf("failed to delete trigger: %w", err)
		}
		if deleted > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Close cleans up resources
func (s *RedisStore) Close() error {
	return s.client.Close()
}

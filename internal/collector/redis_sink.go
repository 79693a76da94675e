package collector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"ktrace/internal/constants"
)

// RedisSink appends each record as a JSON element of a Redis list.
type RedisSink struct {
	client *redis.Client
	key    string
}

func NewRedisSink(client *redis.Client, key string) *RedisSink {
	if key == "" {
		key = constants.DefaultRedisListKey
	}
	return &RedisSink{client: client, key: key}
}

func (s *RedisSink) Name() string {
	return constants.SinkTypeRedis
}

func (s *RedisSink) Append(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(records))
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		values = append(values, data)
	}

	if err := s.client.RPush(ctx, s.key, values...).Err(); err != nil {
		return fmt.Errorf("failed to append to redis list: %w", err)
	}
	return nil
}

func (s *RedisSink) List(ctx context.Context) ([]Record, error) {
	raw, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read redis list: %w", err)
	}

	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		var r Record
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		records = append(records, r)
	}
	return records, nil
}

func (s *RedisSink) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to clear redis list: %w", err)
	}
	return nil
}

// Close is a no-op: the client belongs to the caller.
func (s *RedisSink) Close() error {
	return nil
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/therealutkarshpriyadarshi/ark/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

// Cache provides caching functionality using Redis
type Cache struct {
	client *redis.Client
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Routine Probe Cache Operations

// SetRoutineVideo caches the probed metadata of a catalog routine video
func (c *Cache) SetRoutineVideo(ctx context.Context, routineID string, info *models.VideoInfo, ttl time.Duration) error {
	return c.SetWithJSON(ctx, routineVideoKey(routineID), info, ttl)
}

// GetRoutineVideo retrieves cached routine video metadata. A miss returns nil, nil.
func (c *Cache) GetRoutineVideo(ctx context.Context, routineID string) (*models.VideoInfo, error) {
	data, err := c.client.Get(ctx, routineVideoKey(routineID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			metrics.RecordCacheAccess("routine_video", false)
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get routine video from cache: %w", err)
	}
	metrics.RecordCacheAccess("routine_video", true)

	var info models.VideoInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal routine video: %w", err)
	}

	return &info, nil
}

func routineVideoKey(routineID string) string {
	return fmt.Sprintf("routine:video:%s", routineID)
}

// SetWithJSON sets a value with JSON marshaling
func (c *Cache) SetWithJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Ping is the health check
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Package cache provides the Redis write-behind buffer for sync queue
// marks. Bursts of "mark for sync" clicks land in Redis and are flushed to
// the queue table in batches, so the database never sees the burst.
package cache

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"resellhub-api/internal/model"

	"github.com/redis/go-redis/v9"
)

// Buffer configuration
const (
	MaxBatchSize = 50
	FlushTimeout = 60 * time.Second
)

// FlushFunc is called to persist buffered queue marks to the database.
type FlushFunc func(ctx context.Context, items []model.SyncQueueItem) error

var deleteIfUnchangedScript = redis.NewScript(`
	if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then
		redis.call("HDEL", KEYS[1], ARGV[1])
		redis.call("SREM", KEYS[2], ARGV[1])
		return 1
	else
		return 0
	end
`)

// RedisMarkBuffer uses Redis for write-behind buffering of queue marks,
// keyed by inventory item id. A mark overwritten before it is flushed keeps
// only the latest desired price/quantity, matching the queue's
// one-row-per-item semantics.
type RedisMarkBuffer struct {
	client      *redis.Client
	flushFunc   FlushFunc
	flushTicker *time.Ticker
	stopFlush   chan struct{}
	stopOnce    sync.Once
	keyPrefix   string
}

// RedisBufferConfig holds configuration for the Redis mark buffer.
type RedisBufferConfig struct {
	Addr          string
	Password      string
	DB            int
	FlushInterval time.Duration
	KeyPrefix     string
}

// NewRedisMarkBuffer creates a Redis-backed queue mark buffer.
func NewRedisMarkBuffer(cfg RedisBufferConfig, flushFunc FlushFunc) (*RedisMarkBuffer, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "resellhub:syncqueue"
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 15 * time.Second
	}

	b := &RedisMarkBuffer{
		client:      client,
		flushFunc:   flushFunc,
		flushTicker: time.NewTicker(cfg.FlushInterval),
		stopFlush:   make(chan struct{}),
		keyPrefix:   keyPrefix,
	}

	go b.backgroundFlush()

	log.Printf("[RedisMarkBuffer] Started - DB:%d, prefix:%s, flush:%v, batch:%d",
		cfg.DB, keyPrefix, cfg.FlushInterval, MaxBatchSize)
	return b, nil
}

func (b *RedisMarkBuffer) bufferKey() string {
	return b.keyPrefix + ":buffer"
}

func (b *RedisMarkBuffer) pendingKey() string {
	return b.keyPrefix + ":pending"
}

// Add buffers a queue mark in Redis.
func (b *RedisMarkBuffer) Add(ctx context.Context, item model.SyncQueueItem) error {
	jsonData, err := json.Marshal(item)
	if err != nil {
		return err
	}

	pipe := b.client.Pipeline()
	pipe.HSet(ctx, b.bufferKey(), item.InventoryItemID, jsonData)
	pipe.SAdd(ctx, b.pendingKey(), item.InventoryItemID)
	_, err = pipe.Exec(ctx)
	return err
}

// Get retrieves a buffered mark from Redis. Returns nil if not buffered.
func (b *RedisMarkBuffer) Get(ctx context.Context, inventoryItemID string) (*model.SyncQueueItem, error) {
	data, err := b.client.HGet(ctx, b.bufferKey(), inventoryItemID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var item model.SyncQueueItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Remove drops a buffered mark that has not been flushed yet.
func (b *RedisMarkBuffer) Remove(ctx context.Context, inventoryItemID string) error {
	pipe := b.client.Pipeline()
	pipe.HDel(ctx, b.bufferKey(), inventoryItemID)
	pipe.SRem(ctx, b.pendingKey(), inventoryItemID)
	_, err := pipe.Exec(ctx)
	return err
}

// Count returns the number of pending marks.
func (b *RedisMarkBuffer) Count(ctx context.Context) (int64, error) {
	return b.client.SCard(ctx, b.pendingKey()).Result()
}

// FlushBatch writes up to MaxBatchSize marks to the database.
func (b *RedisMarkBuffer) FlushBatch(ctx context.Context) (int, error) {
	itemIDs, err := b.client.SRandMemberN(ctx, b.pendingKey(), MaxBatchSize).Result()
	if err != nil {
		return 0, err
	}
	if len(itemIDs) == 0 {
		return 0, nil
	}

	items := make([]model.SyncQueueItem, 0, len(itemIDs))
	originalData := make(map[string]string)

	for _, itemID := range itemIDs {
		data, err := b.client.HGet(ctx, b.bufferKey(), itemID).Bytes()
		if err == redis.Nil {
			b.client.SRem(ctx, b.pendingKey(), itemID)
			continue
		}
		if err != nil {
			log.Printf("[RedisMarkBuffer] Error getting %s: %v", itemID, err)
			continue
		}

		originalData[itemID] = string(data)

		var item model.SyncQueueItem
		if err := json.Unmarshal(data, &item); err != nil {
			log.Printf("[RedisMarkBuffer] Error unmarshaling %s: %v", itemID, err)
			b.client.HDel(ctx, b.bufferKey(), itemID)
			b.client.SRem(ctx, b.pendingKey(), itemID)
			continue
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return 0, nil
	}

	if err := b.flushFunc(ctx, items); err != nil {
		log.Printf("[RedisMarkBuffer] Flush error: %v", err)
		return 0, err
	}

	// Only delete marks that were not overwritten while flushing.
	pipe := b.client.Pipeline()
	for itemID, rawJSON := range originalData {
		deleteIfUnchangedScript.Run(ctx, pipe, []string{b.bufferKey(), b.pendingKey()}, itemID, rawJSON)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[RedisMarkBuffer] Error clearing Redis: %v", err)
	}

	log.Printf("[RedisMarkBuffer] Flushed %d queue marks", len(items))
	return len(items), nil
}

// Flush drains the buffer completely.
func (b *RedisMarkBuffer) Flush(ctx context.Context) error {
	for {
		n, err := b.FlushBatch(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// backgroundFlush is the periodic flush loop.
func (b *RedisMarkBuffer) backgroundFlush() {
	for {
		select {
		case <-b.flushTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), FlushTimeout)
			if _, err := b.FlushBatch(ctx); err != nil {
				log.Printf("[RedisMarkBuffer] Background flush error: %v", err)
			}
			cancel()
		case <-b.stopFlush:
			return
		}
	}
}

// Close stops the background flush and drains remaining marks.
func (b *RedisMarkBuffer) Close() error {
	b.stopOnce.Do(func() {
		b.flushTicker.Stop()
		close(b.stopFlush)

		ctx, cancel := context.WithTimeout(context.Background(), FlushTimeout)
		defer cancel()
		if err := b.Flush(ctx); err != nil {
			log.Printf("[RedisMarkBuffer] Final flush error: %v", err)
		}
	})
	return b.client.Close()
}

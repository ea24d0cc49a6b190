package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/visit-service/internal/domain"
)

const directoryKeyPrefix = "visit:directory:"

// CachedDirectory is a cache-aside PersonDirectory backed by Redis.
// Cache failures degrade to the origin directory; misses are never cached.
type CachedDirectory struct {
	origin PersonDirectory
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedDirectory wraps origin. A nil client or zero ttl disables caching.
func NewCachedDirectory(origin PersonDirectory, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedDirectory{origin: origin, client: client, ttl: ttl, logger: logger}
}

func (d *CachedDirectory) GetCustodiedPerson(ctx context.Context, id string) (*domain.CustodiedPerson, error) {
	key := directoryKeyPrefix + "custodied:" + id
	var cached domain.CustodiedPerson
	if d.load(ctx, key, &cached) {
		return &cached, nil
	}
	person, err := d.origin.GetCustodiedPerson(ctx, id)
	if err != nil {
		return nil, err
	}
	d.store(ctx, key, person)
	return person, nil
}

func (d *CachedDirectory) GetVisitor(ctx context.Context, id string) (*domain.Visitor, error) {
	key := directoryKeyPrefix + "visitor:" + id
	var cached domain.Visitor
	if d.load(ctx, key, &cached) {
		return &cached, nil
	}
	visitor, err := d.origin.GetVisitor(ctx, id)
	if err != nil {
		return nil, err
	}
	d.store(ctx, key, visitor)
	return visitor, nil
}

func (d *CachedDirectory) enabled() bool {
	return d.client != nil && d.ttl > 0
}

func (d *CachedDirectory) load(ctx context.Context, key string, target any) bool {
	if !d.enabled() {
		return false
	}
	raw, err := d.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			d.logger.Warn("directory cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, target); err != nil {
		d.logger.Warn("directory cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (d *CachedDirectory) store(ctx context.Context, key string, value any) {
	if !d.enabled() {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := d.client.Set(ctx, key, raw, d.ttl).Err(); err != nil {
		d.logger.Warn("directory cache write failed", zap.String("key", key), zap.Error(err))
	}
}

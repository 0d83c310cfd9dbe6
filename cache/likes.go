// Package cache keeps like counters in Redis so the community feed does not
// COUNT the likes table on every page load.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"memora/models"
)

const counterTTL = 10 * time.Minute

type LikeCounter struct {
	rdb *redis.Client
	db  *gorm.DB
}

// NewLikeCounter builds a counter backed by rdb with db as the source of
// truth. rdb may be nil; every read then falls through to the database.
func NewLikeCounter(rdb *redis.Client, db *gorm.DB) *LikeCounter {
	return &LikeCounter{rdb: rdb, db: db}
}

func counterKey(assetType, assetID string) string {
	return "likes:" + assetType + ":" + assetID
}

// Count returns the like count for one asset, read-through cached.
func (l *LikeCounter) Count(ctx context.Context, assetType, assetID string) (int64, error) {
	if l.rdb != nil {
		n, err := l.rdb.Get(ctx, counterKey(assetType, assetID)).Int64()
		if err == nil {
			return n, nil
		}
		if err != redis.Nil {
			return 0, fmt.Errorf("read like counter: %w", err)
		}
	}

	var n int64
	err := l.db.WithContext(ctx).Model(&models.Like{}).
		Where("asset_id = ? AND asset_type = ?", assetID, assetType).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}

	if l.rdb != nil {
		l.rdb.Set(ctx, counterKey(assetType, assetID), n, counterTTL)
	}
	return n, nil
}

// Incr bumps the cached counter after a like was written. Cache misses are
// left alone so the next Count repopulates from the database.
func (l *LikeCounter) Incr(ctx context.Context, assetType, assetID string) {
	l.adjust(ctx, assetType, assetID, 1)
}

// Decr lowers the cached counter after a like was removed.
func (l *LikeCounter) Decr(ctx context.Context, assetType, assetID string) {
	l.adjust(ctx, assetType, assetID, -1)
}

func (l *LikeCounter) adjust(ctx context.Context, assetType, assetID string, delta int64) {
	if l.rdb == nil {
		return
	}
	key := counterKey(assetType, assetID)
	exists, err := l.rdb.Exists(ctx, key).Result()
	if err != nil || exists == 0 {
		return
	}
	l.rdb.IncrBy(ctx, key, delta)
}

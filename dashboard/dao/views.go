package dao

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yaron8/netmon/analytics"
	"github.com/yaron8/netmon/metrics"
)

const (
	viewKeyPrefix = "netmon:view:"
	attackKey     = "netmon:attack"
)

// DAOViews mirrors derived views and the attack status into Redis
type DAOViews struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewDAOViews creates a new DAOViews with the provided Redis client
func NewDAOViews(redisClient *redis.Client, ttl time.Duration) *DAOViews {
	return &DAOViews{
		redisClient: redisClient,
		ttl:         ttl,
	}
}

func ViewKey(metric string) string {
	return viewKeyPrefix + metric
}

// StoreViews writes every view in one pipeline, each under its own key with
// the DAO's TTL.
func (dao *DAOViews) StoreViews(ctx context.Context, views []analytics.View) error {
	if len(views) == 0 {
		return nil
	}

	_, err := dao.redisClient.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, view := range views {
			data, err := json.Marshal(view)
			if err != nil {
				return fmt.Errorf("failed to marshal view %s: %w", view.Metric, err)
			}
			pipe.Set(ctx, ViewKey(view.Metric), data, dao.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store views: %w", err)
	}
	return nil
}

// StoreAttack saves the attack status with the DAO's TTL
func (dao *DAOViews) StoreAttack(ctx context.Context, status metrics.AttackStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}

	return dao.redisClient.Set(ctx, attackKey, data, dao.ttl).Err()
}

// Ping checks that Redis is reachable.
func (dao *DAOViews) Ping(ctx context.Context) error {
	return dao.redisClient.Ping(ctx).Err()
}

// Close releases the Redis connection pool.
func (dao *DAOViews) Close() error {
	return dao.redisClient.Close()
}

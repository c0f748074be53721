package hostbus

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisClient is a thin wrapper around go-redis exposing only the
// primitives the host bus needs: blocking list pop (host -> bridge),
// list push and pub/sub (bridge -> host), and a hash for the UID ->
// slave-address recipient table. Adapted from the teacher's
// pkg/redis.Client, trimmed to this bus's actual operations.
type redisClient struct {
	client *redis.Client
	ctx    context.Context
}

func newRedisClient(addr, password string, db int) (*redisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisClient{client: client, ctx: ctx}, nil
}

func (c *redisClient) Close() error {
	return c.client.Close()
}

func (c *redisClient) LPush(key string, value []byte) error {
	if err := c.client.LPush(c.ctx, key, value).Err(); err != nil {
		log.Printf("RS485: failed to LPUSH to %s: %v", key, err)
		return err
	}
	return nil
}

func (c *redisClient) Publish(channel string, message []byte) error {
	return c.client.Publish(c.ctx, channel, message).Err()
}

// BRPop performs a blocking right-pop, waiting up to timeout. A timeout
// with no data returns (nil, nil), matching the teacher's BRPop helper.
func (c *redisClient) BRPop(timeout time.Duration, key string) ([]string, error) {
	result, err := c.client.BRPop(c.ctx, timeout, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		log.Printf("RS485: error during BRPOP on %s: %v", key, err)
		return nil, err
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP result from %s: %v", key, result)
	}
	return result, nil
}

func (c *redisClient) HSet(key, field string, value interface{}) error {
	return c.client.HSet(c.ctx, key, field, value).Err()
}

func (c *redisClient) HGet(key, field string) (string, error) {
	value, err := c.client.HGet(c.ctx, key, field).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

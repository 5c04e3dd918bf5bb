package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/kmassidik/payflow/internal/common/config"
	"github.com/kmassidik/payflow/internal/common/logger"
)

// Client wraps go-redis with the small cache surface the ledger service uses.
type Client struct {
	*goredis.Client
	logger *logger.Logger
}

// Connect opens a Redis connection and verifies it with a ping.
func Connect(cfg config.RedisConfig, log *logger.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Infof("Connected to Redis at %s:%s", cfg.Host, cfg.Port)

	return &Client{Client: rdb, logger: log}, nil
}

func balanceKey(walletID string) string {
	return "wallet:balance:" + walletID
}

// CacheWalletBalance stores a wallet balance for read-path caching.
func (c *Client) CacheWalletBalance(ctx context.Context, walletID string, balance int64, ttl time.Duration) error {
	return c.Set(ctx, balanceKey(walletID), strconv.FormatInt(balance, 10), ttl).Err()
}

// GetCachedWalletBalance returns the cached balance and whether it was found.
func (c *Client) GetCachedWalletBalance(ctx context.Context, walletID string) (int64, bool, error) {
	val, err := c.Get(ctx, balanceKey(walletID)).Result()
	if err == goredis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	balance, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// Corrupt cache entry; treat as a miss.
		c.Del(ctx, balanceKey(walletID))
		return 0, false, nil
	}

	return balance, true, nil
}

// InvalidateWalletBalance drops the cached balance after a ledger mutation.
func (c *Client) InvalidateWalletBalance(ctx context.Context, walletID string) {
	if err := c.Del(ctx, balanceKey(walletID)).Err(); err != nil {
		c.logger.Warnf("Failed to invalidate balance cache for %s: %v", walletID, err)
	}
}

// Health verifies the connection is alive.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"auction-service/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/unlock.lua
var unlockScript string

type Client struct {
	rdb    *redis.Client
	unlock *redis.Script
}

// NewClient creates a new Redis client with the unlock script loaded.
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:    rdb,
		unlock: redis.NewScript(unlockScript),
	}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireAuctionLock takes the cross-instance serialization lock for one
// auction. Returns a release token and whether the lock was obtained. The
// TTL bounds how long a crashed holder can block the auction.
func (c *Client) AcquireAuctionLock(ctx context.Context, auctionID string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := c.rdb.SetNX(ctx, lockKey(auctionID), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire auction lock: %w", err)
	}
	return token, ok, nil
}

// ReleaseAuctionLock releases the lock iff the token still owns it, so an
// expired-and-reacquired lock is never deleted out from under a new holder.
func (c *Client) ReleaseAuctionLock(ctx context.Context, auctionID, token string) error {
	_, err := c.unlock.Run(ctx, c.rdb, []string{lockKey(auctionID)}, token).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("release auction lock: %w", err)
	}
	return nil
}

// CacheBidder stores a resolved token -> bidder identity.
func (c *Client) CacheBidder(ctx context.Context, token string, bidder *models.Bidder, ttl time.Duration) error {
	payload, err := json.Marshal(bidder)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, tokenKey(token), payload, ttl).Err()
}

// GetCachedBidder returns the cached identity for a token, or nil on a miss.
func (c *Client) GetCachedBidder(ctx context.Context, token string) (*models.Bidder, error) {
	val, err := c.rdb.Get(ctx, tokenKey(token)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var bidder models.Bidder
	if err := json.Unmarshal(val, &bidder); err != nil {
		return nil, fmt.Errorf("decode cached bidder: %w", err)
	}
	return &bidder, nil
}

func lockKey(auctionID string) string {
	return fmt.Sprintf("lock:auction:%s", auctionID)
}

func tokenKey(token string) string {
	return fmt.Sprintf("identity:%s", token)
}

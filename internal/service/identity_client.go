package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-service/internal/models"
	"auction-service/internal/store"
	"auction-service/internal/util"

	"go.uber.org/zap"
)

const identityCacheTTL = 5 * time.Minute

// IdentityClient is the identity provider collaborator: it resolves a
// caller token to a bidder identity, with a Redis fast path and the store
// as the source of truth.
type IdentityClient struct {
	store  Store
	cache  IdentityCache // nil disables caching
	logger *zap.Logger
}

// NewIdentityClient creates a new identity client. cache may be nil.
func NewIdentityClient(st Store, cache IdentityCache) *IdentityClient {
	return &IdentityClient{store: st, cache: cache, logger: util.GetLogger()}
}

// Resolve maps a bearer token to (bidderID, displayName).
func (ic *IdentityClient) Resolve(ctx context.Context, token string) (*models.Bidder, error) {
	ctx, span := util.StartSpan(ctx, "IdentityClient.Resolve")
	defer span.End()

	if token == "" {
		return nil, ErrBidderNotFound
	}

	if ic.cache != nil {
		cached, err := ic.cache.GetCachedBidder(ctx, token)
		if err != nil {
			ic.logger.Warn("Identity cache read failed, falling back to store", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	bidder, err := ic.store.GetBidderByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBidderNotFound
		}
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}

	if ic.cache != nil {
		if err := ic.cache.CacheBidder(ctx, token, bidder, identityCacheTTL); err != nil {
			ic.logger.Warn("Failed to cache identity", zap.Error(err))
		}
	}

	return bidder, nil
}

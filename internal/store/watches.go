package store

import (
	"context"
	"fmt"

	"auction-service/internal/models"
)

// ToggleWatch flips the bidder-auction watch edge and keeps the denormalized
// watch count in step, in one transaction. The watch relation is its own
// resource: the aggregate version is deliberately not bumped, so toggling
// never conflicts with bid commits. Returns true when the bidder is watching
// after the call.
func (s *Store) ToggleWatch(ctx context.Context, auctionID, bidderID string) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM watches WHERE auction_id = $1 AND bidder_id = $2",
		auctionID, bidderID)
	if err != nil {
		return false, fmt.Errorf("failed to remove watch: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	watching := removed == 0
	if watching {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO watches (auction_id, bidder_id) VALUES ($1, $2)",
			auctionID, bidderID)
		if err != nil {
			return false, fmt.Errorf("failed to add watch: %w", err)
		}
	}

	delta := -1
	if watching {
		delta = 1
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE auctions SET watch_count = watch_count + $1 WHERE id = $2",
		delta, auctionID)
	if err != nil {
		return false, fmt.Errorf("failed to update watch count: %w", err)
	}

	return watching, tx.Commit()
}

// ListWatchedAuctions returns the auctions a bidder is watching.
func (s *Store) ListWatchedAuctions(ctx context.Context, bidderID string) ([]models.Auction, error) {
	var auctions []models.Auction
	err := s.db.SelectContext(ctx, &auctions, `
		SELECT a.* FROM auctions a
		JOIN watches w ON w.auction_id = a.id
		WHERE w.bidder_id = $1
		ORDER BY w.created_at DESC`, bidderID)
	return auctions, err
}

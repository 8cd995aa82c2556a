package store

import (
	"context"
	"database/sql"
	"fmt"

	"auction-service/internal/models"
)

// CreateAuction inserts a new auction aggregate.
func (s *Store) CreateAuction(ctx context.Context, a *models.Auction) error {
	query := `
		INSERT INTO auctions (
			id, title, description, credit_ref, credit_value, auction_type,
			initial_price, price_step, reserve_price, decay_amount,
			decay_interval_seconds, start_time, end_time, creator_id,
			current_price, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING version, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		a.ID, a.Title, a.Description, a.CreditRef, a.CreditValue, a.Type,
		a.InitialPrice, a.PriceStep, a.ReservePrice, a.DecayAmount,
		a.DecayIntervalSeconds, a.StartTime, a.EndTime, a.CreatorID,
		a.CurrentPrice, a.Status,
	).Scan(&a.Version, &a.CreatedAt, &a.UpdatedAt)
}

// GetAuctionByID retrieves one auction aggregate.
func (s *Store) GetAuctionByID(ctx context.Context, id string) (*models.Auction, error) {
	var a models.Auction
	err := s.db.GetContext(ctx, &a, "SELECT * FROM auctions WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("auction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListFilter narrows ListAuctions. Status filtering happens above the store,
// after live evaluation; the stored status column may lag the clock.
type ListFilter struct {
	Type  models.AuctionType
	Limit int
}

// ListAuctions retrieves auctions, newest first.
func (s *Store) ListAuctions(ctx context.Context, f ListFilter) ([]models.Auction, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	var auctions []models.Auction
	var err error
	if f.Type != "" {
		err = s.db.SelectContext(ctx, &auctions,
			"SELECT * FROM auctions WHERE auction_type = $1 ORDER BY created_at DESC LIMIT $2",
			f.Type, limit)
	} else {
		err = s.db.SelectContext(ctx, &auctions,
			"SELECT * FROM auctions ORDER BY created_at DESC LIMIT $1", limit)
	}
	return auctions, err
}

// ListOpenAuctions retrieves every auction that has not reached a terminal
// status. Used by the status sweep.
func (s *Store) ListOpenAuctions(ctx context.Context) ([]models.Auction, error) {
	var auctions []models.Auction
	err := s.db.SelectContext(ctx, &auctions,
		"SELECT * FROM auctions WHERE status NOT IN ($1, $2) ORDER BY end_time",
		models.StatusEnded, models.StatusCancelled)
	return auctions, err
}

// AcceptBidTx commits an accepted bid in a single transaction: the aggregate
// update (price, bid count, status, last bid time) is conditional on the
// version read before validation, and the bid row is appended. Returns
// ErrVersionConflict when the aggregate moved underneath the caller.
func (s *Store) AcceptBidTx(ctx context.Context, a *models.Auction, bid *models.Bid, newStatus models.Status) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE auctions
		SET current_price = $1, total_bids = total_bids + 1, status = $2,
		    last_bid_at = $3, version = version + 1, updated_at = NOW()
		WHERE id = $4 AND version = $5`,
		bid.Amount, newStatus, bid.AcceptedAt, a.ID, a.Version)
	if err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrVersionConflict
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bids (id, auction_id, bidder_id, bidder_name, amount, accepted_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		bid.ID, bid.AuctionID, bid.BidderID, bid.BidderName, bid.Amount, bid.AcceptedAt)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}

	return tx.Commit()
}

// UpdateStatusCAS moves the status field from exactly `from` to `to`. It
// never touches price or bids, but it does bump the aggregate version so an
// in-flight bid commit retries against the fresh status instead of
// overwriting the transition. Returns false when the guard did not match.
func (s *Store) UpdateStatusCAS(ctx context.Context, id string, from, to models.Status) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE auctions
		SET status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND NOT cancelled`,
		to, id, from)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

// CancelAuctionCAS terminally cancels an auction, conditional on the version
// read by the caller. Already-terminal auctions never match the guard.
func (s *Store) CancelAuctionCAS(ctx context.Context, id string, version int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE auctions
		SET cancelled = TRUE, status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3 AND status NOT IN ($1, $4)`,
		models.StatusCancelled, id, version, models.StatusEnded)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

// GetBidsByAuction returns the append-only bid history, ordered by
// acceptance time.
func (s *Store) GetBidsByAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	var bids []models.Bid
	err := s.db.SelectContext(ctx, &bids,
		"SELECT * FROM bids WHERE auction_id = $1 ORDER BY accepted_at", auctionID)
	return bids, err
}

// GetLastBid returns the most recently accepted bid for an auction, or
// ErrNotFound when no bid was accepted.
func (s *Store) GetLastBid(ctx context.Context, auctionID string) (*models.Bid, error) {
	var bid models.Bid
	err := s.db.GetContext(ctx, &bid,
		"SELECT * FROM bids WHERE auction_id = $1 ORDER BY accepted_at DESC LIMIT 1", auctionID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bids for auction %s: %w", auctionID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

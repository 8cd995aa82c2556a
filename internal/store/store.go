package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auction-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict is returned when an optimistic conditional update
	// lost the race: the aggregate version moved between read and commit.
	// Callers retry the whole read-validate-commit sequence.
	ErrVersionConflict = errors.New("auction version conflict")
)

type Store struct {
	db *sqlx.DB
}

// NewStore connects to Postgres and returns the auction store.
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection.
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetBidderByToken resolves an API token to a bidder identity.
func (s *Store) GetBidderByToken(ctx context.Context, token string) (*models.Bidder, error) {
	var bidder models.Bidder
	err := s.db.GetContext(ctx, &bidder,
		"SELECT id, display_name, created_at FROM bidders WHERE api_token = $1", token)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bidder token: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &bidder, nil
}

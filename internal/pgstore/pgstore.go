// Package pgstore keeps listings in PostgreSQL. Accounts stay in the SQLite
// store; only the listing lifecycle runs against this backend.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/erazemk/surplus/internal/listing"
	"github.com/erazemk/surplus/internal/model"
	"github.com/erazemk/surplus/internal/pgstore/migrations"
)

var _ listing.Repository = (*Store)(nil)

const listingColumns = `id, food_type, quantity, prepared_at, expiry_time, hygiene_status,
       status, created_at, seller_id, photo IS NOT NULL`

// Store implements the listing repository on PostgreSQL.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn through pgx, applies migrations and returns the store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies the embedded goose migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, committing only if fn succeeds.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*model.Listing, error) {
	l := &model.Listing{}
	var sellerID sql.NullInt64
	if err := row.Scan(&l.ID, &l.FoodType, &l.Quantity, &l.PreparedAt, &l.ExpiryTime, &l.HygieneStatus,
		&l.Status, &l.CreatedAt, &sellerID, &l.HasPhoto); err != nil {
		return nil, err
	}
	l.PreparedAt = l.PreparedAt.UTC()
	l.ExpiryTime = l.ExpiryTime.UTC()
	l.CreatedAt = l.CreatedAt.UTC()
	if sellerID.Valid {
		l.SellerID = &sellerID.Int64
	}
	return l, nil
}

func (s *Store) Create(ctx context.Context, l *model.Listing) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO listings (id, food_type, quantity, prepared_at, expiry_time, hygiene_status, status, created_at, seller_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			l.ID, l.FoodType, l.Quantity, l.PreparedAt, l.ExpiryTime, l.HygieneStatus, l.Status, l.CreatedAt, l.SellerID,
		)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO listing_events (listing_id, from_status, to_status, reason, at)
			 VALUES ($1, NULL, $2, $3, $4)`,
			l.ID, l.Status, model.ReasonCreated, l.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

func (s *Store) FindByID(ctx context.Context, id string) (*model.Listing, error) {
	l, err := scanListing(s.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return l, nil
}

func (s *Store) FindByStatus(ctx context.Context, status model.ListingStatus) ([]model.Listing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE status = $1
		 ORDER BY created_at DESC, seq DESC`, status,
	)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	listings := []model.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

// ExpireStale flips stale listings and records their events in one statement.
func (s *Store) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`WITH swept AS (
		     UPDATE listings SET status = $2
		     WHERE status = $3 AND expiry_time < $1
		     RETURNING id
		 )
		 INSERT INTO listing_events (listing_id, from_status, to_status, reason, at)
		 SELECT id, $3::text, $2::text, $4::text, $1::timestamptz FROM swept`,
		now, model.StatusExpired, model.StatusActive, model.ReasonSwept,
	)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (s *Store) ExpireOne(ctx context.Context, id string, now time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`WITH expired AS (
		     UPDATE listings SET status = $3
		     WHERE id = $1 AND status = $4 AND expiry_time < $2
		     RETURNING id
		 )
		 INSERT INTO listing_events (listing_id, from_status, to_status, reason, at)
		 SELECT id, $4::text, $3::text, $5::text, $2::timestamptz FROM expired`,
		id, now, model.StatusExpired, model.StatusActive, model.ReasonReconciled,
	)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status model.ListingStatus, now time.Time) (bool, error) {
	found := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var from model.ListingStatus
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM listings WHERE id = $1 FOR UPDATE`, id,
		).Scan(&from)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE listings SET status = $2 WHERE id = $1`, id, status); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO listing_events (listing_id, from_status, to_status, reason, at)
			 VALUES ($1, $2, $3, $4, $5)`,
			id, from, status, model.ReasonUpdated, now.UTC(),
		)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		found = true
		return nil
	})
	return found, err
}

func (s *Store) Delete(ctx context.Context, id string) (*model.Listing, error) {
	var removed *model.Listing
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM listing_events WHERE listing_id = $1`, id); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		l, err := scanListing(tx.QueryRowContext(ctx,
			`DELETE FROM listings WHERE id = $1 RETURNING `+listingColumns, id,
		))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		removed = l
		return nil
	})
	return removed, err
}

func (s *Store) History(ctx context.Context, id string) ([]model.ListingEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, listing_id, from_status, to_status, reason, at
		 FROM listing_events WHERE listing_id = $1 ORDER BY id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	events := []model.ListingEvent{}
	for rows.Next() {
		var e model.ListingEvent
		var from sql.NullString
		if err := rows.Scan(&e.ID, &e.ListingID, &from, &e.To, &e.Reason, &e.At); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		if from.Valid {
			status := model.ListingStatus(from.String)
			e.From = &status
		}
		e.At = e.At.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Store) SetPhoto(ctx context.Context, id string, data []byte, mime string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE listings SET photo = $2, photo_mime = $3 WHERE id = $1`,
		id, data, mime,
	)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (s *Store) GetPhoto(ctx context.Context, id string) ([]byte, string, error) {
	var data []byte
	var mime sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT photo, photo_mime FROM listings WHERE id = $1`, id,
	).Scan(&data, &mime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("db error: %w", err)
	}
	return data, mime.String, nil
}

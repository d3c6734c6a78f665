package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/surplus/internal/model"
)

const listingColumns = `id, food_type, quantity, prepared_at, expiry_time, hygiene_status,
	status, created_at, seller_id, photo IS NOT NULL`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*model.Listing, error) {
	l := &model.Listing{}
	var preparedAt, expiryTime, createdAt int64
	var sellerID sql.NullInt64
	if err := row.Scan(&l.ID, &l.FoodType, &l.Quantity, &preparedAt, &expiryTime, &l.HygieneStatus,
		&l.Status, &createdAt, &sellerID, &l.HasPhoto); err != nil {
		return nil, err
	}
	l.PreparedAt = fromNanos(preparedAt)
	l.ExpiryTime = fromNanos(expiryTime)
	l.CreatedAt = fromNanos(createdAt)
	if sellerID.Valid {
		l.SellerID = &sellerID.Int64
	}
	return l, nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// CreateListing inserts a listing and its creation event.
func CreateListing(ctx context.Context, db *sql.DB, l *model.Listing) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO listings (id, food_type, quantity, prepared_at, expiry_time, hygiene_status, status, created_at, seller_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.FoodType, l.Quantity, l.PreparedAt.UnixNano(), l.ExpiryTime.UnixNano(),
		l.HygieneStatus, l.Status, l.CreatedAt.UnixNano(), l.SellerID,
	)
	if err != nil {
		return fmt.Errorf("creating listing: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO listing_events (listing_id, from_status, to_status, reason, at) VALUES (?, NULL, ?, ?, ?)`,
		l.ID, l.Status, model.ReasonCreated, l.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("recording listing event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing listing: %w", err)
	}
	return nil
}

// GetListing returns a listing by ID.
func GetListing(ctx context.Context, db *sql.DB, id string) (*model.Listing, error) {
	l, err := scanListing(db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting listing: %w", err)
	}
	return l, nil
}

// ListListingsByStatus returns listings in status, newest first.
func ListListingsByStatus(ctx context.Context, db *sql.DB, status model.ListingStatus) ([]model.Listing, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE status = ?
		 ORDER BY created_at DESC, seq DESC`, status,
	)
	if err != nil {
		return nil, fmt.Errorf("listing listings: %w", err)
	}
	defer rows.Close()

	listings := []model.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

// ExpireStaleListings marks every active listing with an expiry before now
// as expired and returns how many changed.
func ExpireStaleListings(ctx context.Context, db *sql.DB, now time.Time) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	at := now.UnixNano()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO listing_events (listing_id, from_status, to_status, reason, at)
		 SELECT id, status, ?, ?, ? FROM listings WHERE status = ? AND expiry_time < ?`,
		model.StatusExpired, model.ReasonSwept, at, model.StatusActive, at,
	)
	if err != nil {
		return 0, fmt.Errorf("recording sweep events: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE listings SET status = ? WHERE status = ? AND expiry_time < ?`,
		model.StatusExpired, model.StatusActive, at,
	)
	if err != nil {
		return 0, fmt.Errorf("expiring listings: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting expired listings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing sweep: %w", err)
	}
	return n, nil
}

// ExpireListing marks one listing expired if it is active and its expiry is
// before now. It reports whether the row changed.
func ExpireListing(ctx context.Context, db *sql.DB, id string, now time.Time) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	at := now.UnixNano()
	result, err := tx.ExecContext(ctx,
		`UPDATE listings SET status = ? WHERE id = ? AND status = ? AND expiry_time < ?`,
		model.StatusExpired, id, model.StatusActive, at,
	)
	if err != nil {
		return false, fmt.Errorf("expiring listing: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("counting expired listing: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO listing_events (listing_id, from_status, to_status, reason, at) VALUES (?, ?, ?, ?, ?)`,
		id, model.StatusActive, model.StatusExpired, model.ReasonReconciled, at,
	)
	if err != nil {
		return false, fmt.Errorf("recording listing event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing expiry: %w", err)
	}
	return true, nil
}

// UpdateListingStatus sets a listing's status unconditionally. It reports
// whether the listing exists.
func UpdateListingStatus(ctx context.Context, db *sql.DB, id string, status model.ListingStatus, now time.Time) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var from model.ListingStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM listings WHERE id = ?`, id).Scan(&from)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getting listing status: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE listings SET status = ? WHERE id = ?`, status, id); err != nil {
		return false, fmt.Errorf("updating listing status: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO listing_events (listing_id, from_status, to_status, reason, at) VALUES (?, ?, ?, ?, ?)`,
		id, from, status, model.ReasonUpdated, now.UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("recording listing event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing status update: %w", err)
	}
	return true, nil
}

// DeleteListing removes a listing with its history and returns it as it was.
func DeleteListing(ctx context.Context, db *sql.DB, id string) (*model.Listing, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	l, err := scanListing(tx.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting listing: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM listing_events WHERE listing_id = ?`, id); err != nil {
		return nil, fmt.Errorf("deleting listing history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("deleting listing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing delete: %w", err)
	}
	return l, nil
}

// GetListingHistory returns the status events of a listing, oldest first.
func GetListingHistory(ctx context.Context, db *sql.DB, id string) ([]model.ListingEvent, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, listing_id, from_status, to_status, reason, at
		 FROM listing_events WHERE listing_id = ? ORDER BY id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("getting listing history: %w", err)
	}
	defer rows.Close()

	events := []model.ListingEvent{}
	for rows.Next() {
		var e model.ListingEvent
		var from sql.NullString
		var at int64
		if err := rows.Scan(&e.ID, &e.ListingID, &from, &e.To, &e.Reason, &at); err != nil {
			return nil, fmt.Errorf("scanning listing event: %w", err)
		}
		if from.Valid {
			s := model.ListingStatus(from.String)
			e.From = &s
		}
		e.At = fromNanos(at)
		events = append(events, e)
	}
	return events, rows.Err()
}

// SetListingPhoto sets a listing's photo. It reports whether the listing exists.
func SetListingPhoto(ctx context.Context, db *sql.DB, id string, photo []byte, mime string) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE listings SET photo = ?, photo_mime = ? WHERE id = ?`,
		photo, mime, id,
	)
	if err != nil {
		return false, fmt.Errorf("setting listing photo: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("setting listing photo: %w", err)
	}
	return n > 0, nil
}

// GetListingPhoto returns a listing's photo and MIME type.
func GetListingPhoto(ctx context.Context, db *sql.DB, id string) ([]byte, string, error) {
	var photo []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT photo, photo_mime FROM listings WHERE id = ?`, id,
	).Scan(&photo, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting listing photo: %w", err)
	}
	return photo, mime.String, nil
}

// Listings adapts the listing functions to the lifecycle repository.
type Listings struct {
	DB *sql.DB
}

func (s *Listings) Create(ctx context.Context, l *model.Listing) error {
	return CreateListing(ctx, s.DB, l)
}

func (s *Listings) FindByID(ctx context.Context, id string) (*model.Listing, error) {
	return GetListing(ctx, s.DB, id)
}

func (s *Listings) FindByStatus(ctx context.Context, status model.ListingStatus) ([]model.Listing, error) {
	return ListListingsByStatus(ctx, s.DB, status)
}

func (s *Listings) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	return ExpireStaleListings(ctx, s.DB, now)
}

func (s *Listings) ExpireOne(ctx context.Context, id string, now time.Time) (bool, error) {
	return ExpireListing(ctx, s.DB, id, now)
}

func (s *Listings) UpdateStatus(ctx context.Context, id string, status model.ListingStatus, now time.Time) (bool, error) {
	return UpdateListingStatus(ctx, s.DB, id, status, now)
}

func (s *Listings) Delete(ctx context.Context, id string) (*model.Listing, error) {
	return DeleteListing(ctx, s.DB, id)
}

func (s *Listings) History(ctx context.Context, id string) ([]model.ListingEvent, error) {
	return GetListingHistory(ctx, s.DB, id)
}

func (s *Listings) SetPhoto(ctx context.Context, id string, data []byte, mime string) (bool, error) {
	return SetListingPhoto(ctx, s.DB, id, data, mime)
}

func (s *Listings) GetPhoto(ctx context.Context, id string) ([]byte, string, error) {
	return GetListingPhoto(ctx, s.DB, id)
}

// Package listing owns the lifecycle of surplus-food listings: policy-gated
// creation, expiry on read, the bulk sweep, and explicit status changes.
package listing

import (
	"context"
	"time"

	"github.com/erazemk/surplus/internal/model"
)

// Repository is the persistence collaborator. Lookups return nil, nil for
// absent rows. Implementations record a model.ListingEvent alongside every
// status change they make.
type Repository interface {
	// Create inserts a new listing.
	Create(ctx context.Context, l *model.Listing) error

	// FindByID returns the listing with id.
	FindByID(ctx context.Context, id string) (*model.Listing, error)

	// FindByStatus returns listings in status, newest first. Listings created
	// at the same instant are ordered by insertion, latest first.
	FindByStatus(ctx context.Context, status model.ListingStatus) ([]model.Listing, error)

	// ExpireStale marks every active listing whose expiry is before now as
	// expired and returns how many changed.
	ExpireStale(ctx context.Context, now time.Time) (int64, error)

	// ExpireOne marks a single listing expired if it is active and its expiry
	// is before now. It reports whether the row changed.
	ExpireOne(ctx context.Context, id string, now time.Time) (bool, error)

	// UpdateStatus sets the status unconditionally and reports whether the
	// listing exists.
	UpdateStatus(ctx context.Context, id string, status model.ListingStatus, now time.Time) (bool, error)

	// Delete removes a listing and returns it as it was, or nil if absent.
	Delete(ctx context.Context, id string) (*model.Listing, error)

	// History returns the status events of a listing, oldest first.
	History(ctx context.Context, id string) ([]model.ListingEvent, error)

	// SetPhoto stores a photo and reports whether the listing exists.
	SetPhoto(ctx context.Context, id string, data []byte, mime string) (bool, error)

	// GetPhoto returns the photo of a listing, or nil data if there is none.
	GetPhoto(ctx context.Context, id string) ([]byte, string, error)
}

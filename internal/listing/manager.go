package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/erazemk/surplus/internal/model"
	"github.com/erazemk/surplus/internal/safety"
)

// DefaultStoreTimeout bounds store calls raced by Create and ListActive.
const DefaultStoreTimeout = 5 * time.Second

// DegradedNote is attached to responses built without a storage answer.
const DegradedNote = "storage did not respond in time; this response is not confirmed"

// Options configure a Manager.
type Options struct {
	// StoreTimeout bounds the store work of Create and ListActive. Zero or
	// negative disables the race.
	StoreTimeout time.Duration

	// DegradeOnTimeout makes timed-out calls return a best-effort degraded
	// result instead of ErrStoreUnavailable.
	DegradeOnTimeout bool

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Manager runs the listing lifecycle on top of a Repository.
type Manager struct {
	repo   Repository
	eval   *safety.Evaluator
	opts   Options
	sweeps singleflight.Group
}

// Created is the outcome of Create. Listing is nil unless the decision was
// accepted.
type Created struct {
	Listing  *model.Listing
	Decision safety.Decision
	Degraded bool
}

// ActiveList is the outcome of ListActive.
type ActiveList struct {
	Listings      []model.Listing
	ExpiredMarked int64
	CheckedAt     time.Time
	Degraded      bool
}

// NewManager creates a Manager. A nil evaluator uses the default windows.
func NewManager(repo Repository, eval *safety.Evaluator, opts Options) *Manager {
	if eval == nil {
		windows, _ := safety.NewWindows(safety.DefaultWindows())
		eval = safety.NewEvaluator(windows)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{repo: repo, eval: eval, opts: opts}
}

// Windows returns the safety windows creation is gated with.
func (m *Manager) Windows() *safety.Windows {
	return m.eval.Windows()
}

func (m *Manager) now() time.Time {
	return m.opts.Now().UTC().Round(0)
}

// Create evaluates a submission and persists it when accepted. A rejection
// is not an error: the returned Decision carries the reason and no record is
// written.
func (m *Manager) Create(ctx context.Context, in safety.SubmissionInput, sellerID *int64) (Created, error) {
	now := m.now()

	d := m.eval.Evaluate(in, now)
	if !d.Accepted() {
		slog.Debug("listing rejected", "outcome", d.Outcome.String(), "food_type", in.FoodType)
		return Created{Decision: d}, nil
	}

	l := &model.Listing{
		ID:            uuid.NewString(),
		FoodType:      in.FoodType,
		Quantity:      in.Quantity,
		PreparedAt:    in.PreparedAt.UTC(),
		ExpiryTime:    d.ExpiryTime,
		HygieneStatus: in.Hygiene,
		Status:        model.StatusActive,
		CreatedAt:     now,
		SellerID:      sellerID,
	}

	if check := m.eval.CheckListing(l, now); !check.Accepted() {
		slog.Error("constructed listing failed safety check", "id", l.ID, "expiry", l.ExpiryTime)
		return Created{Decision: check}, nil
	}

	_, err := race(ctx, m.opts.StoreTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.repo.Create(ctx, l)
	})
	if errors.Is(err, errStoreTimeout) {
		if !m.opts.DegradeOnTimeout {
			slog.Warn("listing create timed out", "id", l.ID, "timeout", m.opts.StoreTimeout)
			return Created{}, ErrStoreUnavailable
		}
		slog.Warn("listing create timed out, answering degraded", "id", l.ID, "timeout", m.opts.StoreTimeout)
		return Created{Listing: l, Decision: d, Degraded: true}, nil
	}
	if err != nil {
		return Created{}, fmt.Errorf("creating listing: %w", err)
	}

	slog.Info("listing created", "id", l.ID, "food_type", l.FoodType, "expiry", l.ExpiryTime)
	return Created{Listing: l, Decision: d}, nil
}

// Reconcile returns the listing with id, first marking it expired when it is
// still active past its expiry time.
func (m *Manager) Reconcile(ctx context.Context, id string) (*model.Listing, error) {
	l, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding listing: %w", err)
	}
	if l == nil {
		return nil, ErrNotFound
	}

	now := m.now()
	if l.Status != model.StatusActive || !now.After(l.ExpiryTime) {
		return l, nil
	}

	changed, err := m.repo.ExpireOne(ctx, id, now)
	if err != nil {
		return nil, fmt.Errorf("expiring listing: %w", err)
	}
	if changed {
		slog.Info("listing expired on read", "id", id, "expiry", l.ExpiryTime)
		l.Status = model.StatusExpired
		return l, nil
	}

	// Someone else moved it between the read and the update.
	l, err = m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding listing: %w", err)
	}
	if l == nil {
		return nil, ErrNotFound
	}
	return l, nil
}

// SweepExpired marks every active listing past its expiry as expired and
// returns the number changed. Concurrent sweeps at the same instant share one
// store call; a sweep at another instant never joins a running one.
func (m *Manager) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	key := strconv.FormatInt(now.UnixNano(), 10)
	v, err, shared := m.sweeps.Do(key, func() (any, error) {
		return m.repo.ExpireStale(context.WithoutCancel(ctx), now)
	})
	if err != nil {
		return 0, fmt.Errorf("sweeping listings: %w", err)
	}

	n := v.(int64)
	if n > 0 && !shared {
		slog.Info("expired stale listings", "count", n)
	}
	return n, nil
}

// Sweep runs SweepExpired at the manager's current time and returns the
// count together with the instant used.
func (m *Manager) Sweep(ctx context.Context) (int64, time.Time, error) {
	now := m.now()
	n, err := m.SweepExpired(ctx, now)
	return n, now, err
}

// ListActive sweeps stale listings and returns the active ones, newest first.
func (m *Manager) ListActive(ctx context.Context) (ActiveList, error) {
	now := m.now()

	res, err := race(ctx, m.opts.StoreTimeout, func(ctx context.Context) (ActiveList, error) {
		marked, err := m.SweepExpired(ctx, now)
		if err != nil {
			return ActiveList{}, err
		}

		listings, err := m.repo.FindByStatus(ctx, model.StatusActive)
		if err != nil {
			return ActiveList{}, fmt.Errorf("listing active: %w", err)
		}
		if listings == nil {
			listings = []model.Listing{}
		}
		return ActiveList{Listings: listings, ExpiredMarked: marked, CheckedAt: now}, nil
	})
	if errors.Is(err, errStoreTimeout) {
		if !m.opts.DegradeOnTimeout {
			slog.Warn("active listing query timed out", "timeout", m.opts.StoreTimeout)
			return ActiveList{}, ErrStoreUnavailable
		}
		slog.Warn("active listing query timed out, answering degraded", "timeout", m.opts.StoreTimeout)
		return ActiveList{Listings: []model.Listing{}, CheckedAt: now, Degraded: true}, nil
	}
	if err != nil {
		return ActiveList{}, err
	}
	return res, nil
}

// SetStatus sets a listing's status without checking transitions and
// returns the updated listing.
func (m *Manager) SetStatus(ctx context.Context, id string, status model.ListingStatus) (*model.Listing, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	prev, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding listing: %w", err)
	}
	if prev == nil {
		return nil, ErrNotFound
	}

	ok, err := m.repo.UpdateStatus(ctx, id, status, m.now())
	if err != nil {
		return nil, fmt.Errorf("updating listing status: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	if status == model.StatusActive && prev.Status != model.StatusActive {
		slog.Warn("listing moved back to active", "id", id, "from", prev.Status)
	}

	l, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding listing: %w", err)
	}
	if l == nil {
		return nil, ErrNotFound
	}
	return l, nil
}

// Delete removes a listing and returns a summary of what was removed.
func (m *Manager) Delete(ctx context.Context, id string) (*model.DeletedSummary, error) {
	l, err := m.repo.Delete(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("deleting listing: %w", err)
	}
	if l == nil {
		return nil, ErrNotFound
	}

	slog.Info("listing deleted", "id", id)
	return l.Summarize(), nil
}

// History returns the status events of a listing, oldest first.
func (m *Manager) History(ctx context.Context, id string) ([]model.ListingEvent, error) {
	l, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding listing: %w", err)
	}
	if l == nil {
		return nil, ErrNotFound
	}

	events, err := m.repo.History(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting listing history: %w", err)
	}
	if events == nil {
		events = []model.ListingEvent{}
	}
	return events, nil
}

// SetPhoto attaches an already processed photo to a listing.
func (m *Manager) SetPhoto(ctx context.Context, id string, data []byte, mime string) error {
	ok, err := m.repo.SetPhoto(ctx, id, data, mime)
	if err != nil {
		return fmt.Errorf("setting listing photo: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Photo returns the photo of a listing. ErrNotFound covers both a missing
// listing and a listing without a photo.
func (m *Manager) Photo(ctx context.Context, id string) ([]byte, string, error) {
	data, mime, err := m.repo.GetPhoto(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("getting listing photo: %w", err)
	}
	if data == nil {
		return nil, "", ErrNotFound
	}
	return data, mime, nil
}

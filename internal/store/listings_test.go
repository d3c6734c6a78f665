package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/erazemk/surplus/internal/db"
	"github.com/erazemk/surplus/internal/model"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestListing(id string, category model.FoodCategory, preparedAt time.Time, window time.Duration) *model.Listing {
	return &model.Listing{
		ID:            id,
		FoodType:      category,
		Quantity:      3,
		PreparedAt:    preparedAt,
		ExpiryTime:    preparedAt.Add(window),
		HygieneStatus: model.HygieneGood,
		Status:        model.StatusActive,
		CreatedAt:     testNow,
	}
}

func mustCreateListing(t *testing.T, database *sql.DB, l *model.Listing) {
	t.Helper()
	if err := CreateListing(context.Background(), database, l); err != nil {
		t.Fatalf("CreateListing(%s): %v", l.ID, err)
	}
}

func TestCreateAndGetListing(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	seller, _ := CreateUser(ctx, database, "bakery", "hash", model.RoleSeller)

	l := newTestListing("l-1", model.CategoryBakeryItem, testNow.Add(-time.Hour), 48*time.Hour)
	l.SellerID = &seller.ID
	mustCreateListing(t, database, l)

	got, err := GetListing(ctx, database, "l-1")
	if err != nil {
		t.Fatalf("GetListing: %v", err)
	}
	if got == nil {
		t.Fatal("expected listing, got nil")
	}
	if !got.ExpiryTime.Equal(l.ExpiryTime) {
		t.Errorf("expected expiry %v, got %v", l.ExpiryTime, got.ExpiryTime)
	}
	if !got.PreparedAt.Equal(l.PreparedAt) {
		t.Errorf("expected preparedAt %v, got %v", l.PreparedAt, got.PreparedAt)
	}
	if got.SellerID == nil || *got.SellerID != seller.ID {
		t.Errorf("expected seller %d, got %v", seller.ID, got.SellerID)
	}
	if got.HasPhoto {
		t.Error("expected no photo")
	}

	missing, err := GetListing(ctx, database, "nope")
	if err != nil {
		t.Fatalf("GetListing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing listing")
	}
}

func TestListListingsByStatusOrder(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	older := newTestListing("older", model.CategoryPackagedFood, testNow.Add(-time.Hour), 72*time.Hour)
	older.CreatedAt = testNow.Add(-time.Minute)
	first := newTestListing("tie-first", model.CategoryPackagedFood, testNow.Add(-time.Hour), 72*time.Hour)
	second := newTestListing("tie-second", model.CategoryPackagedFood, testNow.Add(-time.Hour), 72*time.Hour)

	mustCreateListing(t, database, older)
	mustCreateListing(t, database, first)
	mustCreateListing(t, database, second)

	listings, err := ListListingsByStatus(ctx, database, model.StatusActive)
	if err != nil {
		t.Fatalf("ListListingsByStatus: %v", err)
	}

	want := []string{"tie-second", "tie-first", "older"}
	if len(listings) != len(want) {
		t.Fatalf("expected %d listings, got %d", len(want), len(listings))
	}
	for i, id := range want {
		if listings[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, listings[i].ID)
		}
	}

	expired, _ := ListListingsByStatus(ctx, database, model.StatusExpired)
	if len(expired) != 0 {
		t.Errorf("expected no expired listings, got %d", len(expired))
	}
}

func TestExpireStaleListings(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	stale := newTestListing("stale", model.CategoryPreparedMeal, testNow.Add(-5*time.Hour), 4*time.Hour)
	boundary := newTestListing("boundary", model.CategoryPreparedMeal, testNow.Add(-4*time.Hour), 4*time.Hour)
	fresh := newTestListing("fresh", model.CategoryFreshProduce, testNow.Add(-time.Hour), 24*time.Hour)
	mustCreateListing(t, database, stale)
	mustCreateListing(t, database, boundary)
	mustCreateListing(t, database, fresh)

	n, err := ExpireStaleListings(ctx, database, testNow)
	if err != nil {
		t.Fatalf("ExpireStaleListings: %v", err)
	}
	// The boundary listing expires exactly at now, which is not before now.
	if n != 1 {
		t.Errorf("expected 1 expired, got %d", n)
	}

	got, _ := GetListing(ctx, database, "stale")
	if got.Status != model.StatusExpired {
		t.Errorf("expected stale listing expired, got %s", got.Status)
	}

	n, err = ExpireStaleListings(ctx, database, testNow)
	if err != nil {
		t.Fatalf("second ExpireStaleListings: %v", err)
	}
	if n != 0 {
		t.Errorf("expected second sweep to change nothing, got %d", n)
	}

	history, _ := GetListingHistory(ctx, database, "stale")
	if len(history) != 2 {
		t.Fatalf("expected 2 events, got %d", len(history))
	}
	if history[1].Reason != model.ReasonSwept || history[1].To != model.StatusExpired {
		t.Errorf("unexpected sweep event: %+v", history[1])
	}
	if history[1].From == nil || *history[1].From != model.StatusActive {
		t.Errorf("expected sweep event from active, got %v", history[1].From)
	}
}

func TestExpireListing(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	l := newTestListing("one", model.CategoryDairyProduct, testNow.Add(-13*time.Hour), 12*time.Hour)
	mustCreateListing(t, database, l)

	changed, err := ExpireListing(ctx, database, "one", testNow)
	if err != nil {
		t.Fatalf("ExpireListing: %v", err)
	}
	if !changed {
		t.Error("expected listing to change")
	}

	changed, _ = ExpireListing(ctx, database, "one", testNow)
	if changed {
		t.Error("expected already expired listing to stay unchanged")
	}

	history, _ := GetListingHistory(ctx, database, "one")
	if len(history) != 2 || history[1].Reason != model.ReasonReconciled {
		t.Errorf("expected created+reconciled events, got %+v", history)
	}
}

func TestUpdateListingStatus(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustCreateListing(t, database, newTestListing("u", model.CategoryBakeryItem, testNow.Add(-time.Hour), 48*time.Hour))

	ok, err := UpdateListingStatus(ctx, database, "u", model.StatusClaimed, testNow)
	if err != nil || !ok {
		t.Fatalf("UpdateListingStatus: ok=%v err=%v", ok, err)
	}

	// Claimed back to active is allowed.
	ok, _ = UpdateListingStatus(ctx, database, "u", model.StatusActive, testNow)
	if !ok {
		t.Error("expected regression to active to succeed")
	}

	ok, err = UpdateListingStatus(ctx, database, "missing", model.StatusClaimed, testNow)
	if err != nil {
		t.Fatalf("UpdateListingStatus: %v", err)
	}
	if ok {
		t.Error("expected missing listing to report false")
	}

	history, _ := GetListingHistory(ctx, database, "u")
	if len(history) != 3 {
		t.Fatalf("expected 3 events, got %d", len(history))
	}
	if history[0].From != nil {
		t.Errorf("expected creation event without a from status, got %v", *history[0].From)
	}
}

func TestDeleteListing(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustCreateListing(t, database, newTestListing("d", model.CategoryFreshProduce, testNow.Add(-time.Hour), 24*time.Hour))

	removed, err := DeleteListing(ctx, database, "d")
	if err != nil {
		t.Fatalf("DeleteListing: %v", err)
	}
	if removed == nil || removed.ID != "d" || removed.Quantity != 3 {
		t.Fatalf("unexpected removed listing: %+v", removed)
	}

	got, _ := GetListing(ctx, database, "d")
	if got != nil {
		t.Error("expected listing to be gone")
	}

	history, _ := GetListingHistory(ctx, database, "d")
	if len(history) != 0 {
		t.Errorf("expected history to be gone, got %d events", len(history))
	}

	again, err := DeleteListing(ctx, database, "d")
	if err != nil {
		t.Fatalf("DeleteListing: %v", err)
	}
	if again != nil {
		t.Error("expected nil when deleting a missing listing")
	}
}

func TestListingPhoto(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustCreateListing(t, database, newTestListing("p", model.CategoryBakeryItem, testNow.Add(-time.Hour), 48*time.Hour))

	ok, err := SetListingPhoto(ctx, database, "p", []byte("fake image data"), "image/jpeg")
	if err != nil || !ok {
		t.Fatalf("SetListingPhoto: ok=%v err=%v", ok, err)
	}

	data, mime, err := GetListingPhoto(ctx, database, "p")
	if err != nil {
		t.Fatalf("GetListingPhoto: %v", err)
	}
	if string(data) != "fake image data" {
		t.Errorf("expected image data, got %q", string(data))
	}
	if mime != "image/jpeg" {
		t.Errorf("expected mime 'image/jpeg', got %q", mime)
	}

	got, _ := GetListing(ctx, database, "p")
	if !got.HasPhoto {
		t.Error("expected listing to report a photo")
	}

	ok, _ = SetListingPhoto(ctx, database, "missing", []byte("x"), "image/jpeg")
	if ok {
		t.Error("expected missing listing to report false")
	}
}

func TestListingsRepository(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	repo := &Listings{DB: database}

	l := newTestListing("r", model.CategoryPreparedMeal, testNow.Add(-5*time.Hour), 4*time.Hour)
	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("Create: %v", err)
	}

	n, err := repo.ExpireStale(ctx, testNow)
	if err != nil || n != 1 {
		t.Fatalf("ExpireStale: n=%d err=%v", n, err)
	}

	got, err := repo.FindByID(ctx, "r")
	if err != nil || got.Status != model.StatusExpired {
		t.Fatalf("FindByID: %+v err=%v", got, err)
	}

	if ok, err := repo.UpdateStatus(ctx, "r", model.StatusClaimed, testNow); err != nil || !ok {
		t.Fatalf("UpdateStatus: ok=%v err=%v", ok, err)
	}

	events, _ := repo.History(ctx, "r")
	if len(events) != 3 || !events[2].At.Equal(testNow) {
		t.Errorf("unexpected history: %+v", events)
	}
}

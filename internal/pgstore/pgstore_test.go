package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/surplus/internal/model"
)

var testNow = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

var listingRowColumns = []string{
	"id", "food_type", "quantity", "prepared_at", "expiry_time", "hygiene_status",
	"status", "created_at", "seller_id", "has_photo",
}

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return New(db), mock
}

func testListing() *model.Listing {
	preparedAt := testNow.Add(-2 * time.Hour)
	return &model.Listing{
		ID:            "l-1",
		FoodType:      model.CategoryFreshProduce,
		Quantity:      4,
		PreparedAt:    preparedAt,
		ExpiryTime:    preparedAt.Add(24 * time.Hour),
		HygieneStatus: model.HygieneExcellent,
		Status:        model.StatusActive,
		CreatedAt:     testNow,
	}
}

func TestCreate_Success(t *testing.T) {
	s, mock := newStoreWithMock(t)
	l := testListing()

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+listings\s*\(.*\)\s*VALUES\s*\(\$1,.*\$9\)$`).
		WithArgs(l.ID, l.FoodType, l.Quantity, l.PreparedAt, l.ExpiryTime, l.HygieneStatus, l.Status, l.CreatedAt, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+listing_events`).
		WithArgs(l.ID, model.StatusActive, model.ReasonCreated, l.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Create(context.Background(), l))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_RollsBackOnEventError(t *testing.T) {
	s, mock := newStoreWithMock(t)
	l := testListing()

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+listings`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+listing_events`).WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	err := s.Create(context.Background(), l)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID(t *testing.T) {
	s, mock := newStoreWithMock(t)
	l := testListing()

	rows := sqlmock.NewRows(listingRowColumns).
		AddRow(l.ID, string(l.FoodType), l.Quantity, l.PreparedAt, l.ExpiryTime, string(l.HygieneStatus),
			string(l.Status), l.CreatedAt, int64(7), true)
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+listings\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("l-1").
		WillReturnRows(rows)

	got, err := s.FindByID(context.Background(), "l-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.CategoryFreshProduce, got.FoodType)
	assert.True(t, got.ExpiryTime.Equal(l.ExpiryTime))
	require.NotNil(t, got.SellerID)
	assert.EqualValues(t, 7, *got.SellerID)
	assert.True(t, got.HasPhoto)
}

func TestFindByID_NotFound(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+listings\s+WHERE\s+id`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	got, err := s.FindByID(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindByStatus_Ordered(t *testing.T) {
	s, mock := newStoreWithMock(t)
	l := testListing()

	rows := sqlmock.NewRows(listingRowColumns).
		AddRow("b", string(l.FoodType), 1, l.PreparedAt, l.ExpiryTime, "good", "active", l.CreatedAt, nil, false).
		AddRow("a", string(l.FoodType), 1, l.PreparedAt, l.ExpiryTime, "good", "active", l.CreatedAt, nil, false)
	mock.ExpectQuery(`(?s)WHERE\s+status\s*=\s*\$1\s+ORDER\s+BY\s+created_at\s+DESC,\s*seq\s+DESC$`).
		WithArgs(model.StatusActive).
		WillReturnRows(rows)

	got, err := s.FindByStatus(context.Background(), model.StatusActive)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Nil(t, got[0].SellerID)
}

func TestExpireStale(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`(?s)^WITH\s+swept\s+AS\s+\(\s*UPDATE\s+listings.*INSERT\s+INTO\s+listing_events`).
		WithArgs(testNow, model.StatusExpired, model.StatusActive, model.ReasonSwept).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.ExpireStale(context.Background(), testNow)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestExpireOne(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`(?s)^WITH\s+expired\s+AS`).
		WithArgs("l-1", testNow, model.StatusExpired, model.StatusActive, model.ReasonReconciled).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := s.ExpireOne(context.Background(), "l-1", testNow)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestUpdateStatus(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)^SELECT\s+status\s+FROM\s+listings\s+WHERE\s+id\s*=\s*\$1\s+FOR\s+UPDATE$`).
		WithArgs("l-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("expired"))
	mock.ExpectExec(`(?s)^UPDATE\s+listings\s+SET\s+status`).
		WithArgs("l-1", model.StatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+listing_events`).
		WithArgs("l-1", model.StatusExpired, model.StatusActive, model.ReasonUpdated, testNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ok, err := s.UpdateStatus(context.Background(), "l-1", model.StatusActive, testNow)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_NotFound(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)^SELECT\s+status\s+FROM\s+listings`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectCommit()

	ok, err := s.UpdateStatus(context.Background(), "ghost", model.StatusClaimed, testNow)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	s, mock := newStoreWithMock(t)
	l := testListing()

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+listing_events\s+WHERE\s+listing_id\s*=\s*\$1$`).
		WithArgs("l-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`(?s)^DELETE\s+FROM\s+listings\s+WHERE\s+id\s*=\s*\$1\s+RETURNING`).
		WithArgs("l-1").
		WillReturnRows(sqlmock.NewRows(listingRowColumns).
			AddRow(l.ID, string(l.FoodType), l.Quantity, l.PreparedAt, l.ExpiryTime, string(l.HygieneStatus),
				"claimed", l.CreatedAt, nil, false))
	mock.ExpectCommit()

	removed, err := s.Delete(context.Background(), "l-1")
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, &model.DeletedSummary{
		ID:       "l-1",
		FoodType: model.CategoryFreshProduce,
		Quantity: 4,
		Status:   model.StatusClaimed,
	}, removed.Summarize())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistory(t *testing.T) {
	s, mock := newStoreWithMock(t)

	rows := sqlmock.NewRows([]string{"id", "listing_id", "from_status", "to_status", "reason", "at"}).
		AddRow(int64(1), "l-1", nil, "active", "created", testNow).
		AddRow(int64(2), "l-1", "active", "expired", "swept", testNow.Add(time.Hour))
	mock.ExpectQuery(`(?s)FROM\s+listing_events\s+WHERE\s+listing_id\s*=\s*\$1\s+ORDER\s+BY\s+id$`).
		WithArgs("l-1").
		WillReturnRows(rows)

	events, err := s.History(context.Background(), "l-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Nil(t, events[0].From)
	require.NotNil(t, events[1].From)
	assert.Equal(t, model.StatusActive, *events[1].From)
	assert.Equal(t, model.ReasonSwept, events[1].Reason)
}

func TestPhoto(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`(?s)^UPDATE\s+listings\s+SET\s+photo`).
		WithArgs("l-1", []byte("jpeg"), "image/jpeg").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`(?s)^SELECT\s+photo,\s*photo_mime\s+FROM\s+listings`).
		WithArgs("l-1").
		WillReturnRows(sqlmock.NewRows([]string{"photo", "photo_mime"}).AddRow([]byte("jpeg"), "image/jpeg"))

	ok, err := s.SetPhoto(context.Background(), "l-1", []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.True(t, ok)

	data, mime, err := s.GetPhoto(context.Background(), "l-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)
	assert.Equal(t, "image/jpeg", mime)
}

package safety

import (
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/surplus/internal/model"
)

// ErrInvalidArgument marks structurally impossible input. It is a contract
// error, not a domain rejection.
var ErrInvalidArgument = errors.New("invalid argument")

// Wire names of the submission fields, used in missing-field reports.
const (
	FieldFoodType      = "foodType"
	FieldQuantity      = "quantity"
	FieldPreparedAt    = "preparedAt"
	FieldHygieneStatus = "hygieneStatus"
)

// Evaluator applies the safety policy for a fixed window table.
type Evaluator struct {
	windows *Windows
}

// NewEvaluator creates an evaluator over windows.
func NewEvaluator(windows *Windows) *Evaluator {
	return &Evaluator{windows: windows}
}

// Windows returns the evaluator's window table.
func (e *Evaluator) Windows() *Windows {
	return e.windows
}

// WindowHours returns the safety window of category in hours.
func (e *Evaluator) WindowHours(category model.FoodCategory) float64 {
	return e.windows.Hours(category)
}

// ComputeExpiry returns preparedAt plus the window of category.
func (e *Evaluator) ComputeExpiry(preparedAt time.Time, category model.FoodCategory) (time.Time, error) {
	if preparedAt.IsZero() {
		return time.Time{}, fmt.Errorf("%w: preparedAt is required", ErrInvalidArgument)
	}
	if category == "" {
		return time.Time{}, fmt.Errorf("%w: category is required", ErrInvalidArgument)
	}
	return preparedAt.Add(e.windows.Window(category)), nil
}

// IsWithinSafetyWindow reports whether the food is still safe at now. At the
// expiry instant itself the food is already outside the window.
func (e *Evaluator) IsWithinSafetyWindow(preparedAt time.Time, category model.FoodCategory, now time.Time) bool {
	expiry, err := e.ComputeExpiry(preparedAt, category)
	if err != nil {
		return false
	}
	return expiry.After(now)
}

// EvaluateSubmission decides whether a submission may be listed. Checks run
// in a fixed order and the first failure wins: presence, future preparation,
// safety window, hygiene.
func (e *Evaluator) EvaluateSubmission(preparedAt time.Time, category model.FoodCategory, hygiene model.HygieneGrade, now time.Time) Decision {
	var missing []string
	if category == "" {
		missing = append(missing, FieldFoodType)
	}
	if preparedAt.IsZero() {
		missing = append(missing, FieldPreparedAt)
	}
	return e.evaluate(missing, preparedAt, category, hygiene, now)
}

// Evaluate runs EvaluateSubmission over a parsed submission. The presence
// stage also covers quantity.
func (e *Evaluator) Evaluate(in SubmissionInput, now time.Time) Decision {
	var missing []string
	if in.FoodType == "" {
		missing = append(missing, FieldFoodType)
	}
	if in.Quantity == 0 {
		missing = append(missing, FieldQuantity)
	}
	if in.PreparedAt.IsZero() {
		missing = append(missing, FieldPreparedAt)
	}
	return e.evaluate(missing, in.PreparedAt, in.FoodType, in.Hygiene, now)
}

func (e *Evaluator) evaluate(missing []string, preparedAt time.Time, category model.FoodCategory, hygiene model.HygieneGrade, now time.Time) Decision {
	d := Decision{
		Category:   category,
		PreparedAt: preparedAt,
		Hygiene:    hygiene,
		Now:        now,
	}

	if len(missing) > 0 {
		d.Outcome = MissingFields
		d.Missing = missing
		return d
	}

	if preparedAt.After(now) {
		d.Outcome = FuturePreparation
		return d
	}

	// Presence was checked above, so ComputeExpiry cannot fail here.
	expiry, _ := e.ComputeExpiry(preparedAt, category)
	d.ExpiryTime = expiry
	d.WindowHours = e.windows.Hours(category)

	if !expiry.After(now) {
		d.Outcome = ExpiredFood
		return d
	}

	if hygiene == "" {
		d.Outcome = MissingHygiene
		d.Missing = []string{FieldHygieneStatus}
		return d
	}
	if !hygiene.Valid() {
		d.Outcome = InvalidHygiene
		return d
	}

	d.Outcome = Accepted
	return d
}

// CheckListing re-validates a constructed listing right before it is
// persisted: the stored expiry must match the category window, lie after
// now, and the hygiene grade must be accepted. Any mismatch is reported as
// ExpiredFood.
func (e *Evaluator) CheckListing(l *model.Listing, now time.Time) Decision {
	d := Decision{
		Outcome:     Accepted,
		Category:    l.FoodType,
		PreparedAt:  l.PreparedAt,
		Hygiene:     l.HygieneStatus,
		Now:         now,
		ExpiryTime:  l.ExpiryTime,
		WindowHours: e.windows.Hours(l.FoodType),
	}

	expected, err := e.ComputeExpiry(l.PreparedAt, l.FoodType)
	if err != nil || !expected.Equal(l.ExpiryTime) || !l.ExpiryTime.After(now) || !l.HygieneStatus.Valid() {
		d.Outcome = ExpiredFood
	}
	return d
}

package safety

import (
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/surplus/internal/model"
)

// RawSubmission is an inbound listing request as decoded from JSON, before
// any field has been checked.
type RawSubmission struct {
	FoodType      string `json:"foodType"`
	Quantity      *int   `json:"quantity"`
	PreparedAt    string `json:"preparedAt"`
	HygieneStatus string `json:"hygieneStatus"`
}

// SubmissionInput is a well-typed submission. Zero values mean the field was
// absent; the evaluator reports those as missing.
type SubmissionInput struct {
	FoodType   model.FoodCategory
	Quantity   int
	PreparedAt time.Time
	Hygiene    model.HygieneGrade
}

// preparedAtLayouts are the accepted ISO-8601 forms. Timestamps without a
// zone are read as UTC.
var preparedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

// ParseSubmission turns raw into a typed input. Absent fields are left zero;
// present but malformed fields fail with ErrInvalidArgument. The hygiene
// grade is passed through unchecked so the evaluator decides on it in order.
func ParseSubmission(raw RawSubmission) (SubmissionInput, error) {
	var in SubmissionInput

	if foodType := strings.TrimSpace(raw.FoodType); foodType != "" {
		category := model.FoodCategory(foodType)
		if !category.Valid() {
			return SubmissionInput{}, fmt.Errorf("%w: unknown foodType %q", ErrInvalidArgument, foodType)
		}
		in.FoodType = category
	}

	if raw.Quantity != nil {
		if *raw.Quantity < 1 {
			return SubmissionInput{}, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidArgument)
		}
		in.Quantity = *raw.Quantity
	}

	if preparedAt := strings.TrimSpace(raw.PreparedAt); preparedAt != "" {
		t, err := parseTimestamp(preparedAt)
		if err != nil {
			return SubmissionInput{}, fmt.Errorf("%w: preparedAt %q is not an ISO-8601 timestamp", ErrInvalidArgument, preparedAt)
		}
		in.PreparedAt = t
	}

	in.Hygiene = model.HygieneGrade(strings.TrimSpace(raw.HygieneStatus))
	return in, nil
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range preparedAtLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

package safety

import (
	"net/http"
	"time"

	"github.com/erazemk/surplus/internal/model"
)

// Outcome tags the result of evaluating a submission.
type Outcome int

// Outcomes, in the order the checks run.
const (
	Accepted Outcome = iota
	MissingFields
	FuturePreparation
	ExpiredFood
	MissingHygiene
	InvalidHygiene
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case MissingFields:
		return "missing_fields"
	case FuturePreparation:
		return "future_preparation"
	case ExpiredFood:
		return "expired_food"
	case MissingHygiene:
		return "missing_hygiene"
	case InvalidHygiene:
		return "invalid_hygiene"
	default:
		return "unknown"
	}
}

// Stable rejection codes.
const (
	CodeExpiredFood       = "SAFETY_001"
	CodeInvalidHygiene    = "SAFETY_002"
	CodeFuturePreparation = "SAFETY_003"
	CodeMissingFields     = "SAFETY_004"
)

// Decision is the result of a safety evaluation. Only the fields relevant to
// Outcome are populated.
type Decision struct {
	Outcome Outcome

	// Accepted and ExpiredFood.
	ExpiryTime  time.Time
	WindowHours float64

	// MissingFields and MissingHygiene.
	Missing []string

	Category   model.FoodCategory
	PreparedAt time.Time
	Hygiene    model.HygieneGrade
	Now        time.Time
}

// Accepted reports whether the submission may be listed.
func (d Decision) Accepted() bool {
	return d.Outcome == Accepted
}

// Code returns the stable rejection code, or "" for an accepted decision.
func (d Decision) Code() string {
	switch d.Outcome {
	case ExpiredFood:
		return CodeExpiredFood
	case InvalidHygiene:
		return CodeInvalidHygiene
	case FuturePreparation:
		return CodeFuturePreparation
	case MissingFields, MissingHygiene:
		return CodeMissingFields
	default:
		return ""
	}
}

// HTTPStatus maps the decision to a response status.
func (d Decision) HTTPStatus() int {
	switch d.Outcome {
	case Accepted:
		return http.StatusCreated
	case ExpiredFood, InvalidHygiene:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

// Message is a human-readable explanation of the decision.
func (d Decision) Message() string {
	switch d.Outcome {
	case Accepted:
		return "listing accepted"
	case MissingFields:
		return "missing required fields"
	case FuturePreparation:
		return "preparation time cannot be in the future"
	case ExpiredFood:
		return "food is past its safety window and cannot be listed"
	case MissingHygiene:
		return "hygiene status is required"
	case InvalidHygiene:
		return "hygiene status is not an accepted grade"
	default:
		return "unknown decision"
	}
}

// Details returns structured context for a rejection.
func (d Decision) Details() map[string]any {
	switch d.Outcome {
	case MissingFields, MissingHygiene:
		return map[string]any{"missingFields": d.Missing}
	case FuturePreparation:
		return map[string]any{
			"preparedAt": d.PreparedAt,
			"serverTime": d.Now,
		}
	case ExpiredFood:
		return map[string]any{
			"foodType":    d.Category,
			"preparedAt":  d.PreparedAt,
			"expiryTime":  d.ExpiryTime,
			"windowHours": d.WindowHours,
			"checkedAt":   d.Now,
		}
	case InvalidHygiene:
		return map[string]any{
			"hygieneStatus": d.Hygiene,
			"validGrades":   model.HygieneGrades,
		}
	default:
		return nil
	}
}

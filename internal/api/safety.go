package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/surplus/internal/listing"
	"github.com/erazemk/surplus/internal/model"
	"github.com/erazemk/surplus/internal/safety"
)

// SafetyHandler exposes the safety policy and the manual sweep.
type SafetyHandler struct {
	Listings *listing.Manager
}

type windowsResponse struct {
	Windows        map[model.FoodCategory]float64 `json:"windows"`
	DefaultHours   float64                        `json:"defaultHours"`
	HygieneGrades  []model.HygieneGrade           `json:"hygieneGrades"`
	FoodCategories []model.FoodCategory           `json:"foodCategories"`
}

type sweepResponse struct {
	ExpiredMarked int64     `json:"expiredMarked"`
	Timestamp     time.Time `json:"timestamp"`
}

// Windows handles GET /api/safety/windows.
func (h *SafetyHandler) Windows(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, http.StatusOK, windowsResponse{
		Windows:        h.Listings.Windows().Table(),
		DefaultHours:   safety.DefaultWindow.Hours(),
		HygieneGrades:  model.HygieneGrades,
		FoodCategories: model.FoodCategories,
	})
}

// Sweep handles POST /api/admin/sweep.
func (h *SafetyHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	n, at, err := h.Listings.Sweep(r.Context())
	if err != nil {
		writeListingError(w, err, "sweep listings")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("listings swept", "user", claims.Username, "expired", n)
	jsonOK(w, http.StatusOK, sweepResponse{ExpiredMarked: n, Timestamp: at})
}

// Package safety decides whether a food submission may be listed and when
// it stops being safe to hand out. Nothing in here performs I/O.
package safety

import (
	"fmt"
	"time"

	"github.com/erazemk/surplus/internal/model"
)

// DefaultWindow applies to any category without a configured window.
const DefaultWindow = 4 * time.Hour

// Windows maps food categories to their safety window. It is built once at
// startup and never mutated, so it can be shared between goroutines.
type Windows struct {
	byCategory map[model.FoodCategory]time.Duration
}

// DefaultWindows returns the standard window table.
func DefaultWindows() map[model.FoodCategory]time.Duration {
	return map[model.FoodCategory]time.Duration{
		model.CategoryPreparedMeal: 4 * time.Hour,
		model.CategoryFreshProduce: 24 * time.Hour,
		model.CategoryPackagedFood: 72 * time.Hour,
		model.CategoryBakeryItem:   48 * time.Hour,
		model.CategoryDairyProduct: 12 * time.Hour,
	}
}

// NewWindows copies table into an immutable Windows. Every window must be positive.
func NewWindows(table map[model.FoodCategory]time.Duration) (*Windows, error) {
	byCategory := make(map[model.FoodCategory]time.Duration, len(table))
	for category, window := range table {
		if window <= 0 {
			return nil, fmt.Errorf("safety window for %q must be positive, got %s", category, window)
		}
		byCategory[category] = window
	}
	return &Windows{byCategory: byCategory}, nil
}

// Window returns the window for category, or DefaultWindow if none is configured.
func (w *Windows) Window(category model.FoodCategory) time.Duration {
	if window, ok := w.byCategory[category]; ok {
		return window
	}
	return DefaultWindow
}

// Hours returns the window for category in hours.
func (w *Windows) Hours(category model.FoodCategory) float64 {
	return w.Window(category).Hours()
}

// Table returns the effective window in hours for every known category.
func (w *Windows) Table() map[model.FoodCategory]float64 {
	table := make(map[model.FoodCategory]float64, len(model.FoodCategories))
	for _, category := range model.FoodCategories {
		table[category] = w.Hours(category)
	}
	return table
}

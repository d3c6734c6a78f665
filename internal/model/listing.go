package model

import "time"

// FoodCategory tags a listing with the category that decides its safety window.
type FoodCategory string

// Food categories.
const (
	CategoryPreparedMeal FoodCategory = "prepared_meal"
	CategoryFreshProduce FoodCategory = "fresh_produce"
	CategoryPackagedFood FoodCategory = "packaged_food"
	CategoryBakeryItem   FoodCategory = "bakery_item"
	CategoryDairyProduct FoodCategory = "dairy_product"
)

// FoodCategories lists every known category.
var FoodCategories = []FoodCategory{
	CategoryPreparedMeal,
	CategoryFreshProduce,
	CategoryPackagedFood,
	CategoryBakeryItem,
	CategoryDairyProduct,
}

// Valid reports whether c is a known category.
func (c FoodCategory) Valid() bool {
	for _, known := range FoodCategories {
		if c == known {
			return true
		}
	}
	return false
}

// HygieneGrade is an unordered preparation cleanliness classification.
type HygieneGrade string

// Hygiene grades.
const (
	HygieneExcellent  HygieneGrade = "excellent"
	HygieneGood       HygieneGrade = "good"
	HygieneAcceptable HygieneGrade = "acceptable"
)

// HygieneGrades lists every accepted grade.
var HygieneGrades = []HygieneGrade{HygieneExcellent, HygieneGood, HygieneAcceptable}

// Valid reports whether g is one of the accepted grades.
func (g HygieneGrade) Valid() bool {
	for _, known := range HygieneGrades {
		if g == known {
			return true
		}
	}
	return false
}

// ListingStatus is the lifecycle state of a listing.
type ListingStatus string

// Listing statuses.
const (
	StatusActive  ListingStatus = "active"
	StatusExpired ListingStatus = "expired"
	StatusClaimed ListingStatus = "claimed"
)

// ListingStatuses lists every status a listing may hold.
var ListingStatuses = []ListingStatus{StatusActive, StatusExpired, StatusClaimed}

// Valid reports whether s is a known status.
func (s ListingStatus) Valid() bool {
	return s == StatusActive || s == StatusExpired || s == StatusClaimed
}

// Listing is a surplus-food offer. FoodType, PreparedAt and HygieneStatus are
// fixed at creation; ExpiryTime is derived from them and never set by clients.
type Listing struct {
	ID            string        `json:"id"`
	FoodType      FoodCategory  `json:"foodType"`
	Quantity      int           `json:"quantity"`
	PreparedAt    time.Time     `json:"preparedAt"`
	ExpiryTime    time.Time     `json:"expiryTime"`
	HygieneStatus HygieneGrade  `json:"hygieneStatus"`
	Status        ListingStatus `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	SellerID      *int64        `json:"sellerId,omitempty"`
	HasPhoto      bool          `json:"hasPhoto"`
}

// DeletedSummary echoes what a delete removed.
type DeletedSummary struct {
	ID       string        `json:"id"`
	FoodType FoodCategory  `json:"foodType"`
	Quantity int           `json:"quantity"`
	Status   ListingStatus `json:"status"`
}

// Summarize returns the deletion summary of l.
func (l *Listing) Summarize() *DeletedSummary {
	return &DeletedSummary{
		ID:       l.ID,
		FoodType: l.FoodType,
		Quantity: l.Quantity,
		Status:   l.Status,
	}
}

// Reasons recorded on listing events.
const (
	ReasonCreated    = "created"
	ReasonReconciled = "reconciled"
	ReasonSwept      = "swept"
	ReasonUpdated    = "updated"
)

// ListingEvent records one status transition of a listing.
type ListingEvent struct {
	ID        int64          `json:"id"`
	ListingID string         `json:"listingId"`
	From      *ListingStatus `json:"from,omitempty"`
	To        ListingStatus  `json:"to"`
	Reason    string         `json:"reason"`
	At        time.Time      `json:"at"`
}

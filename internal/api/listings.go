package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/surplus/internal/imaging"
	"github.com/erazemk/surplus/internal/listing"
	"github.com/erazemk/surplus/internal/model"
	"github.com/erazemk/surplus/internal/safety"
)

// ListingsHandler handles listing endpoints.
type ListingsHandler struct {
	Listings *listing.Manager
}

type updateListingRequest struct {
	Status string `json:"status"`
}

type photoResponse struct {
	ID     string `json:"id"`
	MIME   string `json:"mime"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int    `json:"size"`
}

// writeListingError maps lifecycle errors to responses.
func writeListingError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, context.Canceled):
		// The client went away; there is nobody to answer.
		slog.Debug("request cancelled", "action", action)
	case errors.Is(err, listing.ErrNotFound):
		jsonError(w, http.StatusNotFound, "listing not found")
	case errors.Is(err, listing.ErrInvalidStatus):
		jsonErrorCode(w, http.StatusBadRequest, codeInvalidStatus, "invalid status", map[string]any{
			"validStatuses": model.ListingStatuses,
		})
	case errors.Is(err, listing.ErrStoreUnavailable):
		jsonError(w, http.StatusServiceUnavailable, "listing storage is unavailable, try again later")
	default:
		slog.Error("failed to "+action, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

// Create handles POST /api/listings.
func (h *ListingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var raw safety.RawSubmission
	if err := decodeJSON(r, &raw); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in, err := safety.ParseSubmission(raw)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	var sellerID *int64
	if claims := GetClaims(r.Context()); claims != nil {
		id := claims.UserID
		sellerID = &id
	}

	res, err := h.Listings.Create(r.Context(), in, sellerID)
	if err != nil {
		writeListingError(w, err, "create listing")
		return
	}

	if !res.Decision.Accepted() {
		slog.Info("listing rejected", "code", res.Decision.Code(), "food_type", in.FoodType)
		jsonRejection(w, res.Decision)
		return
	}

	resp := envelope{Success: true, Data: res.Listing}
	if res.Degraded {
		resp.Degraded = true
		resp.Note = listing.DegradedNote
	}
	jsonResponse(w, http.StatusCreated, resp)
}

// List handles GET /api/listings.
func (h *ListingsHandler) List(w http.ResponseWriter, r *http.Request) {
	res, err := h.Listings.ListActive(r.Context())
	if err != nil {
		writeListingError(w, err, "list listings")
		return
	}

	resp := envelope{
		Success: true,
		Data:    res.Listings,
		Message: fmt.Sprintf("Found %d active listings", len(res.Listings)),
		Meta: &listMeta{
			TotalActive:   len(res.Listings),
			ExpiredMarked: res.ExpiredMarked,
			Timestamp:     res.CheckedAt,
		},
	}
	if res.Degraded {
		resp.Degraded = true
		resp.Note = listing.DegradedNote
	}
	jsonResponse(w, http.StatusOK, resp)
}

// Get handles GET /api/listings/{id}.
func (h *ListingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	l, err := h.Listings.Reconcile(r.Context(), r.PathValue("id"))
	if err != nil {
		writeListingError(w, err, "get listing")
		return
	}
	jsonOK(w, http.StatusOK, l)
}

// Update handles PUT /api/listings/{id}.
func (h *ListingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateListingRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	l, err := h.Listings.SetStatus(r.Context(), r.PathValue("id"), model.ListingStatus(req.Status))
	if err != nil {
		writeListingError(w, err, "update listing")
		return
	}

	slog.Info("listing status updated", "id", l.ID, "status", l.Status)
	jsonOK(w, http.StatusOK, l)
}

// Delete handles DELETE /api/listings/{id}.
func (h *ListingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Listings.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeListingError(w, err, "delete listing")
		return
	}
	jsonResponse(w, http.StatusOK, envelope{Success: true, Data: summary, Message: "Listing deleted"})
}

// History handles GET /api/listings/{id}/history.
func (h *ListingsHandler) History(w http.ResponseWriter, r *http.Request) {
	events, err := h.Listings.History(r.Context(), r.PathValue("id"))
	if err != nil {
		writeListingError(w, err, "get listing history")
		return
	}
	jsonOK(w, http.StatusOK, events)
}

// UploadPhoto handles PUT /api/listings/{id}/photo. Sellers may only attach
// photos to their own listings; admins to any.
func (h *ListingsHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	claims := GetClaims(r.Context())

	l, err := h.Listings.Reconcile(r.Context(), id)
	if err != nil {
		writeListingError(w, err, "upload photo")
		return
	}
	if claims.Role != model.RoleAdmin && (l.SellerID == nil || *l.SellerID != claims.UserID) {
		jsonError(w, http.StatusForbidden, "only the listing's seller can change its photo")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<10)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, http.StatusRequestEntityTooLarge, "photo too large (max 5 MB)")
			return
		}
		jsonError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "photo file required")
		return
	}
	defer file.Close()

	photo, err := imaging.ProcessPhoto(file)
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		jsonError(w, http.StatusRequestEntityTooLarge, "photo too large (max 5 MB)")
		return
	case errors.Is(err, imaging.ErrUnsupported):
		jsonError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	case err != nil:
		slog.Error("failed to process photo", "id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to process photo")
		return
	}

	if err := h.Listings.SetPhoto(r.Context(), id, photo.Data, photo.MIME); err != nil {
		writeListingError(w, err, "save photo")
		return
	}

	slog.Info("listing photo uploaded", "user", claims.Username, "id", id, "size", len(photo.Data))
	jsonOK(w, http.StatusOK, photoResponse{
		ID:     id,
		MIME:   photo.MIME,
		Width:  photo.Width,
		Height: photo.Height,
		Size:   len(photo.Data),
	})
}

// GetPhoto handles GET /api/listings/{id}/photo.
func (h *ListingsHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	data, mime, err := h.Listings.Photo(r.Context(), r.PathValue("id"))
	if errors.Is(err, listing.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "photo not found")
		return
	}
	if err != nil {
		writeListingError(w, err, "get photo")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Write(data)
}

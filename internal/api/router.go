package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/surplus/internal/auth"
	"github.com/erazemk/surplus/internal/listing"
	"github.com/erazemk/surplus/internal/model"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, listings *listing.Manager, tokens *auth.Tokens) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, Tokens: tokens}
	usersHandler := &UsersHandler{DB: db}
	listingsHandler := &ListingsHandler{Listings: listings}
	safetyHandler := &SafetyHandler{Listings: listings}

	authMW := AuthMiddleware(tokens, db)
	optionalAuth := OptionalAuth(tokens, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireSeller := RequireRole(model.RoleSeller)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Listings: public, a token on create attaches the seller.
	mux.Handle("POST /api/listings", optionalAuth(http.HandlerFunc(listingsHandler.Create)))
	mux.HandleFunc("GET /api/listings", listingsHandler.List)
	mux.HandleFunc("GET /api/listings/{id}", listingsHandler.Get)
	mux.HandleFunc("PUT /api/listings/{id}", listingsHandler.Update)
	mux.HandleFunc("DELETE /api/listings/{id}", listingsHandler.Delete)
	mux.HandleFunc("GET /api/listings/{id}/history", listingsHandler.History)
	mux.Handle("PUT /api/listings/{id}/photo", authMW(requireSeller(http.HandlerFunc(listingsHandler.UploadPhoto))))
	mux.HandleFunc("GET /api/listings/{id}/photo", listingsHandler.GetPhoto)

	// Safety policy and maintenance.
	mux.HandleFunc("GET /api/safety/windows", safetyHandler.Windows)
	mux.Handle("POST /api/admin/sweep", authMW(requireAdmin(http.HandlerFunc(safetyHandler.Sweep))))

	return mux
}

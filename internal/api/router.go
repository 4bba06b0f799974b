package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the chi router and registers the listing-service routes.
func NewRouter(h *Handler, webhook http.Handler, auth *Authenticator) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Listing service is healthy"))
	})

	// The provider authenticates with a body signature, not a bearer token.
	r.Method(http.MethodPost, "/webhooks/billing", webhook)

	r.Group(func(r chi.Router) {
		r.Use(auth.Optional)

		r.Get("/listings", h.handleSearch)
		r.Get("/listings/{id}", h.handleGetListing)
		r.Get("/listings/{id}/availability", h.handleAvailability)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Required)

		r.Post("/listings", h.handleCreateListing)
		r.Put("/listings/{id}", h.handleEditListing)
		r.Delete("/listings/{id}", h.handleDeleteListing)
		r.Get("/me/listings", h.handleOwnListings)

		r.Get("/listings/{id}/bookings", h.handleListBookings)
		r.Post("/listings/{id}/bookings", h.handleAddBooking)
		r.Put("/bookings/{bookingID}", h.handleUpdateBooking)
		r.Delete("/bookings/{bookingID}", h.handleDeleteBooking)

		r.Route("/moderation/listings", func(r chi.Router) {
			r.Get("/", h.handleModerationQueue)
			r.Post("/{id}/approve", h.handleApprove)
			r.Post("/{id}/reject", h.handleReject)
			r.Post("/{id}/deactivate", h.handleDeactivate)
		})
	})

	return r
}

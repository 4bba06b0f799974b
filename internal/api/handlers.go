/**
 * @description
 * HTTP handlers for the listing-service. Handlers decode requests, resolve the actor from
 * the auth middleware, call the app layer and map domain errors to status codes.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/IVSOLOV/car-connect-sub000/internal/app"
	"github.com/IVSOLOV/car-connect-sub000/internal/domain"
	"github.com/go-chi/chi/v5"
)

// ListingService is the app-layer surface used by the handlers.
type ListingService interface {
	GetListing(ctx context.Context, actor domain.Actor, id string) (*domain.ListingWithRecord, error)
	ListOwnListings(ctx context.Context, ownerID string) ([]domain.Listing, error)
	ModerationQueue(ctx context.Context, actor domain.Actor, status domain.ApprovalStatus, limit, offset int) ([]domain.Listing, error)
	EditListing(ctx context.Context, actor domain.Actor, id string, sub domain.ListingSubmission) (*domain.Listing, error)
	DeleteListing(ctx context.Context, actor domain.Actor, id string) error
	Approve(ctx context.Context, actor domain.Actor, id string) (*domain.Listing, error)
	Reject(ctx context.Context, actor domain.Actor, id, reason string) (*domain.Listing, error)
	Deactivate(ctx context.Context, actor domain.Actor, id, reason string) (*domain.Listing, error)
	Search(ctx context.Context, q app.SearchQuery) ([]domain.Listing, error)
	CheckAvailability(ctx context.Context, actor domain.Actor, listingID string, r domain.DateRange) (bool, error)
	ListBookings(ctx context.Context, actor domain.Actor, listingID string) ([]domain.BookingInterval, error)
	AddBooking(ctx context.Context, actor domain.Actor, listingID string, req domain.BookingRequest) (*domain.BookingResult, error)
	UpdateBooking(ctx context.Context, actor domain.Actor, bookingID string, req domain.BookingRequest) (*domain.BookingResult, error)
	DeleteBooking(ctx context.Context, actor domain.Actor, bookingID string) error
}

// CreationGate is the listing creation entry point.
type CreationGate interface {
	Create(ctx context.Context, hostID string, sub domain.ListingSubmission) (*domain.CreateResult, error)
	ConfirmPayment(ctx context.Context, token string) (*domain.Listing, error)
	DiscardStaged(ctx context.Context, token string) error
}

// Handler holds the dependencies of the HTTP handlers.
type Handler struct {
	listings ListingService
	gate     CreationGate
	logger   *slog.Logger
}

func NewHandler(listings ListingService, gate CreationGate, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{listings: listings, gate: gate, logger: logger}
}

type moderationRequest struct {
	Reason string `json:"reason"`
}

type availabilityResponse struct {
	ListingID string `json:"listing_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Available bool   `json:"available"`
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := app.SearchQuery{
		City:        strings.TrimSpace(q.Get("city")),
		State:       strings.TrimSpace(q.Get("state")),
		VehicleType: domain.VehicleType(strings.ToLower(strings.TrimSpace(q.Get("vehicle_type")))),
		FuelType:    domain.FuelType(strings.ToLower(strings.TrimSpace(q.Get("fuel_type")))),
		Limit:       queryInt(q.Get("limit")),
		Offset:      queryInt(q.Get("offset")),
	}
	start, end := strings.TrimSpace(q.Get("start")), strings.TrimSpace(q.Get("end"))
	if start != "" || end != "" {
		dr, err := domain.ParseDateRange(start, end)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		query.Range = &dr
	}

	listings, err := h.listings.Search(r.Context(), query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, listings)
}

func (h *Handler) handleGetListing(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	listing, err := h.listings.GetListing(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, listing)
}

func (h *Handler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	start, end := r.URL.Query().Get("start"), r.URL.Query().Get("end")
	dr, err := domain.ParseDateRange(start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	actor, _ := ActorFromContext(r.Context())
	available, err := h.listings.CheckAvailability(r.Context(), actor, id, dr)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, availabilityResponse{
		ListingID: id,
		StartDate: dr.Start.Format(domain.DateLayout),
		EndDate:   dr.End.Format(domain.DateLayout),
		Available: available,
	})
}

func (h *Handler) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var sub domain.ListingSubmission
	if !decodeJSON(w, r, &sub) {
		return
	}

	result, err := h.gate.Create(r.Context(), actor.UserID, sub)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if result.Checkout != nil {
		respondWithJSON(w, http.StatusAccepted, result)
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleEditListing(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var sub domain.ListingSubmission
	if !decodeJSON(w, r, &sub) {
		return
	}

	listing, err := h.listings.EditListing(r.Context(), actor, chi.URLParam(r, "id"), sub)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, listing)
}

func (h *Handler) handleDeleteListing(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.listings.DeleteListing(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleOwnListings(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	listings, err := h.listings.ListOwnListings(r.Context(), actor.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, listings)
}

func (h *Handler) handleModerationQueue(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	status := domain.ApprovalStatus(strings.ToLower(strings.TrimSpace(q.Get("status"))))
	listings, err := h.listings.ModerationQueue(r.Context(), actor, status, queryInt(q.Get("limit")), queryInt(q.Get("offset")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, listings)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	listing, err := h.listings.Approve(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, listing)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.handleReasonedAction(w, r, h.listings.Reject)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.handleReasonedAction(w, r, h.listings.Deactivate)
}

func (h *Handler) handleReasonedAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, actor domain.Actor, id, reason string) (*domain.Listing, error),
) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req moderationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	listing, err := action(r.Context(), actor, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, listing)
}

func (h *Handler) handleListBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	bookings, err := h.listings.ListBookings(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, bookings)
}

func (h *Handler) handleAddBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req domain.BookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.listings.AddBooking(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req domain.BookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.listings.UpdateBooking(r.Context(), actor, chi.URLParam(r, "bookingID"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.listings.DeleteBooking(r.Context(), actor, chi.URLParam(r, "bookingID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requireActor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := ActorFromContext(r.Context())
	if !ok || actor.UserID == "" {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return domain.Actor{}, false
	}
	return actor, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func queryInt(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}

// writeError maps domain errors to HTTP responses. Unknown errors are logged and hidden.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case domain.IsValidation(err):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrMissingModerationText):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		respondWithError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrListingNotFound),
		errors.Is(err, domain.ErrBookingNotFound),
		errors.Is(err, domain.ErrStagingTokenNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicateVehicle), errors.Is(err, domain.ErrIllegalTransition):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		respondWithError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrBillingUnavailable):
		h.logger.Error("billing provider unavailable", "path", r.URL.Path, "error", err)
		respondWithError(w, http.StatusServiceUnavailable, "billing is temporarily unavailable")
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// respondWithJSON is a helper function to write JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-booking/internal/booking"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

type Handler struct {
	Service *booking.Service
	Log     *logger.Logger
}

func NewHandler(service *booking.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Log: log}
}

// Routes mounts the public booking surface.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/beli", h.Purchase)
	r.Post("/api/midtrans-notification", h.GatewayNotification)
	r.Post("/api/check-status", h.CheckStatus)
	r.Get("/api/rute", h.SearchRoutes)
	r.Get("/api/seats", h.BookedSeats)
	r.Post("/api/check-promo", h.CheckPromo)
	r.Get("/api/orders/{email}", h.OrderHistory)
	r.Post("/api/verify-ticket", h.VerifyTicket)
	r.Get("/api/tickets/metadata/{orderId}", h.TicketMetadata)
	r.Get("/api/admin/stats", h.AdminStats)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps domain sentinels onto HTTP statuses. Anything
// unrecognized is a 500 with a generic message so store errors never leak.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrSeatConflict):
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Kursi sudah dipesan", err.Error()))
	case errors.Is(err, booking.ErrInvalidAmount):
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Total pembayaran tidak valid", err.Error()))
	case errors.Is(err, booking.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Data tidak ditemukan", err.Error()))
	case errors.Is(err, booking.ErrGateway):
		h.writeJSON(w, http.StatusBadGateway, utils.ErrorResponse("Payment gateway tidak tersedia", err.Error()))
	default:
		h.Log.Error("API", "unhandled error: "+err.Error())
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Terjadi kesalahan internal", "internal error"))
	}
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req models.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Body tidak valid", err.Error()))
		return
	}
	if req.Email == "" || req.SeatNumber == "" || req.RouteID == 0 {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Body tidak valid", "emailUser, idRute and seatNumber are required"))
		return
	}

	resp, err := h.Service.Purchase(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

// GatewayNotification is the push reconciliation path. The gateway only
// cares that we answered 200; every outcome, including a malformed or
// spoofed body, is acknowledged the same way.
func (h *Handler) GatewayNotification(w http.ResponseWriter, r *http.Request) {
	var payload models.NotificationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.Log.Warn("GATEWAY", "unreadable notification body: "+err.Error())
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	h.Service.HandleNotification(r.Context(), payload)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	var req models.CheckStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderRef == "" {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Body tidak valid", "orderId is required"))
		return
	}

	resp, err := h.Service.CheckStatus(r.Context(), req.OrderRef)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) SearchRoutes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	routes, err := h.Service.RoutesWithAvailability(r.Context(), q.Get("asal"), q.Get("tujuan"), q.Get("tanggal"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse(routes))
}

func (h *Handler) BookedSeats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	destination := q.Get("tujuan")
	if destination == "" {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Parameter kurang", "tujuan is required"))
		return
	}
	date := q.Get("tanggal")
	if date == "" {
		date = "DEFAULT"
	}

	seats, err := h.Service.BookedSeats(r.Context(), destination, date)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string][]string{"bookedSeats": seats})
}

func (h *Handler) CheckPromo(w http.ResponseWriter, r *http.Request) {
	var req models.PromoCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Body tidak valid", "code is required"))
		return
	}

	resp, err := h.Service.CheckPromo(r.Context(), req.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	orders, err := h.Service.OrderHistory(r.Context(), email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse(orders))
}

func (h *Handler) VerifyTicket(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Hash == "" {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Body tidak valid", "hash is required"))
		return
	}

	resp, err := h.Service.VerifyTicket(r.Context(), req.Hash)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) TicketMetadata(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "orderId")
	metadata, err := h.Service.MetadataFor(r.Context(), ref)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, metadata)
}

func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Stats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse(stats))
}

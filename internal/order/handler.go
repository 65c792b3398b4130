package order

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Handler exposes the thin HTTP surface used to trigger the order
// workflow. The production platform fronts this with its GraphQL
// gateway; the shape here is just enough to place an order.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Routes() http.Handler {
	router := http.NewServeMux()
	router.HandleFunc("GET /ping", PingHandler)
	router.HandleFunc("POST /orders", h.CreateOrder)
	return router
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var input OrderInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.service.CreateOrder(r.Context(), input)
	switch {
	case errors.Is(err, ErrEmptyOrder):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ErrProductNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		h.logger.Error("Failed to create order", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "order creation failed")
		return
	}

	w.Header().Add("content-type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"orderId":       o.OrderID,
		"totalAmount":   o.TotalAmount,
		"paymentStatus": o.PaymentStatus,
	})
}

// Returns an arbitrary message to the caller.
// Used for checking service health
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("content-type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{"message": "pong"})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Add("content-type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"errorCode": status, "errorMessage": msg})
}

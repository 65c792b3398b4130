package payment

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Handler exposes the code validation mutation over HTTP. In the
// production platform this sits behind the GraphQL gateway.
type Handler struct {
	qr     *QRService
	logger *slog.Logger
}

func NewHandler(qr *QRService, logger *slog.Logger) *Handler {
	return &Handler{qr: qr, logger: logger}
}

func (h *Handler) Routes() http.Handler {
	router := http.NewServeMux()
	router.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("content-type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"message": "pong"})
	})
	router.HandleFunc("POST /payments/validate", h.ValidatePayment)
	return router
}

type validateRequest struct {
	OrderID string `json:"orderId"`
	Code    string `json:"code"`
}

func (h *Handler) ValidatePayment(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "orderId and code are required")
		return
	}

	result, err := h.qr.ValidatePayment(r.Context(), req.OrderID, req.Code)
	switch {
	case errors.Is(err, ErrPaymentNotFound):
		writeError(w, http.StatusNotFound, "no payment for order")
		return
	case err != nil:
		h.logger.Error("Failed to validate payment", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "payment validation failed")
		return
	}

	w.Header().Add("content-type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status":  result.Status,
		"message": result.Message,
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Add("content-type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"errorCode": status, "errorMessage": msg})
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/sajilotantra/sajilotantra-be/internal/audit"
	"github.com/sajilotantra/sajilotantra-be/internal/services"
)

// PaymentHandler handles Khalti checkout requests.
type PaymentHandler struct {
	service services.PaymentServiceProvider
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(service services.PaymentServiceProvider) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// Initiate starts a checkout and returns the gateway's payment URL.
func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Amount          float64 `json:"amount"`
		ProductIdentity string  `json:"productIdentity"`
		ProductName     string  `json:"productName"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		badBody(w)
		return
	}

	checkout, err := h.service.Initiate(r.Context(), claims(r).UserID, services.CheckoutInput{
		Amount:          payload.Amount,
		ProductIdentity: payload.ProductIdentity,
		ProductName:     payload.ProductName,
	})
	if errors.Is(err, services.ErrGateway) {
		log.Error().Err(err).Str("product", payload.ProductIdentity).Msg("Payment initiation failed")
		writeMessage(w, http.StatusInternalServerError, "Payment initiation failed")
		return
	}
	if err != nil {
		writeServiceError(w, err, "User not found", "Failed to initiate payment")
		return
	}
	audit.SetEntityID(r.Context(), checkout.Payment.ID)
	writeJSON(w, http.StatusOK, checkout)
}

// Verify looks up a checkout and records its status.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Pidx string `json:"pidx"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		badBody(w)
		return
	}

	v, err := h.service.Verify(r.Context(), claims(r).UserID, payload.Pidx)
	if errors.Is(err, services.ErrGateway) {
		log.Error().Err(err).Str("pidx", payload.Pidx).Msg("Payment verification failed")
		writeMessage(w, http.StatusInternalServerError, "Payment verification failed")
		return
	}
	if err != nil {
		writeServiceError(w, err, "Payment not found", "Failed to verify payment")
		return
	}
	audit.SetEntityID(r.Context(), v.Payment.ID)
	writeJSON(w, http.StatusOK, v)
}

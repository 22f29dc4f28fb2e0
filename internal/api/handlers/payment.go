package handlers

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/pratik-mahalle/wiman/internal/api/dto"
	"github.com/pratik-mahalle/wiman/internal/api/middleware"
	"github.com/pratik-mahalle/wiman/internal/domain/payment"
	"github.com/pratik-mahalle/wiman/internal/pkg/errors"
	"github.com/pratik-mahalle/wiman/internal/pkg/logger"
	"github.com/pratik-mahalle/wiman/internal/pkg/utils"
	"github.com/pratik-mahalle/wiman/internal/pkg/validator"
)

// MaxCallbackBody caps the size of a gateway notification
const MaxCallbackBody = 64 << 10

type PaymentHandler struct {
	service       payment.Service
	reconciler    payment.Reconciler
	callbackToken string
	logger        *logger.Logger
	validator     *validator.Validator
}

func NewPaymentHandler(service payment.Service, reconciler payment.Reconciler, callbackToken string, log *logger.Logger, val *validator.Validator) *PaymentHandler {
	return &PaymentHandler{
		service:       service,
		reconciler:    reconciler,
		callbackToken: callbackToken,
		logger:        log.Component("payment_handler"),
		validator:     val,
	}
}

// Initiate sends an STK push for one of the caller's pending subscriptions
// @Summary Initiate payment
// @Description Send an M-Pesa STK push for a pending subscription owned by the caller
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body dto.InitiatePaymentRequest true "Subscription and phone number"
// @Success 202 {object} utils.SuccessResponse{data=dto.PaymentDTO} "STK push sent"
// @Failure 400 {object} utils.ErrorResponse "Invalid phone number or request rejected by the gateway"
// @Failure 404 {object} utils.ErrorResponse "Subscription not found"
// @Failure 409 {object} utils.ErrorResponse "Subscription is not pending"
// @Failure 503 {object} utils.ErrorResponse "Payment gateway unavailable, try again"
// @Security BearerAuth
// @Router /payments [post]
func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		utils.WriteError(w, errors.Unauthorized("Missing authentication token"))
		return
	}

	var req dto.InitiatePaymentRequest
	if appErr := decodeAndValidate(w, r, h.validator, &req); appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	p, err := h.service.Initiate(r.Context(), userID, req.SubscriptionID, req.PhoneNumber)
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}

	middleware.AddLogField(w, "payment_id", p.ID)
	utils.WriteSuccessWithMessage(w, http.StatusAccepted, "Check your phone to complete the payment", dto.ToPaymentDTO(p))
}

// MpesaCallback receives STK push results. Daraja retries anything but a 200, so every
// outcome, including ones queued for reconciliation, is acknowledged.
// @Summary M-Pesa STK callback
// @Description Receive an STK push result from Daraja. Always acknowledged unless the callback token is wrong
// @Tags Payments
// @Accept json
// @Produce json
// @Param token query string false "Callback token"
// @Success 200 {object} dto.CallbackAck "Accepted"
// @Failure 401 {object} utils.ErrorResponse "Invalid callback token"
// @Router /payments/mpesa/callback [post]
func (h *PaymentHandler) MpesaCallback(w http.ResponseWriter, r *http.Request) {
	if h.callbackToken != "" {
		got := r.URL.Query().Get("token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.callbackToken)) != 1 {
			h.logger.WithFields(map[string]interface{}{"ip": r.RemoteAddr}).Warn("Callback with invalid token rejected")
			utils.WriteError(w, errors.Unauthorized("Invalid callback token"))
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxCallbackBody))
	if err != nil {
		// A truncated body fails to parse and is queued as malformed
		h.logger.WithError(err).Warn("Callback body could not be read in full")
	}

	// Finish reconciling even if the gateway hangs up
	result := h.reconciler.HandleCallback(context.WithoutCancel(r.Context()), body)

	middleware.AddLogField(w, "outcome", string(result.Outcome))
	if result.SubscriptionID != "" {
		middleware.AddLogField(w, "subscription_id", result.SubscriptionID)
	}
	if result.Duplicate {
		middleware.AddLogField(w, "duplicate", true)
	}

	utils.WriteJSON(w, http.StatusOK, dto.Accepted)
}

package handlers

import (
	"net/http"

	"github.com/pratik-mahalle/wiman/internal/api/dto"
	"github.com/pratik-mahalle/wiman/internal/api/middleware"
	"github.com/pratik-mahalle/wiman/internal/domain/subscription"
	"github.com/pratik-mahalle/wiman/internal/pkg/clock"
	"github.com/pratik-mahalle/wiman/internal/pkg/errors"
	"github.com/pratik-mahalle/wiman/internal/pkg/logger"
	"github.com/pratik-mahalle/wiman/internal/pkg/utils"
	"github.com/pratik-mahalle/wiman/internal/pkg/validator"
)

type SubscriptionHandler struct {
	service   subscription.Service
	clock     clock.Clock
	logger    *logger.Logger
	validator *validator.Validator
}

func NewSubscriptionHandler(service subscription.Service, clk clock.Clock, log *logger.Logger, val *validator.Validator) *SubscriptionHandler {
	return &SubscriptionHandler{service: service, clock: clk, logger: log, validator: val}
}

// Create starts a subscription on a plan for the caller
// @Summary Create subscription
// @Description Start a pending subscription on a plan, or an active one when pay later is enabled
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param request body dto.CreateSubscriptionRequest true "Plan selection"
// @Success 201 {object} utils.SuccessResponse{data=dto.SubscriptionDTO} "Subscription created"
// @Failure 400 {object} utils.ErrorResponse "Invalid request or validation error"
// @Failure 404 {object} utils.ErrorResponse "Unknown plan"
// @Failure 409 {object} utils.ErrorResponse "User already has an active or pending subscription"
// @Security BearerAuth
// @Router /subscriptions [post]
func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		utils.WriteError(w, errors.Unauthorized("Missing authentication token"))
		return
	}

	var req dto.CreateSubscriptionRequest
	if appErr := decodeAndValidate(w, r, h.validator, &req); appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	sub, err := h.service.Create(r.Context(), userID, req.PlanID, subscription.CreateOptions{PayLater: req.PayLater})
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}

	middleware.AddLogField(w, "subscription_id", sub.ID)
	utils.WriteSuccess(w, http.StatusCreated, dto.ToSubscriptionDTO(sub, h.clock.Now()))
}

// Current returns the caller's latest subscription
// @Summary Get current subscription
// @Description Get the caller's latest subscription with its entitlement and remaining time
// @Tags Subscriptions
// @Produce json
// @Success 200 {object} utils.SuccessResponse{data=dto.SubscriptionDTO} "Current subscription"
// @Failure 401 {object} utils.ErrorResponse "Unauthorized"
// @Failure 404 {object} utils.ErrorResponse "No subscription"
// @Security BearerAuth
// @Router /subscriptions/current [get]
func (h *SubscriptionHandler) Current(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		utils.WriteError(w, errors.Unauthorized("Missing authentication token"))
		return
	}

	sub, err := h.service.Current(r.Context(), userID)
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.ToSubscriptionDTO(sub, h.clock.Now()))
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pratik-mahalle/wiman/internal/api/dto"
	"github.com/pratik-mahalle/wiman/internal/api/middleware"
	"github.com/pratik-mahalle/wiman/internal/domain/payment"
	"github.com/pratik-mahalle/wiman/internal/domain/subscription"
	"github.com/pratik-mahalle/wiman/internal/pkg/clock"
	"github.com/pratik-mahalle/wiman/internal/pkg/errors"
	"github.com/pratik-mahalle/wiman/internal/pkg/logger"
	"github.com/pratik-mahalle/wiman/internal/pkg/utils"
	"github.com/pratik-mahalle/wiman/internal/pkg/validator"
)

// AdminHandler exposes operator actions on subscriptions and the reconciliation queue
type AdminHandler struct {
	subscriptions subscription.Service
	reconciler    payment.Reconciler
	clock         clock.Clock
	logger        *logger.Logger
	validator     *validator.Validator
}

func NewAdminHandler(subs subscription.Service, reconciler payment.Reconciler, clk clock.Clock, log *logger.Logger, val *validator.Validator) *AdminHandler {
	return &AdminHandler{
		subscriptions: subs,
		reconciler:    reconciler,
		clock:         clk,
		logger:        log.Component("admin"),
		validator:     val,
	}
}

// ListSubscriptions lists subscriptions filtered by user_id, plan_id and status
// @Summary List subscriptions
// @Description Get a paginated list of subscriptions
// @Tags Admin
// @Produce json
// @Param user_id query int false "Filter by user"
// @Param plan_id query string false "Filter by plan"
// @Param status query string false "Filter by status (pending, active, expired, cancelled)"
// @Param page query int false "Page number (default: 1)"
// @Param page_size query int false "Page size (default: 20, max: 100)"
// @Success 200 {object} utils.SuccessResponse{data=utils.PaginatedResponse{data=[]dto.SubscriptionDTO}} "List of subscriptions"
// @Failure 400 {object} utils.ErrorResponse "Invalid filter"
// @Failure 403 {object} utils.ErrorResponse "Admin role required"
// @Security BearerAuth
// @Router /admin/subscriptions [get]
func (h *AdminHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := subscription.Filter{
		PlanID: q.Get("plan_id"),
		Status: subscription.Status(q.Get("status")),
	}
	if raw := q.Get("user_id"); raw != "" {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			utils.WriteError(w, errors.ValidationError("Invalid user_id", map[string]string{"user_id": raw}))
			return
		}
		filter.UserID = userID
	}

	page := utils.ParsePage(r)
	subs, total, err := h.subscriptions.List(r.Context(), filter, page.Size, page.Offset())
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, utils.Paginate(dto.ToSubscriptionDTOs(subs, h.clock.Now()), page, total))
}

// Expire runs the expiry sweep immediately
// @Summary Expire due subscriptions
// @Description Run the expiry sweep now
// @Tags Admin
// @Produce json
// @Success 200 {object} utils.SuccessResponse{data=dto.ExpireResponse} "Number of subscriptions expired"
// @Failure 403 {object} utils.ErrorResponse "Admin role required"
// @Failure 503 {object} utils.ErrorResponse "Storage unavailable"
// @Security BearerAuth
// @Router /admin/subscriptions/expire [post]
func (h *AdminHandler) Expire(w http.ResponseWriter, r *http.Request) {
	n, err := h.subscriptions.ExpireDue(r.Context(), h.clock.Now())
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}
	middleware.AddLogField(w, "expired", n)
	utils.WriteSuccess(w, http.StatusOK, dto.ExpireResponse{Expired: n})
}

// Renew extends a subscription by the requested days and hours
// @Summary Renew subscription
// @Description Extend an active subscription, or open a fresh window on an expired one
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Subscription ID"
// @Param request body dto.RenewSubscriptionRequest true "Extra days and hours"
// @Success 200 {object} utils.SuccessResponse{data=dto.SubscriptionDTO} "Renewed subscription"
// @Failure 400 {object} utils.ErrorResponse "Invalid duration"
// @Failure 404 {object} utils.ErrorResponse "Subscription not found"
// @Failure 409 {object} utils.ErrorResponse "Cancelled subscription or concurrent change"
// @Security BearerAuth
// @Router /admin/subscriptions/{id}/renew [post]
func (h *AdminHandler) Renew(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req dto.RenewSubscriptionRequest
	if appErr := decodeAndValidate(w, r, h.validator, &req); appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	sub, err := h.subscriptions.Renew(r.Context(), id, req.Extra())
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"subscription_id": sub.ID,
		"extra":           req.Extra().String(),
	}).Info("Subscription renewed by operator")
	utils.WriteSuccess(w, http.StatusOK, dto.ToSubscriptionDTO(sub, h.clock.Now()))
}

// Cancel ends a pending or active subscription
// @Summary Cancel subscription
// @Tags Admin
// @Produce json
// @Param id path string true "Subscription ID"
// @Success 200 {object} utils.SuccessResponse{data=dto.SubscriptionDTO} "Cancelled subscription"
// @Failure 404 {object} utils.ErrorResponse "Subscription not found"
// @Failure 409 {object} utils.ErrorResponse "Subscription already expired"
// @Security BearerAuth
// @Router /admin/subscriptions/{id}/cancel [post]
func (h *AdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sub, err := h.subscriptions.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}
	h.logger.With("subscription_id", sub.ID).Info("Subscription cancelled by operator")
	utils.WriteSuccess(w, http.StatusOK, dto.ToSubscriptionDTO(sub, h.clock.Now()))
}

// ListReconciliations lists queued payment problems, open ones by default
// @Summary List reconciliation entries
// @Description Get payment problems queued for follow-up
// @Tags Admin
// @Produce json
// @Param status query string false "open (default), resolved or abandoned"
// @Param page query int false "Page number (default: 1)"
// @Param page_size query int false "Page size (default: 20, max: 100)"
// @Success 200 {object} utils.SuccessResponse{data=utils.PaginatedResponse{data=[]payment.Entry}} "Reconciliation entries"
// @Failure 400 {object} utils.ErrorResponse "Unknown status"
// @Security BearerAuth
// @Router /admin/reconciliations [get]
func (h *AdminHandler) ListReconciliations(w http.ResponseWriter, r *http.Request) {
	status := payment.EntryStatus(r.URL.Query().Get("status"))
	switch status {
	case "":
		status = payment.EntryOpen
	case "all":
		status = ""
	case payment.EntryOpen, payment.EntryResolved, payment.EntryAbandoned:
	default:
		utils.WriteError(w, errors.ValidationError("Unknown reconciliation status", map[string]string{"status": string(status)}))
		return
	}

	page := utils.ParsePage(r)
	entries, total, err := h.reconciler.ListEntries(r.Context(), status, page.Size, page.Offset())
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, utils.Paginate(entries, page, total))
}

// RetryReconciliations runs the activation retry pass now
// @Summary Retry failed activations
// @Description Run the activation retry pass over due entries now
// @Tags Admin
// @Produce json
// @Success 200 {object} utils.SuccessResponse{data=payment.RetryReport} "Retry report"
// @Failure 503 {object} utils.ErrorResponse "Storage unavailable"
// @Security BearerAuth
// @Router /admin/reconciliations/retry [post]
func (h *AdminHandler) RetryReconciliations(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.RetryPending(r.Context())
	if err != nil {
		utils.WriteAnyError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, report)
}

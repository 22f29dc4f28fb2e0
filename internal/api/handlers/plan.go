package handlers

import (
	"net/http"

	"github.com/pratik-mahalle/wiman/internal/api/dto"
	"github.com/pratik-mahalle/wiman/internal/domain/plan"
	"github.com/pratik-mahalle/wiman/internal/pkg/logger"
	"github.com/pratik-mahalle/wiman/internal/pkg/utils"
)

type PlanHandler struct {
	catalog plan.Catalog
	logger  *logger.Logger
}

func NewPlanHandler(catalog plan.Catalog, log *logger.Logger) *PlanHandler {
	return &PlanHandler{catalog: catalog, logger: log}
}

// List returns the plan catalog grouped by category
// @Summary List plans
// @Description Get the plan catalog grouped into basic, premium and enterprise
// @Tags Plans
// @Produce json
// @Success 200 {object} utils.SuccessResponse{data=dto.PlanCatalogDTO} "Plan catalog"
// @Failure 503 {object} utils.ErrorResponse "Storage unavailable"
// @Router /plans [get]
func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	plans, err := h.catalog.List(r.Context())
	if err != nil {
		h.logger.ErrorWithErr(err, "Failed to list plans")
		utils.WriteAnyError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, dto.ToPlanCatalogDTO(plans))
}

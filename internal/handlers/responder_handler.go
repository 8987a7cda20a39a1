package handlers

import (
	"net/http"

	"disaster_backend/internal/algorithms"
	"disaster_backend/internal/auth"
	"disaster_backend/internal/middleware"
	"disaster_backend/internal/services"
	"disaster_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type ResponderHandler struct {
	*BaseHandler
	responderService  services.ResponderService
	assignmentService services.AssignmentService
}

func NewResponderHandler(base *BaseHandler, responderService services.ResponderService, assignmentService services.AssignmentService) *ResponderHandler {
	return &ResponderHandler{
		BaseHandler:       base,
		responderService:  responderService,
		assignmentService: assignmentService,
	}
}

func (h *ResponderHandler) RegisterRoutes(r *gin.RouterGroup) {
	responders := r.Group("/responders")
	responders.Use(h.RequireAuth())
	{
		responders.GET("/nearby", middleware.RequireCapability(auth.CapResponderSearch), h.FindNearby)
		responders.PUT("/report-status/:reportId", middleware.RequireCapability(auth.CapReportRespond), h.UpdateReportStatus)
	}
}

// FindNearby godoc
// @Summary Ближайшие активные спасатели
// @Tags responders
// @Produce json
// @Security BearerAuth
// @Param latitude query number true "Широта"
// @Param longitude query number true "Долгота"
// @Param limit query int false "Сколько вернуть" default(5)
// @Param maxDistance query number false "Радиус, метры" default(10000)
// @Success 200 {object} NearbyRespondersResponse
// @Failure 400 {object} apperrors.ErrorResponse
// @Failure 403 {object} apperrors.ErrorResponse
// @Router /responders/nearby [get]
func (h *ResponderHandler) FindNearby(c *gin.Context) {
	var query dto.NearbyQuery
	if !h.BindAndValidate_Query(c, &query) {
		return
	}

	nearby, err := h.responderService.FindNearby(h.GetDB(c), *query.Latitude, *query.Longitude, algorithms.Options{
		MaxDistanceMeters: query.MaxDistance,
		Limit:             query.Limit,
	})
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, NearbyRespondersResponse{Success: true, Responders: nearby})
}

// UpdateReportStatus godoc
// @Summary Ответ назначенного спасателя
// @Description accepted - подтверждение, declined - отказ, resolved - закрыть отчет.
// @Tags responders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param reportId path string true "ID отчета"
// @Param request body dto.ResponderStatusRequest true "Действие"
// @Success 200 {object} DataResponse{data=dto.ResponderStatusResponse}
// @Failure 403 {object} apperrors.ErrorResponse
// @Failure 404 {object} apperrors.ErrorResponse
// @Failure 409 {object} apperrors.ErrorResponse
// @Router /responders/report-status/{reportId} [put]
func (h *ResponderHandler) UpdateReportStatus(c *gin.Context) {
	actor, ok := h.GetActor(c)
	if !ok {
		return
	}

	var req dto.ResponderStatusRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	result, err := h.assignmentService.Respond(h.GetDB(c), actor, c.Param("reportId"), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	report := result.Report
	c.JSON(http.StatusOK, DataResponse{
		Success: true,
		Data: dto.ResponderStatusResponse{
			ID:                 report.ID,
			Status:             report.Status,
			AssignedResponders: report.AssignedResponders,
		},
		Warnings: result.Warnings,
	})
}

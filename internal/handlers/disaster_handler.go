package handlers

import (
	"net/http"

	"disaster_backend/internal/auth"
	"disaster_backend/internal/middleware"
	"disaster_backend/internal/services"
	"disaster_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type DisasterHandler struct {
	*BaseHandler
	reportService     services.ReportService
	assignmentService services.AssignmentService
}

func NewDisasterHandler(base *BaseHandler, reportService services.ReportService, assignmentService services.AssignmentService) *DisasterHandler {
	return &DisasterHandler{
		BaseHandler:       base,
		reportService:     reportService,
		assignmentService: assignmentService,
	}
}

// RegisterRoutes - один набор маршрутов на все категории
func (h *DisasterHandler) RegisterRoutes(r *gin.RouterGroup) {
	disasters := r.Group("/disasters/:category")
	{
		// Public (скрытые отчеты только с токеном authority/admin)
		disasters.GET("", h.OptionalAuth(), h.ListReports)
		disasters.GET("/:id", h.OptionalAuth(), h.GetReport)

		disasters.POST("", h.RequireAuth(), middleware.RequireCapability(auth.CapReportCreate), h.CreateReport)
		disasters.PUT("/:id", h.RequireAuth(), middleware.RequireCapability(auth.CapReportUpdate), h.UpdateReport)
		disasters.DELETE("/:id", h.RequireAuth(), middleware.RequireCapability(auth.CapReportDelete), h.DeleteReport)

		disasters.POST("/:id/assignments", h.RequireAuth(), middleware.RequireCapability(auth.CapReportAssign), h.AssignResponders)
		disasters.POST("/:id/assignments/auto", h.RequireAuth(), middleware.RequireCapability(auth.CapReportAssign), h.AutoAssign)
	}
}

// ListReports godoc
// @Summary Список отчетов категории
// @Tags disasters
// @Produce json
// @Param category path string true "Категория" Enums(earthquake,flood,fire,landslide,cyclone,tsunami,sos,other)
// @Param includeHidden query bool false "Включить скрытые (report:read_hidden)"
// @Param tag query string false "Фильтр по тегу"
// @Param page query int false "Страница" default(1)
// @Param page_size query int false "Размер страницы" default(20)
// @Success 200 {object} ReportListResponse
// @Failure 400 {object} apperrors.ErrorResponse
// @Failure 403 {object} apperrors.ErrorResponse
// @Router /disasters/{category} [get]
func (h *DisasterHandler) ListReports(c *gin.Context) {
	category, ok := h.ParseCategory(c)
	if !ok {
		return
	}

	var query dto.ListReportsQuery
	if !h.BindAndValidate_Query(c, &query) {
		return
	}
	page, pageSize := ParsePagination(c)

	list, err := h.reportService.ListReports(h.GetDB(c), middleware.GetActor(c), category, query, page, pageSize)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ReportListResponse{
		Success:  true,
		Data:     list.Reports,
		Total:    list.Total,
		Page:     list.Page,
		PageSize: list.PageSize,
	})
}

// GetReport godoc
// @Summary Отчет по id
// @Tags disasters
// @Produce json
// @Param category path string true "Категория"
// @Param id path string true "ID отчета"
// @Success 200 {object} ReportResponse
// @Failure 404 {object} apperrors.ErrorResponse
// @Router /disasters/{category}/{id} [get]
func (h *DisasterHandler) GetReport(c *gin.Context) {
	category, ok := h.ParseCategory(c)
	if !ok {
		return
	}

	report, err := h.reportService.GetReport(h.GetDB(c), middleware.GetActor(c), category, c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ReportResponse{Success: true, Data: report})
}

// CreateReport godoc
// @Summary Создать отчет
// @Description Рассылает уведомления всем активным пользователям и публикует событие new_<category>.
// @Tags disasters
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param category path string true "Категория"
// @Param report body dto.CreateReportRequest true "Отчет"
// @Success 201 {object} ReportResponse
// @Failure 400 {object} apperrors.ErrorResponse
// @Failure 401 {object} apperrors.ErrorResponse
// @Failure 403 {object} apperrors.ErrorResponse
// @Router /disasters/{category} [post]
func (h *DisasterHandler) CreateReport(c *gin.Context) {
	actor, ok := h.GetActor(c)
	if !ok {
		return
	}
	category, ok := h.ParseCategory(c)
	if !ok {
		return
	}

	var req dto.CreateReportRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	result, err := h.reportService.CreateReport(h.GetDB(c), actor, category, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	respondReport(c, http.StatusCreated, result)
}

// UpdateReport godoc
// @Summary Обновить отчет
// @Description Полный набор полей. Новые id в assignedResponders назначаются, убрать назначенного нельзя.
// @Tags disasters
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param category path string true "Категория"
// @Param id path string true "ID отчета"
// @Param report body dto.UpdateReportRequest true "Отчет"
// @Success 200 {object} ReportResponse
// @Failure 400 {object} apperrors.ErrorResponse
// @Failure 404 {object} apperrors.ErrorResponse
// @Failure 409 {object} apperrors.ErrorResponse
// @Router /disasters/{category}/{id} [put]
func (h *DisasterHandler) UpdateReport(c *gin.Context) {
	actor, ok := h.GetActor(c)
	if !ok {
		return
	}
	category, ok := h.ParseCategory(c)
	if !ok {
		return
	}

	var req dto.UpdateReportRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	result, err := h.reportService.UpdateReport(h.GetDB(c), actor, category, c.Param("id"), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	respondReport(c, http.StatusOK, result)
}

// DeleteReport godoc
// @Summary Удалить отчет
// @Tags disasters
// @Produce json
// @Security BearerAuth
// @Param category path string true "Категория"
// @Param id path string true "ID отчета"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} apperrors.ErrorResponse
// @Router /disasters/{category}/{id} [delete]
func (h *DisasterHandler) DeleteReport(c *gin.Context) {
	actor, ok := h.GetActor(c)
	if !ok {
		return
	}
	category, ok := h.ParseCategory(c)
	if !ok {
		return
	}

	if err := h.reportService.DeleteReport(h.GetDB(c), actor, category, c.Param("id")); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// AssignResponders godoc
// @Summary Назначить спасателей
// @Tags assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param category path string true "Категория"
// @Param id path string true "ID отчета"
// @Param request body dto.AssignRequest true "ID спасателей"
// @Success 200 {object} ReportResponse
// @Failure 404 {object} apperrors.ErrorResponse
// @Failure 409 {object} apperrors.ErrorResponse
// @Router /disasters/{category}/{id}/assignments [post]
func (h *DisasterHandler) AssignResponders(c *gin.Context) {
	actor, ok := h.GetActor(c)
	if !ok {
		return
	}
	category, ok := h.ParseCategory(c)
	if !ok {
		return
	}

	var req dto.AssignRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	result, err := h.assignmentService.Assign(h.GetDB(c), actor, category, c.Param("id"), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	respondReport(c, http.StatusOK, result)
}

// AutoAssign godoc
// @Summary Назначить ближайших спасателей
// @Tags assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param category path string true "Категория"
// @Param id path string true "ID отчета"
// @Param request body dto.AutoAssignRequest false "Лимит и радиус"
// @Success 200 {object} ReportResponse
// @Failure 404 {object} apperrors.ErrorResponse
// @Failure 409 {object} apperrors.ErrorResponse
// @Router /disasters/{category}/{id}/assignments/auto [post]
func (h *DisasterHandler) AutoAssign(c *gin.Context) {
	actor, ok := h.GetActor(c)
	if !ok {
		return
	}
	category, ok := h.ParseCategory(c)
	if !ok {
		return
	}

	// тело необязательно
	var req dto.AutoAssignRequest
	if c.Request.ContentLength != 0 {
		if !h.BindAndValidate_JSON(c, &req) {
			return
		}
	}

	result, err := h.assignmentService.AutoAssign(h.GetDB(c), actor, category, c.Param("id"), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	respondReport(c, http.StatusOK, result)
}

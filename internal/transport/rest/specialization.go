package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medbook/internal/domain"
)

// @Summary Получить список специализаций
// @Description Возвращает список специализаций с фильтрацией и пагинацией
// @Tags Специализации
// @Produce json
// @Param limit query int false "Лимит записей на странице (по умолчанию 20)"
// @Param offset query int false "Смещение (по умолчанию 0)"
// @Param is_active query boolean false "Фильтр по активности"
// @Param search query string false "Поисковый запрос"
// @Success 200 {object} paginatedResponse{data=[]domain.Specialization} "Список специализаций"
// @Failure 500 {object} errorResponseBody "Внутренняя ошибка сервера"
// @Router /specializations [get]
func (h *Handler) getSpecializations(c *gin.Context) {
	isActive, ok := queryBool(c, "is_active")
	if !ok {
		return
	}

	limit, offset := pageParams(c)
	filter := domain.SpecializationFilter{
		IsActive:   isActive,
		SearchTerm: queryString(c, "search"),
		Limit:      limit,
		Offset:     offset,
	}

	specializations, total, err := h.services.Specialization.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("ошибка получения списка специализаций", zap.Error(err))
		handleError(c, err)
		return
	}

	paginated(c, specializations, total, limit, offset)
}

// @Summary Получить специализацию по ID
// @Tags Специализации
// @Produce json
// @Param id path int true "ID специализации"
// @Success 200 {object} domain.Specialization "Специализация"
// @Failure 400 {object} errorResponseBody "Неверный формат ID"
// @Failure 404 {object} errorResponseBody "Специализация не найдена"
// @Router /specializations/{id} [get]
func (h *Handler) getSpecializationByID(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	specialization, err := h.services.Specialization.GetByID(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	successResponse(c, http.StatusOK, specialization)
}

// @Summary Создать специализацию
// @Description Создает новую специализацию (только для администраторов)
// @Tags Специализации
// @Accept json
// @Produce json
// @Param input body domain.CreateSpecializationDTO true "Данные специализации"
// @Success 201 {object} idResponse "ID созданной специализации"
// @Failure 400 {object} errorResponseBody "Ошибка валидации"
// @Failure 409 {object} errorResponseBody "Специализация уже существует"
// @Security ApiKeyAuth
// @Router /specializations [post]
func (h *Handler) createSpecialization(c *gin.Context) {
	var input domain.CreateSpecializationDTO
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Warn("неверный формат данных", zap.Error(err))
		badRequestResponse(c, "неверный формат данных")
		return
	}

	id, err := h.services.Specialization.Create(c.Request.Context(), input)
	if err != nil {
		handleError(c, err)
		return
	}

	createdResponse(c, idResponse{ID: id})
}

// @Summary Обновить специализацию
// @Tags Специализации
// @Accept json
// @Produce json
// @Param id path int true "ID специализации"
// @Param input body domain.UpdateSpecializationDTO true "Новые данные"
// @Success 200 {object} domain.Specialization "Обновленная специализация"
// @Failure 400 {object} errorResponseBody "Ошибка валидации"
// @Failure 404 {object} errorResponseBody "Специализация не найдена"
// @Security ApiKeyAuth
// @Router /specializations/{id} [put]
func (h *Handler) updateSpecialization(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var input domain.UpdateSpecializationDTO
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Warn("неверный формат данных", zap.Error(err))
		badRequestResponse(c, "неверный формат данных")
		return
	}

	if err := h.services.Specialization.Update(c.Request.Context(), id, input); err != nil {
		handleError(c, err)
		return
	}

	specialization, err := h.services.Specialization.GetByID(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	successResponse(c, http.StatusOK, specialization)
}

// @Summary Удалить специализацию
// @Tags Специализации
// @Param id path int true "ID специализации"
// @Success 204 "Специализация удалена"
// @Failure 404 {object} errorResponseBody "Специализация не найдена"
// @Security ApiKeyAuth
// @Router /specializations/{id} [delete]
func (h *Handler) deleteSpecialization(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.services.Specialization.Delete(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}

	noContentResponse(c)
}

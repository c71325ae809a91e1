package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medbook/internal/domain"
)

type seriesDeletedResponse struct {
	Deleted int `json:"deleted"`
}

// @Summary Список окон приема
// @Description Возвращает окна приема с рассчитанными свободными и занятыми метками времени
// @Tags Окна приема
// @Produce json
// @Param doctor_id query int false "ID врача"
// @Param date_from query string false "Начало периода YYYY-MM-DD"
// @Param date_to query string false "Конец периода YYYY-MM-DD"
// @Param recurrence_id query string false "ID серии повторяющихся окон"
// @Param limit query int false "Лимит" default(20)
// @Param offset query int false "Смещение" default(0)
// @Success 200 {object} paginatedResponse{data=[]domain.AppointmentSlot} "Окна приема"
// @Failure 400 {object} errorResponseBody "Некорректные параметры"
// @Router /slots [get]
func (h *Handler) getSlots(c *gin.Context) {
	doctorID, ok := queryInt64(c, "doctor_id")
	if !ok {
		return
	}

	limit, offset := pageParams(c)
	filter := domain.SlotFilter{
		DoctorID:     doctorID,
		DateFrom:     queryString(c, "date_from"),
		DateTo:       queryString(c, "date_to"),
		RecurrenceID: queryString(c, "recurrence_id"),
		Limit:        limit,
		Offset:       offset,
	}

	slots, total, err := h.services.Slot.List(c.Request.Context(), filter)
	if err != nil {
		handleError(c, err)
		return
	}

	paginated(c, slots, total, limit, offset)
}

// @Summary Получить окно приема
// @Tags Окна приема
// @Produce json
// @Param id path int true "ID окна"
// @Success 200 {object} domain.AppointmentSlot "Окно приема"
// @Failure 404 {object} errorResponseBody "Окно не найдено"
// @Router /slots/{id} [get]
func (h *Handler) getSlotByID(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	slot, err := h.services.Slot.GetByID(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	successResponse(c, http.StatusOK, slot)
}

// @Summary Создать окно приема
// @Description Создает окно приема врача. Повторяющееся окно создается на recurrence_weeks недель вперед
// @Tags Окна приема
// @Accept json
// @Produce json
// @Param input body domain.CreateSlotDTO true "Параметры окна"
// @Success 201 {object} successResponseBody{data=[]domain.AppointmentSlot} "Созданные окна"
// @Failure 400 {object} errorResponseBody "Ошибка валидации"
// @Failure 409 {object} errorResponseBody "Пересечение с существующим окном"
// @Security ApiKeyAuth
// @Router /slots [post]
func (h *Handler) createSlot(c *gin.Context) {
	actor, err := getIdentity(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	var input domain.CreateSlotDTO
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Warn("неверный формат данных", zap.Error(err))
		badRequestResponse(c, "неверный формат данных")
		return
	}

	slots, err := h.services.Slot.Create(c.Request.Context(), actor, input)
	if err != nil {
		handleError(c, err)
		return
	}

	createdResponse(c, slots)
}

// @Summary Обновить окно приема
// @Tags Окна приема
// @Accept json
// @Produce json
// @Param id path int true "ID окна"
// @Param input body domain.UpdateSlotDTO true "Новые параметры"
// @Success 200 {object} domain.AppointmentSlot "Обновленное окно"
// @Failure 400 {object} errorResponseBody "Ошибка валидации"
// @Failure 403 {object} errorResponseBody "Чужое окно"
// @Failure 409 {object} errorResponseBody "Конфликт с записями или другими окнами"
// @Security ApiKeyAuth
// @Router /slots/{id} [put]
func (h *Handler) updateSlot(c *gin.Context) {
	actor, err := getIdentity(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var input domain.UpdateSlotDTO
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Warn("неверный формат данных", zap.Error(err))
		badRequestResponse(c, "неверный формат данных")
		return
	}

	slot, err := h.services.Slot.Update(c.Request.Context(), actor, id, input)
	if err != nil {
		handleError(c, err)
		return
	}

	successResponse(c, http.StatusOK, slot)
}

// @Summary Удалить окно приема
// @Tags Окна приема
// @Param id path int true "ID окна"
// @Success 204 "Окно удалено"
// @Failure 403 {object} errorResponseBody "Чужое окно"
// @Failure 409 {object} errorResponseBody "На окно есть активные записи"
// @Security ApiKeyAuth
// @Router /slots/{id} [delete]
func (h *Handler) deleteSlot(c *gin.Context) {
	actor, err := getIdentity(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.services.Slot.Delete(c.Request.Context(), actor, id); err != nil {
		handleError(c, err)
		return
	}

	noContentResponse(c)
}

// @Summary Удалить серию окон
// @Description Удаляет окна серии, на которые нет активных записей
// @Tags Окна приема
// @Produce json
// @Param recurrence_id path string true "ID серии"
// @Success 200 {object} seriesDeletedResponse "Количество удаленных окон"
// @Failure 400 {object} errorResponseBody "Некорректный ID серии"
// @Failure 404 {object} errorResponseBody "Серия не найдена"
// @Security ApiKeyAuth
// @Router /slots/series/{recurrence_id} [delete]
func (h *Handler) deleteSlotSeries(c *gin.Context) {
	actor, err := getIdentity(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	deleted, err := h.services.Slot.DeleteSeries(c.Request.Context(), actor, c.Param("recurrence_id"))
	if err != nil {
		handleError(c, err)
		return
	}

	successResponse(c, http.StatusOK, seriesDeletedResponse{Deleted: deleted})
}

package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medbook/internal/domain"
)

// @Summary Записаться на прием
// @Description Бронирует метку времени в окне приема врача
// @Tags Записи
// @Accept json
// @Produce json
// @Param input body domain.BookAppointmentDTO true "Окно и время приема"
// @Success 201 {object} domain.Appointment "Созданная запись"
// @Failure 400 {object} errorResponseBody "Время не входит в окно или дата прошла"
// @Failure 404 {object} errorResponseBody "Окно не найдено"
// @Failure 409 {object} errorResponseBody "Время уже занято"
// @Security ApiKeyAuth
// @Router /appointments [post]
func (h *Handler) bookAppointment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.logger.Warn("ошибка получения ID пользователя", zap.Error(err))
		unauthorizedResponse(c)
		return
	}

	var input domain.BookAppointmentDTO
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Warn("неверный формат данных", zap.Error(err))
		badRequestResponse(c, "неверный формат данных")
		return
	}

	appointment, err := h.services.Appointment.Book(c.Request.Context(), userID, input)
	if err != nil {
		handleError(c, err)
		return
	}

	createdResponse(c, appointment)
}

// @Summary Список записей
// @Description Пациент видит свои записи, врач записи к себе, администратор все
// @Tags Записи
// @Produce json
// @Param status query string false "Статус" Enums(pending, confirmed, completed, cancelled)
// @Param doctor_id query int false "ID врача"
// @Param patient_id query int false "ID пациента"
// @Param slot_id query int false "ID окна"
// @Param date_from query string false "Начало периода YYYY-MM-DD"
// @Param date_to query string false "Конец периода YYYY-MM-DD"
// @Param limit query int false "Лимит" default(20)
// @Param offset query int false "Смещение" default(0)
// @Success 200 {object} paginatedResponse{data=[]domain.Appointment} "Записи"
// @Failure 400 {object} errorResponseBody "Некорректные параметры"
// @Security ApiKeyAuth
// @Router /appointments [get]
func (h *Handler) getAppointments(c *gin.Context) {
	actor, err := getIdentity(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	doctorID, ok := queryInt64(c, "doctor_id")
	if !ok {
		return
	}
	patientID, ok := queryInt64(c, "patient_id")
	if !ok {
		return
	}
	slotID, ok := queryInt64(c, "slot_id")
	if !ok {
		return
	}

	limit, offset := pageParams(c)
	filter := domain.AppointmentFilter{
		DoctorID:  doctorID,
		PatientID: patientID,
		SlotID:    slotID,
		DateFrom:  queryString(c, "date_from"),
		DateTo:    queryString(c, "date_to"),
		Limit:     limit,
		Offset:    offset,
	}
	if status := c.Query("status"); status != "" {
		s := domain.AppointmentStatus(status)
		filter.Status = &s
	}

	appointments, total, err := h.services.Appointment.List(c.Request.Context(), actor, filter)
	if err != nil {
		handleError(c, err)
		return
	}

	paginated(c, appointments, total, limit, offset)
}

// @Summary Получить запись
// @Tags Записи
// @Produce json
// @Param id path int true "ID записи"
// @Success 200 {object} domain.Appointment "Запись"
// @Failure 403 {object} errorResponseBody "Нет доступа к записи"
// @Failure 404 {object} errorResponseBody "Запись не найдена"
// @Security ApiKeyAuth
// @Router /appointments/{id} [get]
func (h *Handler) getAppointmentByID(c *gin.Context) {
	actor, err := getIdentity(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	appointment, err := h.services.Appointment.GetByID(c.Request.Context(), actor, id)
	if err != nil {
		handleError(c, err)
		return
	}

	successResponse(c, http.StatusOK, appointment)
}

// @Summary Изменить статус записи
// @Description Врач подтверждает и завершает прием, любая сторона может отменить активную запись
// @Tags Записи
// @Accept json
// @Produce json
// @Param id path int true "ID записи"
// @Param input body domain.UpdateAppointmentStatusDTO true "Новый статус"
// @Success 200 {object} domain.Appointment "Обновленная запись"
// @Failure 403 {object} errorResponseBody "Нет прав на смену статуса"
// @Failure 409 {object} errorResponseBody "Недопустимый переход статуса"
// @Security ApiKeyAuth
// @Router /appointments/{id}/status [patch]
func (h *Handler) updateAppointmentStatus(c *gin.Context) {
	actor, err := getIdentity(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var input domain.UpdateAppointmentStatusDTO
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Warn("неверный формат данных", zap.Error(err))
		badRequestResponse(c, "неверный формат данных")
		return
	}

	appointment, err := h.services.Appointment.UpdateStatus(c.Request.Context(), actor, id, input.Status)
	if err != nil {
		handleError(c, err)
		return
	}

	successResponse(c, http.StatusOK, appointment)
}

// @Summary Отменить запись
// @Tags Записи
// @Param id path int true "ID записи"
// @Success 204 "Запись отменена"
// @Failure 403 {object} errorResponseBody "Нет доступа к записи"
// @Failure 409 {object} errorResponseBody "Запись уже завершена или отменена"
// @Security ApiKeyAuth
// @Router /appointments/{id} [delete]
func (h *Handler) cancelAppointment(c *gin.Context) {
	actor, err := getIdentity(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.services.Appointment.Cancel(c.Request.Context(), actor, id); err != nil {
		handleError(c, err)
		return
	}

	noContentResponse(c)
}

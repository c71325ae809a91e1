package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medbook/internal/domain"
)

// @Summary Выписать назначение
// @Description Врач оформляет назначение по своей подтвержденной или завершенной записи
// @Tags Назначения
// @Accept json
// @Produce json
// @Param input body domain.CreatePrescriptionDTO true "Диагноз, заметки и лекарства"
// @Success 201 {object} idResponse "ID назначения"
// @Failure 400 {object} errorResponseBody "Ошибка валидации"
// @Failure 403 {object} errorResponseBody "Чужая запись"
// @Security ApiKeyAuth
// @Router /prescriptions [post]
func (h *Handler) createPrescription(c *gin.Context) {
	actor, err := getIdentity(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	var input domain.CreatePrescriptionDTO
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Warn("неверный формат данных", zap.Error(err))
		badRequestResponse(c, "неверный формат данных")
		return
	}

	id, err := h.services.Prescription.Create(c.Request.Context(), actor, input)
	if err != nil {
		handleError(c, err)
		return
	}

	createdResponse(c, idResponse{ID: id})
}

// @Summary Список назначений
// @Description Пациент видит свои назначения, врач выписанные им
// @Tags Назначения
// @Produce json
// @Param appointment_id query int false "ID записи"
// @Param patient_id query int false "ID пациента"
// @Param doctor_id query int false "ID врача"
// @Param limit query int false "Лимит" default(20)
// @Param offset query int false "Смещение" default(0)
// @Success 200 {object} paginatedResponse{data=[]domain.Prescription} "Назначения"
// @Security ApiKeyAuth
// @Router /prescriptions [get]
func (h *Handler) getPrescriptions(c *gin.Context) {
	actor, err := getIdentity(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	appointmentID, ok := queryInt64(c, "appointment_id")
	if !ok {
		return
	}
	patientID, ok := queryInt64(c, "patient_id")
	if !ok {
		return
	}
	doctorID, ok := queryInt64(c, "doctor_id")
	if !ok {
		return
	}

	limit, offset := pageParams(c)
	prescriptions, total, err := h.services.Prescription.List(c.Request.Context(), actor, domain.PrescriptionFilter{
		AppointmentID: appointmentID,
		PatientID:     patientID,
		DoctorID:      doctorID,
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		handleError(c, err)
		return
	}

	paginated(c, prescriptions, total, limit, offset)
}

// @Summary Получить назначение
// @Tags Назначения
// @Produce json
// @Param id path int true "ID назначения"
// @Success 200 {object} domain.Prescription "Назначение"
// @Failure 403 {object} errorResponseBody "Нет доступа"
// @Failure 404 {object} errorResponseBody "Назначение не найдено"
// @Security ApiKeyAuth
// @Router /prescriptions/{id} [get]
func (h *Handler) getPrescriptionByID(c *gin.Context) {
	actor, err := getIdentity(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	prescription, err := h.services.Prescription.GetByID(c.Request.Context(), actor, id)
	if err != nil {
		handleError(c, err)
		return
	}

	successResponse(c, http.StatusOK, prescription)
}

// @Summary Изменить назначение
// @Tags Назначения
// @Accept json
// @Produce json
// @Param id path int true "ID назначения"
// @Param input body domain.UpdatePrescriptionDTO true "Новые данные"
// @Success 200 {object} domain.Prescription "Обновленное назначение"
// @Failure 403 {object} errorResponseBody "Чужое назначение"
// @Security ApiKeyAuth
// @Router /prescriptions/{id} [put]
func (h *Handler) updatePrescription(c *gin.Context) {
	actor, err := getIdentity(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var input domain.UpdatePrescriptionDTO
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Warn("неверный формат данных", zap.Error(err))
		badRequestResponse(c, "неверный формат данных")
		return
	}

	if err := h.services.Prescription.Update(c.Request.Context(), actor, id, input); err != nil {
		handleError(c, err)
		return
	}

	prescription, err := h.services.Prescription.GetByID(c.Request.Context(), actor, id)
	if err != nil {
		handleError(c, err)
		return
	}

	successResponse(c, http.StatusOK, prescription)
}

// @Summary Удалить назначение
// @Tags Назначения
// @Param id path int true "ID назначения"
// @Success 204 "Назначение удалено"
// @Failure 403 {object} errorResponseBody "Чужое назначение"
// @Security ApiKeyAuth
// @Router /prescriptions/{id} [delete]
func (h *Handler) deletePrescription(c *gin.Context) {
	actor, err := getIdentity(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.services.Prescription.Delete(c.Request.Context(), actor, id); err != nil {
		handleError(c, err)
		return
	}

	noContentResponse(c)
}

// @Summary Прикрепить файл к назначению
// @Tags Назначения
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "ID назначения"
// @Param file formData file true "PDF или изображение"
// @Success 200 {object} messageResponseType "Файл прикреплен"
// @Failure 400 {object} errorResponseBody "Файл не передан или недопустимого типа"
// @Failure 403 {object} errorResponseBody "Чужое назначение"
// @Security ApiKeyAuth
// @Router /prescriptions/{id}/attachment [post]
func (h *Handler) uploadPrescriptionAttachment(c *gin.Context) {
	actor, err := getIdentity(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	data, filename, ok := h.readUpload(c)
	if !ok {
		return
	}

	if err := h.services.Prescription.UploadAttachment(c.Request.Context(), actor, id, data, filename); err != nil {
		handleError(c, err)
		return
	}

	messageResponse(c, http.StatusOK, "файл прикреплен")
}

// @Summary Ссылка на файл назначения
// @Description Возвращает временную ссылку на скачивание вложения
// @Tags Назначения
// @Produce json
// @Param id path int true "ID назначения"
// @Success 200 {object} domain.AttachmentLink "Временная ссылка"
// @Failure 404 {object} errorResponseBody "Вложения нет"
// @Security ApiKeyAuth
// @Router /prescriptions/{id}/attachment [get]
func (h *Handler) getPrescriptionAttachment(c *gin.Context) {
	actor, err := getIdentity(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	link, err := h.services.Prescription.AttachmentURL(c.Request.Context(), actor, id)
	if err != nil {
		handleError(c, err)
		return
	}

	successResponse(c, http.StatusOK, link)
}

package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medbook/internal/domain"
)

// @Summary Список отзывов
// @Tags Отзывы
// @Produce json
// @Param doctor_id query int false "ID врача"
// @Param patient_id query int false "ID пациента"
// @Param min_rating query int false "Минимальная оценка"
// @Param limit query int false "Лимит" default(20)
// @Param offset query int false "Смещение" default(0)
// @Success 200 {object} paginatedResponse{data=[]domain.Review} "Отзывы"
// @Failure 400 {object} errorResponseBody "Некорректные параметры"
// @Router /reviews [get]
func (h *Handler) getReviews(c *gin.Context) {
	doctorID, ok := queryInt64(c, "doctor_id")
	if !ok {
		return
	}
	patientID, ok := queryInt64(c, "patient_id")
	if !ok {
		return
	}

	limit, offset := pageParams(c)
	filter := domain.ReviewFilter{
		DoctorID:  doctorID,
		PatientID: patientID,
		Limit:     limit,
		Offset:    offset,
	}
	if raw := c.Query("min_rating"); raw != "" {
		minRating, err := strconv.Atoi(raw)
		if err != nil {
			badRequestResponse(c, "некорректный параметр min_rating")
			return
		}
		filter.MinRating = &minRating
	}

	reviews, total, err := h.services.Review.List(c.Request.Context(), filter)
	if err != nil {
		handleError(c, err)
		return
	}

	paginated(c, reviews, total, limit, offset)
}

// @Summary Получить отзыв
// @Tags Отзывы
// @Produce json
// @Param id path int true "ID отзыва"
// @Success 200 {object} domain.Review "Отзыв"
// @Failure 404 {object} errorResponseBody "Отзыв не найден"
// @Router /reviews/{id} [get]
func (h *Handler) getReviewByID(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	review, err := h.services.Review.GetByID(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	successResponse(c, http.StatusOK, review)
}

// @Summary Оставить отзыв
// @Description Пациент оценивает завершенный прием, один отзыв на запись
// @Tags Отзывы
// @Accept json
// @Produce json
// @Param input body domain.CreateReviewDTO true "Оценка и комментарий"
// @Success 201 {object} idResponse "ID отзыва"
// @Failure 400 {object} errorResponseBody "Прием не завершен или оценка вне диапазона"
// @Failure 409 {object} errorResponseBody "Отзыв уже оставлен"
// @Security ApiKeyAuth
// @Router /reviews [post]
func (h *Handler) createReview(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	var input domain.CreateReviewDTO
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Warn("неверный формат данных", zap.Error(err))
		badRequestResponse(c, "неверный формат данных")
		return
	}

	id, err := h.services.Review.Create(c.Request.Context(), userID, input)
	if err != nil {
		handleError(c, err)
		return
	}

	createdResponse(c, idResponse{ID: id})
}

// @Summary Изменить отзыв
// @Tags Отзывы
// @Accept json
// @Produce json
// @Param id path int true "ID отзыва"
// @Param input body domain.UpdateReviewDTO true "Новая оценка или комментарий"
// @Success 200 {object} domain.Review "Обновленный отзыв"
// @Failure 403 {object} errorResponseBody "Чужой отзыв"
// @Security ApiKeyAuth
// @Router /reviews/{id} [put]
func (h *Handler) updateReview(c *gin.Context) {
	actor, err := getIdentity(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var input domain.UpdateReviewDTO
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Warn("неверный формат данных", zap.Error(err))
		badRequestResponse(c, "неверный формат данных")
		return
	}

	if err := h.services.Review.Update(c.Request.Context(), actor, id, input); err != nil {
		handleError(c, err)
		return
	}

	h.respondReview(c, id)
}

// @Summary Ответить на отзыв
// @Description Ответ врача, которому оставлен отзыв
// @Tags Отзывы
// @Accept json
// @Produce json
// @Param id path int true "ID отзыва"
// @Param input body domain.ReplyReviewDTO true "Текст ответа"
// @Success 200 {object} domain.Review "Отзыв с ответом"
// @Failure 403 {object} errorResponseBody "Отзыв о другом враче"
// @Security ApiKeyAuth
// @Router /reviews/{id}/reply [post]
func (h *Handler) replyReview(c *gin.Context) {
	actor, err := getIdentity(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var input domain.ReplyReviewDTO
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Warn("неверный формат данных", zap.Error(err))
		badRequestResponse(c, "неверный формат данных")
		return
	}

	if err := h.services.Review.Reply(c.Request.Context(), actor, id, input); err != nil {
		handleError(c, err)
		return
	}

	h.respondReview(c, id)
}

// @Summary Удалить отзыв
// @Tags Отзывы
// @Param id path int true "ID отзыва"
// @Success 204 "Отзыв удален"
// @Failure 403 {object} errorResponseBody "Чужой отзыв"
// @Failure 404 {object} errorResponseBody "Отзыв не найден"
// @Security ApiKeyAuth
// @Router /reviews/{id} [delete]
func (h *Handler) deleteReview(c *gin.Context) {
	actor, err := getIdentity(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.services.Review.Delete(c.Request.Context(), actor, id); err != nil {
		handleError(c, err)
		return
	}

	noContentResponse(c)
}

func (h *Handler) respondReview(c *gin.Context, id int64) {
	review, err := h.services.Review.GetByID(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	successResponse(c, http.StatusOK, review)
}

package rest

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medbook/internal/domain"
)

const maxUploadSize = 10 << 20

type photoResponse struct {
	ProfilePhotoURL string `json:"profile_photo_url"`
}

// @Summary Поиск врачей
// @Description Возвращает врачей с фильтрами по имени, специализации, рейтингу и стоимости приема
// @Tags Врачи
// @Produce json
// @Param search query string false "Имя врача или специализация"
// @Param specialization_id query int false "ID специализации"
// @Param min_rating query number false "Минимальный рейтинг"
// @Param max_fee query number false "Максимальная стоимость приема"
// @Param sort_by query string false "Сортировка" Enums(rating, fee, experience)
// @Param limit query int false "Лимит" default(20)
// @Param offset query int false "Смещение" default(0)
// @Success 200 {object} paginatedResponse{data=[]domain.Doctor} "Список врачей"
// @Failure 400 {object} errorResponseBody "Некорректные параметры"
// @Router /doctors [get]
func (h *Handler) getDoctors(c *gin.Context) {
	specializationID, ok := queryInt64(c, "specialization_id")
	if !ok {
		return
	}
	minRating, ok := queryFloat(c, "min_rating")
	if !ok {
		return
	}
	maxFee, ok := queryFloat(c, "max_fee")
	if !ok {
		return
	}

	limit, offset := pageParams(c)
	filter := domain.DoctorFilter{
		Search:           queryString(c, "search"),
		SpecializationID: specializationID,
		MinRating:        minRating,
		MaxFee:           maxFee,
		SortBy:           domain.DoctorSort(c.Query("sort_by")),
		Limit:            limit,
		Offset:           offset,
	}

	doctors, total, err := h.services.Doctor.List(c.Request.Context(), filter)
	if err != nil {
		handleError(c, err)
		return
	}

	paginated(c, doctors, total, limit, offset)
}

// @Summary Получить врача по ID
// @Tags Врачи
// @Produce json
// @Param id path int true "ID врача"
// @Success 200 {object} domain.Doctor "Профиль врача"
// @Failure 404 {object} errorResponseBody "Врач не найден"
// @Router /doctors/{id} [get]
func (h *Handler) getDoctorByID(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	doctor, err := h.services.Doctor.GetByID(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	successResponse(c, http.StatusOK, doctor)
}

// @Summary Мой профиль врача
// @Tags Врачи
// @Produce json
// @Success 200 {object} domain.Doctor "Профиль врача"
// @Failure 404 {object} errorResponseBody "Профиль еще не создан"
// @Security ApiKeyAuth
// @Router /doctors/me [get]
func (h *Handler) getMyDoctorProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	doctor, err := h.services.Doctor.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}

	successResponse(c, http.StatusOK, doctor)
}

// @Summary Создать профиль врача
// @Description Создает профиль врача для текущего пользователя с ролью doctor
// @Tags Врачи
// @Accept json
// @Produce json
// @Param input body domain.CreateDoctorDTO true "Данные профиля"
// @Success 201 {object} idResponse "ID профиля"
// @Failure 400 {object} errorResponseBody "Ошибка валидации"
// @Failure 409 {object} errorResponseBody "Профиль уже существует"
// @Security ApiKeyAuth
// @Router /doctors [post]
func (h *Handler) createDoctor(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	var input domain.CreateDoctorDTO
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Warn("неверный формат данных", zap.Error(err))
		badRequestResponse(c, "неверный формат данных")
		return
	}

	id, err := h.services.Doctor.Create(c.Request.Context(), userID, input)
	if err != nil {
		handleError(c, err)
		return
	}

	createdResponse(c, idResponse{ID: id})
}

// @Summary Обновить профиль врача
// @Description Доступно владельцу профиля и администратору
// @Tags Врачи
// @Accept json
// @Produce json
// @Param id path int true "ID врача"
// @Param input body domain.UpdateDoctorDTO true "Новые данные"
// @Success 200 {object} domain.Doctor "Обновленный профиль"
// @Failure 403 {object} errorResponseBody "Чужой профиль"
// @Failure 404 {object} errorResponseBody "Врач не найден"
// @Security ApiKeyAuth
// @Router /doctors/{id} [put]
func (h *Handler) updateDoctor(c *gin.Context) {
	actor, err := getIdentity(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var input domain.UpdateDoctorDTO
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Warn("неверный формат данных", zap.Error(err))
		badRequestResponse(c, "неверный формат данных")
		return
	}

	if err := h.services.Doctor.Update(c.Request.Context(), actor, id, input); err != nil {
		handleError(c, err)
		return
	}

	doctor, err := h.services.Doctor.GetByID(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	successResponse(c, http.StatusOK, doctor)
}

// @Summary Удалить профиль врача
// @Tags Врачи
// @Param id path int true "ID врача"
// @Success 204 "Профиль удален"
// @Failure 403 {object} errorResponseBody "Чужой профиль"
// @Failure 404 {object} errorResponseBody "Врач не найден"
// @Security ApiKeyAuth
// @Router /doctors/{id} [delete]
func (h *Handler) deleteDoctor(c *gin.Context) {
	actor, err := getIdentity(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.services.Doctor.Delete(c.Request.Context(), actor, id); err != nil {
		handleError(c, err)
		return
	}

	noContentResponse(c)
}

// @Summary Загрузить фото врача
// @Tags Врачи
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "ID врача"
// @Param file formData file true "Изображение JPEG, PNG, GIF или WebP"
// @Success 200 {object} photoResponse "Ссылка на фото"
// @Failure 400 {object} errorResponseBody "Файл не передан или недопустимого типа"
// @Failure 403 {object} errorResponseBody "Чужой профиль"
// @Security ApiKeyAuth
// @Router /doctors/{id}/photo [post]
func (h *Handler) uploadDoctorPhoto(c *gin.Context) {
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

	url, err := h.services.Doctor.UploadProfilePhoto(c.Request.Context(), actor, id, data, filename)
	if err != nil {
		handleError(c, err)
		return
	}

	successResponse(c, http.StatusOK, photoResponse{ProfilePhotoURL: url})
}

// @Summary Удалить фото врача
// @Tags Врачи
// @Param id path int true "ID врача"
// @Success 204 "Фото удалено"
// @Failure 404 {object} errorResponseBody "Фото не загружено"
// @Security ApiKeyAuth
// @Router /doctors/{id}/photo [delete]
func (h *Handler) deleteDoctorPhoto(c *gin.Context) {
	actor, err := getIdentity(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.services.Doctor.DeleteProfilePhoto(c.Request.Context(), actor, id); err != nil {
		handleError(c, err)
		return
	}

	noContentResponse(c)
}

// @Summary Свободное время врача на дату
// @Description Возвращает окна приема врача на дату со свободными метками времени
// @Tags Врачи
// @Produce json
// @Param id path int true "ID врача"
// @Param date query string true "Дата в формате YYYY-MM-DD"
// @Success 200 {object} successResponseBody{data=[]domain.SlotAvailability} "Свободное время"
// @Failure 400 {object} errorResponseBody "Некорректная дата"
// @Failure 404 {object} errorResponseBody "Врач не найден"
// @Router /doctors/{id}/availability [get]
func (h *Handler) getDoctorAvailability(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	date := c.Query("date")
	if date == "" {
		badRequestResponse(c, "не указана дата")
		return
	}

	availability, err := h.services.Slot.Availability(c.Request.Context(), id, date)
	if err != nil {
		handleError(c, err)
		return
	}

	successResponse(c, http.StatusOK, availability)
}

// @Summary Окна приема врача по дням
// @Tags Врачи
// @Produce json
// @Param id path int true "ID врача"
// @Param date_from query string false "Начало периода YYYY-MM-DD"
// @Param date_to query string false "Конец периода YYYY-MM-DD"
// @Success 200 {object} successResponseBody{data=[]domain.SlotDayGroup} "Окна, сгруппированные по дням"
// @Failure 400 {object} errorResponseBody "Некорректный период"
// @Router /doctors/{id}/slots/by-day [get]
func (h *Handler) getDoctorSlotsByDay(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	groups, err := h.services.Slot.GroupByDay(c.Request.Context(), id, queryString(c, "date_from"), queryString(c, "date_to"))
	if err != nil {
		handleError(c, err)
		return
	}

	successResponse(c, http.StatusOK, groups)
}

// @Summary Статистика окон приема врача
// @Tags Врачи
// @Produce json
// @Param id path int true "ID врача"
// @Param date_from query string false "Начало периода YYYY-MM-DD"
// @Param date_to query string false "Конец периода YYYY-MM-DD"
// @Success 200 {object} domain.SlotStats "Статистика"
// @Failure 400 {object} errorResponseBody "Некорректный период"
// @Router /doctors/{id}/slots/stats [get]
func (h *Handler) getDoctorSlotStats(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	stats, err := h.services.Slot.Stats(c.Request.Context(), id, queryString(c, "date_from"), queryString(c, "date_to"))
	if err != nil {
		handleError(c, err)
		return
	}

	successResponse(c, http.StatusOK, stats)
}

// @Summary Отзывы о враче
// @Tags Врачи
// @Produce json
// @Param id path int true "ID врача"
// @Param limit query int false "Лимит" default(20)
// @Param offset query int false "Смещение" default(0)
// @Success 200 {object} paginatedResponse{data=[]domain.Review} "Отзывы"
// @Router /doctors/{id}/reviews [get]
func (h *Handler) getDoctorReviews(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	limit, offset := pageParams(c)
	reviews, total, err := h.services.Review.List(c.Request.Context(), domain.ReviewFilter{
		DoctorID: &id,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		handleError(c, err)
		return
	}

	paginated(c, reviews, total, limit, offset)
}

// readUpload читает файл из поля "file" multipart-формы.
func (h *Handler) readUpload(c *gin.Context) ([]byte, string, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	header, err := c.FormFile("file")
	if err != nil {
		h.logger.Warn("файл не передан", zap.Error(err))
		badRequestResponse(c, "файл не передан или превышает 10 МБ")
		return nil, "", false
	}

	file, err := header.Open()
	if err != nil {
		h.logger.Error("ошибка открытия файла", zap.Error(err))
		errorResponse(c, http.StatusInternalServerError, "ошибка чтения файла")
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("ошибка чтения файла", zap.Error(err))
		errorResponse(c, http.StatusInternalServerError, "ошибка чтения файла")
		return nil, "", false
	}

	return data, header.Filename, true
}

func queryFloat(c *gin.Context, name string) (*float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		badRequestResponse(c, "некорректный параметр "+name)
		return nil, false
	}
	return &v, true
}

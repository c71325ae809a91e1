package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medbook/internal/domain"
)

type unreadCountResponse struct {
	Count int `json:"count"`
}

type markedResponse struct {
	Marked int64 `json:"marked"`
}

// @Summary Мои уведомления
// @Tags Уведомления
// @Produce json
// @Param unread_only query bool false "Только непрочитанные"
// @Param limit query int false "Лимит" default(20)
// @Param offset query int false "Смещение" default(0)
// @Success 200 {object} paginatedResponse{data=[]domain.Notification} "Уведомления"
// @Security ApiKeyAuth
// @Router /notifications [get]
func (h *Handler) getNotifications(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	unreadOnly, ok := queryBool(c, "unread_only")
	if !ok {
		return
	}

	limit, offset := pageParams(c)
	filter := domain.NotificationFilter{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	}
	if unreadOnly != nil {
		filter.UnreadOnly = *unreadOnly
	}

	notifications, total, err := h.services.Notification.List(c.Request.Context(), filter)
	if err != nil {
		handleError(c, err)
		return
	}

	paginated(c, notifications, total, limit, offset)
}

// @Summary Количество непрочитанных уведомлений
// @Tags Уведомления
// @Produce json
// @Success 200 {object} unreadCountResponse "Количество"
// @Security ApiKeyAuth
// @Router /notifications/unread-count [get]
func (h *Handler) getUnreadCount(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	count, err := h.services.Notification.CountUnread(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}

	successResponse(c, http.StatusOK, unreadCountResponse{Count: count})
}

// @Summary Отметить уведомление прочитанным
// @Tags Уведомления
// @Param id path int true "ID уведомления"
// @Success 204 "Отмечено"
// @Failure 404 {object} errorResponseBody "Уведомление не найдено"
// @Security ApiKeyAuth
// @Router /notifications/{id}/read [patch]
func (h *Handler) markNotificationRead(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.services.Notification.MarkRead(c.Request.Context(), userID, id); err != nil {
		handleError(c, err)
		return
	}

	noContentResponse(c)
}

// @Summary Отметить все уведомления прочитанными
// @Tags Уведомления
// @Produce json
// @Success 200 {object} markedResponse "Сколько уведомлений отмечено"
// @Security ApiKeyAuth
// @Router /notifications/read-all [post]
func (h *Handler) markAllNotificationsRead(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		unauthorizedResponse(c)
		return
	}

	marked, err := h.services.Notification.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}

	successResponse(c, http.StatusOK, markedResponse{Marked: marked})
}

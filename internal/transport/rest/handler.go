package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medbook/config"
	"medbook/internal/domain"
	"medbook/internal/service"
	"medbook/internal/transport/websocket"
)

type Handler struct {
	services *service.Services
	logger   *zap.Logger
	config   *config.Config
	hub      *websocket.Hub
}

func NewHandler(services *service.Services, logger *zap.Logger, config *config.Config, hub *websocket.Hub) *Handler {
	return &Handler{
		services: services,
		logger:   logger,
		config:   config,
		hub:      hub,
	}
}

func (h *Handler) InitRoutes(router *gin.Engine) {
	router.Use(h.loggerMiddleware())

	router.Use(h.errorMiddleware())

	router.Use(h.corsMiddleware())

	router.GET("/health", h.health)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.register)
			auth.POST("/login", h.login)
			auth.POST("/refresh", h.refreshTokens)
			auth.POST("/logout", h.logout)
		}

		users := api.Group("/users")
		users.Use(h.authMiddleware())
		{
			users.GET("/me", h.getCurrentUser)
			users.PUT("/me", h.updateCurrentUser)
			users.PUT("/me/password", h.updatePassword)

			admin := users.Group("", h.adminMiddleware())
			{
				admin.GET("", h.getUsers)
				admin.POST("", h.createUser)
				admin.GET("/:id", h.getUserByID)
				admin.PUT("/:id", h.updateUser)
				admin.DELETE("/:id", h.deleteUser)
			}
		}

		h.initDoctorRoutes(api)

		specializations := api.Group("/specializations")
		{
			specializations.GET("", h.getSpecializations)
			specializations.GET("/:id", h.getSpecializationByID)

			admin := specializations.Group("", h.authMiddleware(), h.adminMiddleware())
			{
				admin.POST("", h.createSpecialization)
				admin.PUT("/:id", h.updateSpecialization)
				admin.DELETE("/:id", h.deleteSpecialization)
			}
		}

		slots := api.Group("/slots")
		{
			slots.GET("", h.getSlots)
			slots.GET("/:id", h.getSlotByID)

			auth := slots.Group("", h.authMiddleware())
			{
				auth.POST("", h.roleMiddleware(domain.UserRoleDoctor), h.createSlot)

				owner := auth.Group("", h.roleMiddleware(domain.UserRoleDoctor, domain.UserRoleAdmin))
				{
					owner.PUT("/:id", h.updateSlot)
					owner.DELETE("/:id", h.deleteSlot)
					owner.DELETE("/series/:recurrence_id", h.deleteSlotSeries)
				}
			}
		}

		appointments := api.Group("/appointments")
		appointments.Use(h.authMiddleware())
		{
			appointments.POST("", h.roleMiddleware(domain.UserRolePatient), h.bookAppointment)
			appointments.GET("", h.getAppointments)
			appointments.GET("/:id", h.getAppointmentByID)
			appointments.PATCH("/:id/status", h.updateAppointmentStatus)
			appointments.DELETE("/:id", h.cancelAppointment)
		}

		reviews := api.Group("/reviews")
		{
			reviews.GET("", h.getReviews)
			reviews.GET("/:id", h.getReviewByID)

			auth := reviews.Group("", h.authMiddleware())
			{
				auth.POST("", h.roleMiddleware(domain.UserRolePatient), h.createReview)
				auth.PUT("/:id", h.updateReview)
				auth.DELETE("/:id", h.deleteReview)
				auth.POST("/:id/reply", h.roleMiddleware(domain.UserRoleDoctor, domain.UserRoleAdmin), h.replyReview)
			}
		}

		prescriptions := api.Group("/prescriptions")
		prescriptions.Use(h.authMiddleware())
		{
			prescriptions.GET("", h.getPrescriptions)
			prescriptions.GET("/:id", h.getPrescriptionByID)
			prescriptions.GET("/:id/attachment", h.getPrescriptionAttachment)

			doctor := prescriptions.Group("", h.roleMiddleware(domain.UserRoleDoctor, domain.UserRoleAdmin))
			{
				doctor.POST("", h.createPrescription)
				doctor.PUT("/:id", h.updatePrescription)
				doctor.DELETE("/:id", h.deletePrescription)
				doctor.POST("/:id/attachment", h.uploadPrescriptionAttachment)
			}
		}

		notifications := api.Group("/notifications")
		notifications.Use(h.authMiddleware())
		{
			notifications.GET("", h.getNotifications)
			notifications.GET("/unread-count", h.getUnreadCount)
			notifications.PATCH("/:id/read", h.markNotificationRead)
			notifications.POST("/read-all", h.markAllNotificationsRead)
		}
	}

	if h.hub != nil {
		// авторизация по токену внутри хаба
		router.GET("/ws/notifications", h.hub.HandleWebSocket)
	}
}

func (h *Handler) initDoctorRoutes(api *gin.RouterGroup) {
	doctors := api.Group("/doctors")
	{
		doctors.GET("", h.getDoctors)
		doctors.GET("/:id", h.getDoctorByID)
		doctors.GET("/:id/availability", h.getDoctorAvailability)
		doctors.GET("/:id/slots/by-day", h.getDoctorSlotsByDay)
		doctors.GET("/:id/slots/stats", h.getDoctorSlotStats)
		doctors.GET("/:id/reviews", h.getDoctorReviews)

		auth := doctors.Group("", h.authMiddleware())
		{
			doctorOnly := auth.Group("", h.roleMiddleware(domain.UserRoleDoctor))
			{
				doctorOnly.GET("/me", h.getMyDoctorProfile)
				doctorOnly.POST("", h.createDoctor)
			}

			auth.PUT("/:id", h.updateDoctor)
			auth.DELETE("/:id", h.deleteDoctor)
			auth.POST("/:id/photo", h.uploadDoctorPhoto)
			auth.DELETE("/:id/photo", h.deleteDoctorPhoto)
		}
	}
}

type healthResponse struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

func (h *Handler) health(c *gin.Context) {
	successResponse(c, http.StatusOK, healthResponse{
		Name:        h.config.Name,
		Version:     h.config.Version,
		Environment: h.config.Environment,
	})
}

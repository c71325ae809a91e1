package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"medbook/config"
	"medbook/internal/broker"
	"medbook/internal/cache"
	"medbook/internal/domain"
	"medbook/internal/repository"
	"medbook/internal/storage"
	"medbook/pkg/auth"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Pusher доставляет уведомление подключенным клиентам.
type Pusher interface {
	PushNotification(n domain.Notification)
}

type Deps struct {
	Repos       *repository.Repositories
	Logger      *zap.Logger
	Config      *config.Config
	FileStorage storage.FileStorage
	Tokens      *auth.TokenManager
	Hasher      *auth.Hasher
	Cache       *cache.AvailabilityCache
	Publisher   broker.Publisher
	Pusher      Pusher
}

type Services struct {
	User           UserService
	Auth           AuthService
	Specialization SpecializationService
	Doctor         DoctorService
	Slot           SlotService
	Appointment    AppointmentService
	Review         ReviewService
	Prescription   PrescriptionService
	Notification   NotificationService
}

func NewServices(deps Deps) *Services {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = broker.NopPublisher{}
	}

	notifications := NewNotificationService(deps.Repos.Notification, deps.Pusher, publisher, deps.Logger)
	events := newEventSink(deps.Cache, publisher, deps.Logger)

	return &Services{
		User:           NewUserService(deps.Repos.User, deps.Repos.Auth, deps.Hasher, deps.Logger),
		Auth:           NewAuthService(deps.Repos.Auth, deps.Repos.User, deps.Tokens, deps.Hasher, deps.Config.JWT, deps.Logger),
		Specialization: NewSpecializationService(deps.Repos.Specialization, deps.Logger),
		Doctor:         NewDoctorService(deps.Repos.Doctor, deps.Repos.User, deps.Repos.Specialization, deps.FileStorage, deps.Logger),
		Slot:           NewSlotService(deps.Repos.Slot, deps.Repos.Doctor, deps.Cache, events, deps.Config.Slots, deps.Logger),
		Appointment:    NewAppointmentService(deps.Repos.Appointment, deps.Repos.Slot, deps.Repos.Doctor, notifications, events, deps.Logger),
		Review:         NewReviewService(deps.Repos.Review, deps.Repos.Appointment, deps.Repos.Doctor, notifications, deps.Logger),
		Prescription:   NewPrescriptionService(deps.Repos.Prescription, deps.Repos.Appointment, deps.Repos.Doctor, deps.FileStorage, notifications, deps.Config.S3.PresignExpiry, deps.Logger),
		Notification:   notifications,
	}
}

type UserService interface {
	Create(ctx context.Context, dto domain.CreateUserDTO) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	Update(ctx context.Context, id int64, dto domain.UpdateUserDTO) error
	UpdatePassword(ctx context.Context, id int64, dto domain.PasswordUpdateDTO) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter domain.UserFilter) ([]domain.User, int, error)
}

type AuthService interface {
	Register(ctx context.Context, dto domain.RegisterRequest) (int64, error)
	Login(ctx context.Context, dto domain.LoginRequest, userAgent, ip string) (*domain.Tokens, error)
	RefreshTokens(ctx context.Context, refreshToken, userAgent, ip string) (*domain.Tokens, error)
	Logout(ctx context.Context, refreshToken string) error
	ParseToken(ctx context.Context, token string) (*domain.Identity, error)
}

type SpecializationService interface {
	Create(ctx context.Context, dto domain.CreateSpecializationDTO) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Specialization, error)
	Update(ctx context.Context, id int64, dto domain.UpdateSpecializationDTO) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter domain.SpecializationFilter) ([]domain.Specialization, int, error)
}

type DoctorService interface {
	Create(ctx context.Context, userID int64, dto domain.CreateDoctorDTO) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Doctor, error)
	GetByUserID(ctx context.Context, userID int64) (*domain.Doctor, error)
	Update(ctx context.Context, actor domain.Identity, id int64, dto domain.UpdateDoctorDTO) error
	Delete(ctx context.Context, actor domain.Identity, id int64) error
	List(ctx context.Context, filter domain.DoctorFilter) ([]domain.Doctor, int, error)

	UploadProfilePhoto(ctx context.Context, actor domain.Identity, id int64, photo []byte, filename string) (string, error)
	DeleteProfilePhoto(ctx context.Context, actor domain.Identity, id int64) error
}

type SlotService interface {
	Create(ctx context.Context, actor domain.Identity, dto domain.CreateSlotDTO) ([]domain.AppointmentSlot, error)
	GetByID(ctx context.Context, id int64) (*domain.AppointmentSlot, error)
	List(ctx context.Context, filter domain.SlotFilter) ([]domain.AppointmentSlot, int, error)
	Update(ctx context.Context, actor domain.Identity, id int64, dto domain.UpdateSlotDTO) (*domain.AppointmentSlot, error)
	Delete(ctx context.Context, actor domain.Identity, id int64) error
	DeleteSeries(ctx context.Context, actor domain.Identity, recurrenceID string) (int, error)

	Availability(ctx context.Context, doctorID int64, date string) ([]domain.SlotAvailability, error)
	GroupByDay(ctx context.Context, doctorID int64, dateFrom, dateTo *string) ([]domain.SlotDayGroup, error)
	Stats(ctx context.Context, doctorID int64, dateFrom, dateTo *string) (*domain.SlotStats, error)
}

type AppointmentService interface {
	Book(ctx context.Context, patientID int64, dto domain.BookAppointmentDTO) (*domain.Appointment, error)
	GetByID(ctx context.Context, actor domain.Identity, id int64) (*domain.Appointment, error)
	List(ctx context.Context, actor domain.Identity, filter domain.AppointmentFilter) ([]domain.Appointment, int, error)
	UpdateStatus(ctx context.Context, actor domain.Identity, id int64, status domain.AppointmentStatus) (*domain.Appointment, error)
	Cancel(ctx context.Context, actor domain.Identity, id int64) error
}

type ReviewService interface {
	Create(ctx context.Context, patientID int64, dto domain.CreateReviewDTO) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Review, error)
	Update(ctx context.Context, actor domain.Identity, id int64, dto domain.UpdateReviewDTO) error
	Reply(ctx context.Context, actor domain.Identity, id int64, dto domain.ReplyReviewDTO) error
	Delete(ctx context.Context, actor domain.Identity, id int64) error
	List(ctx context.Context, filter domain.ReviewFilter) ([]domain.Review, int, error)
}

type PrescriptionService interface {
	Create(ctx context.Context, actor domain.Identity, dto domain.CreatePrescriptionDTO) (int64, error)
	GetByID(ctx context.Context, actor domain.Identity, id int64) (*domain.Prescription, error)
	Update(ctx context.Context, actor domain.Identity, id int64, dto domain.UpdatePrescriptionDTO) error
	Delete(ctx context.Context, actor domain.Identity, id int64) error
	List(ctx context.Context, actor domain.Identity, filter domain.PrescriptionFilter) ([]domain.Prescription, int, error)

	UploadAttachment(ctx context.Context, actor domain.Identity, id int64, data []byte, filename string) error
	AttachmentURL(ctx context.Context, actor domain.Identity, id int64) (*domain.AttachmentLink, error)
}

type NotificationService interface {
	Notify(ctx context.Context, dto domain.CreateNotificationDTO)
	List(ctx context.Context, filter domain.NotificationFilter) ([]domain.Notification, int, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID, id int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
}

var errStorageDisabled = errors.New("хранилище файлов не настроено")

// normalizePage приводит limit/offset к допустимым значениям.
func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// repoError переводит ошибку хранилища в ошибку для клиента: ErrNotFound в
// notFound, ErrConflict в conflict (если задан), остальное в fallback.
func repoError(err error, notFound, conflict, fallback string) error {
	var de *domain.Error
	switch {
	case errors.As(err, &de):
		return de
	case errors.Is(err, domain.ErrNotFound) && notFound != "":
		return domain.NotFound(notFound)
	case errors.Is(err, domain.ErrConflict) && conflict != "":
		return domain.Conflict(conflict)
	default:
		return errors.New(fallback)
	}
}

// eventSink сбрасывает локальный кэш доступности и публикует событие для
// остальных экземпляров.
type eventSink struct {
	cache     *cache.AvailabilityCache
	publisher broker.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func newEventSink(c *cache.AvailabilityCache, publisher broker.Publisher, logger *zap.Logger) *eventSink {
	if publisher == nil {
		publisher = broker.NopPublisher{}
	}
	return &eventSink{
		cache:     c,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (e *eventSink) emit(ctx context.Context, event domain.Event) {
	if event.Date == "" {
		e.cache.InvalidateDoctor(event.DoctorID)
	} else {
		e.cache.Invalidate(event.DoctorID, event.Date)
	}

	event.OccurredAt = e.now().UTC()
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Warn("ошибка публикации события", zap.String("type", event.Type), zap.Error(err))
	}
}

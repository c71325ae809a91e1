package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"medbook/internal/domain"
)

type Repositories struct {
	User           UserRepository
	Auth           AuthRepository
	Specialization SpecializationRepository
	Doctor         DoctorRepository
	Slot           SlotRepository
	Appointment    AppointmentRepository
	Review         ReviewRepository
	Prescription   PrescriptionRepository
	Notification   NotificationRepository
}

func NewRepositories(db *pgxpool.Pool) *Repositories {
	return &Repositories{
		User:           NewUserRepository(db),
		Auth:           NewSessionRepository(db),
		Specialization: NewSpecializationRepository(db),
		Doctor:         NewDoctorRepository(db),
		Slot:           NewSlotRepository(db),
		Appointment:    NewAppointmentRepository(db),
		Review:         NewReviewRepository(db),
		Prescription:   NewPrescriptionRepository(db),
		Notification:   NewNotificationRepository(db),
	}
}

type UserRepository interface {
	Create(ctx context.Context, user domain.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Update(ctx context.Context, id int64, dto domain.UpdateUserDTO) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter domain.UserFilter) ([]domain.User, int, error)
}

type AuthRepository interface {
	CreateSession(ctx context.Context, session domain.Session) error
	GetSessionByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error)
	// RotateSession возвращает ErrNotFound, если oldID уже удалена.
	RotateSession(ctx context.Context, oldID string, next domain.Session) error
	DeleteSession(ctx context.Context, id string) error
	DeleteSessionsByUserID(ctx context.Context, userID int64) error
	DeleteExpiredSessions(ctx context.Context, userID int64, now time.Time) (int64, error)
}

type SpecializationRepository interface {
	Create(ctx context.Context, dto domain.CreateSpecializationDTO) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Specialization, error)
	Update(ctx context.Context, id int64, dto domain.UpdateSpecializationDTO) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter domain.SpecializationFilter) ([]domain.Specialization, int, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, userID int64, dto domain.CreateDoctorDTO) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Doctor, error)
	GetByUserID(ctx context.Context, userID int64) (*domain.Doctor, error)
	Update(ctx context.Context, id int64, dto domain.UpdateDoctorDTO) error
	UpdateProfilePhoto(ctx context.Context, id int64, photoURL string) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter domain.DoctorFilter) ([]domain.Doctor, int, error)
}

type SlotRepository interface {
	// Create сохраняет все окна одной транзакцией и возвращает их ID по порядку.
	Create(ctx context.Context, slots []domain.AppointmentSlot) ([]int64, error)
	GetByID(ctx context.Context, id int64) (*domain.AppointmentSlot, error)
	// Update пересобирает booked_slots под новую вместимость и переносит дату записей.
	Update(ctx context.Context, slot domain.AppointmentSlot) error
	Delete(ctx context.Context, id int64) error
	DeleteByRecurrence(ctx context.Context, doctorID int64, recurrenceID string) ([]domain.AppointmentSlot, error)
	// List без Limit возвращает все окна по фильтру.
	List(ctx context.Context, filter domain.SlotFilter) ([]domain.AppointmentSlot, int, error)
	ActiveByLabel(ctx context.Context, slotID int64) (map[string]int, error)
}

// BookingState - состояние слота под блокировкой на момент записи.
type BookingState struct {
	Slot              *domain.AppointmentSlot
	ActiveForLabel    int
	PatientHasBooking bool
}

type BookingCheck func(state BookingState) error

type AppointmentRepository interface {
	// Book блокирует слот, вызывает check и создаёт запись. Метка попадает в
	// booked_slots, когда число активных записей достигает вместимости.
	Book(ctx context.Context, appointment domain.Appointment, check BookingCheck) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Appointment, error)
	// ChangeStatus при отмене освобождает метку, если записей стало меньше вместимости.
	ChangeStatus(ctx context.Context, id int64, status domain.AppointmentStatus) error
	List(ctx context.Context, filter domain.AppointmentFilter) ([]domain.Appointment, int, error)
	CountActiveBySlot(ctx context.Context, slotID int64) (int, error)
}

type ReviewRepository interface {
	Create(ctx context.Context, review domain.Review) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Review, error)
	GetByAppointmentID(ctx context.Context, appointmentID int64) (*domain.Review, error)
	Update(ctx context.Context, id int64, dto domain.UpdateReviewDTO) error
	Reply(ctx context.Context, id int64, text string) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter domain.ReviewFilter) ([]domain.Review, int, error)
}

type PrescriptionRepository interface {
	Create(ctx context.Context, prescription domain.Prescription) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Prescription, error)
	Update(ctx context.Context, id int64, dto domain.UpdatePrescriptionDTO) error
	SetAttachment(ctx context.Context, id int64, key string) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter domain.PrescriptionFilter) ([]domain.Prescription, int, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, dto domain.CreateNotificationDTO) (*domain.Notification, error)
	List(ctx context.Context, filter domain.NotificationFilter) ([]domain.Notification, int, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID, id int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
}

// whereBuilder собирает условия с позиционными параметрами $1, $2, ...
type whereBuilder struct {
	conditions []string
	args       []interface{}
}

func (w *whereBuilder) add(format string, value interface{}) {
	w.args = append(w.args, value)
	w.conditions = append(w.conditions, fmt.Sprintf(format, len(w.args)))
}

func (w *whereBuilder) sql() string {
	if len(w.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conditions, " AND ")
}

// page добавляет LIMIT/OFFSET; при limit <= 0 выборка не ограничивается.
func (w *whereBuilder) page(limit, offset int) (string, []interface{}) {
	if limit <= 0 {
		return "", w.args
	}
	n := len(w.args)
	args := append(append([]interface{}{}, w.args...), limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2), args
}

// setBuilder собирает SET для частичного обновления; $1 занят под id.
type setBuilder struct {
	values []string
	args   []interface{}
}

func newSetBuilder(id int64) *setBuilder {
	return &setBuilder{args: []interface{}{id}}
}

func (s *setBuilder) set(column string, value interface{}) {
	s.args = append(s.args, value)
	s.values = append(s.values, fmt.Sprintf("%s = $%d", column, len(s.args)))
}

func (s *setBuilder) empty() bool {
	return len(s.values) == 0
}

func (s *setBuilder) sql(table string) string {
	return "UPDATE " + table + " SET " + strings.Join(s.values, ", ") + ", updated_at = NOW() WHERE id = $1"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func notFound(entity string, id interface{}) error {
	return fmt.Errorf("%s %v: %w", entity, id, domain.ErrNotFound)
}

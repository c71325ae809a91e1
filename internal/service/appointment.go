package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"medbook/internal/domain"
	"medbook/internal/repository"
	"medbook/pkg/slots"
)

type AppointmentServiceImpl struct {
	repo          repository.AppointmentRepository
	slotRepo      repository.SlotRepository
	doctorRepo    repository.DoctorRepository
	notifications NotificationService
	events        *eventSink
	logger        *zap.Logger
	now           func() time.Time
}

func NewAppointmentService(
	repo repository.AppointmentRepository,
	slotRepo repository.SlotRepository,
	doctorRepo repository.DoctorRepository,
	notifications NotificationService,
	events *eventSink,
	logger *zap.Logger,
) *AppointmentServiceImpl {
	return &AppointmentServiceImpl{
		repo:          repo,
		slotRepo:      slotRepo,
		doctorRepo:    doctorRepo,
		notifications: notifications,
		events:        events,
		logger:        logger,
		now:           time.Now,
	}
}

var (
	errLabelTaken    = domain.Conflict("это время уже занято")
	errAlreadyBooked = domain.Conflict("вы уже записаны на это время")
)

// bookingCheck выполняется под блокировкой слота.
func bookingCheck(label string) repository.BookingCheck {
	return func(state repository.BookingState) error {
		labels, err := state.Slot.Labels()
		if err != nil || !slots.Contains(labels, label) {
			return domain.Validation("выбранное время не входит в окно приема")
		}
		if state.PatientHasBooking {
			return errAlreadyBooked
		}
		if slots.Contains(state.Slot.BookedSlots, label) || state.ActiveForLabel >= state.Slot.Capacity() {
			return errLabelTaken
		}
		return nil
	}
}

func (s *AppointmentServiceImpl) Book(ctx context.Context, patientID int64, dto domain.BookAppointmentDTO) (*domain.Appointment, error) {
	dto.TimeLabel = normalizeClock(dto.TimeLabel)

	slot, err := s.slotRepo.GetByID(ctx, dto.SlotID)
	if err != nil {
		s.logger.Warn("окно для записи не найдено", zap.Int64("slotID", dto.SlotID), zap.Error(err))
		return nil, repoError(err, "окно приема не найдено", "", "ошибка при записи на прием")
	}

	date, err := slots.ParseDate(slot.Date)
	if err != nil {
		s.logger.Error("некорректная дата окна", zap.Int64("slotID", slot.ID), zap.String("date", slot.Date))
		return nil, errors.New("ошибка при записи на прием")
	}
	now := s.now().UTC()
	if date.Before(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)) {
		return nil, domain.Validation("нельзя записаться на прошедшую дату")
	}

	id, err := s.repo.Book(ctx, domain.Appointment{
		PatientID: patientID,
		DoctorID:  slot.DoctorID,
		SlotID:    slot.ID,
		SlotDate:  slot.Date,
		TimeLabel: dto.TimeLabel,
		Status:    domain.AppointmentStatusPending,
		Reason:    strings.TrimSpace(dto.Reason),
	}, bookingCheck(dto.TimeLabel))
	if err != nil {
		s.logger.Warn("ошибка записи на прием",
			zap.Int64("patientID", patientID),
			zap.Int64("slotID", slot.ID),
			zap.String("label", dto.TimeLabel),
			zap.Error(err),
		)
		return nil, repoError(err, "окно приема не найдено", errAlreadyBooked.Error(), "ошибка при записи на прием")
	}

	s.events.emit(ctx, domain.Event{
		Type:          domain.EventAppointmentBooked,
		DoctorID:      slot.DoctorID,
		Date:          slot.Date,
		SlotID:        slot.ID,
		AppointmentID: id,
		UserID:        patientID,
	})

	appointment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("ошибка получения созданной записи", zap.Int64("id", id), zap.Error(err))
		return nil, errors.New("ошибка при записи на прием")
	}

	s.notifyDoctor(ctx, appointment.DoctorID, domain.CreateNotificationDTO{
		Type:     domain.NotificationAppointmentBooked,
		Title:    "Новая запись на прием",
		Message:  fmt.Sprintf("%s записан(а) на %s в %s", appointment.PatientName, appointment.SlotDate, appointment.TimeLabel),
		EntityID: &appointment.ID,
	})

	return appointment, nil
}

func (s *AppointmentServiceImpl) GetByID(ctx context.Context, actor domain.Identity, id int64) (*domain.Appointment, error) {
	appointment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("запись не найдена", zap.Int64("id", id), zap.Error(err))
		return nil, repoError(err, "запись не найдена", "", "ошибка при получении записи")
	}

	if err := s.checkAccess(ctx, actor, appointment); err != nil {
		return nil, err
	}

	return appointment, nil
}

func (s *AppointmentServiceImpl) List(ctx context.Context, actor domain.Identity, filter domain.AppointmentFilter) ([]domain.Appointment, int, error) {
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset)

	if err := validateRange(filter.DateFrom, filter.DateTo); err != nil {
		return nil, 0, err
	}

	switch actor.Role {
	case domain.UserRolePatient:
		filter.PatientID = &actor.UserID
	case domain.UserRoleDoctor:
		doctorID, err := actorDoctorID(ctx, s.doctorRepo, actor)
		if err != nil {
			return nil, 0, err
		}
		filter.DoctorID = &doctorID
	}

	appointments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("ошибка получения списка записей", zap.Error(err))
		return nil, 0, errors.New("ошибка при получении списка записей")
	}

	return appointments, total, nil
}

func (s *AppointmentServiceImpl) UpdateStatus(ctx context.Context, actor domain.Identity, id int64, status domain.AppointmentStatus) (*domain.Appointment, error) {
	appointment, err := s.GetByID(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if actor.Role == domain.UserRolePatient && status != domain.AppointmentStatusCancelled {
		return nil, domain.Forbidden("пациент может только отменить запись")
	}

	if !appointment.Status.CanTransitionTo(status) {
		return nil, domain.Conflict(fmt.Sprintf("нельзя перевести запись из статуса %s в %s", appointment.Status, status))
	}

	if err := s.repo.ChangeStatus(ctx, id, status); err != nil {
		s.logger.Error("ошибка смены статуса записи", zap.Int64("id", id), zap.String("status", string(status)), zap.Error(err))
		return nil, repoError(err, "запись не найдена", "", "ошибка при обновлении статуса записи")
	}

	eventType := domain.EventAppointmentStatus
	notificationType := domain.NotificationAppointmentStatus
	if status == domain.AppointmentStatusCancelled {
		eventType = domain.EventAppointmentCancelled
		notificationType = domain.NotificationAppointmentCancelled
	}

	s.events.emit(ctx, domain.Event{
		Type:          eventType,
		DoctorID:      appointment.DoctorID,
		Date:          appointment.SlotDate,
		SlotID:        appointment.SlotID,
		AppointmentID: id,
		UserID:        actor.UserID,
	})

	notification := domain.CreateNotificationDTO{
		Type:     notificationType,
		Title:    "Статус записи изменен",
		Message:  fmt.Sprintf("Запись на %s в %s: %s", appointment.SlotDate, appointment.TimeLabel, statusText(status)),
		EntityID: &appointment.ID,
	}
	if actor.Role == domain.UserRolePatient {
		s.notifyDoctor(ctx, appointment.DoctorID, notification)
	} else {
		notification.UserID = appointment.PatientID
		s.notifications.Notify(ctx, notification)
	}

	s.logger.Info("статус записи изменен",
		zap.Int64("id", id),
		zap.String("from", string(appointment.Status)),
		zap.String("to", string(status)),
		zap.Int64("actor", actor.UserID),
	)

	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("ошибка получения записи", zap.Int64("id", id), zap.Error(err))
		return nil, errors.New("ошибка при получении записи")
	}

	return updated, nil
}

func (s *AppointmentServiceImpl) Cancel(ctx context.Context, actor domain.Identity, id int64) error {
	_, err := s.UpdateStatus(ctx, actor, id, domain.AppointmentStatusCancelled)
	return err
}

// checkAccess пропускает пациента записи, ее врача и администратора.
func (s *AppointmentServiceImpl) checkAccess(ctx context.Context, actor domain.Identity, appointment *domain.Appointment) error {
	switch actor.Role {
	case domain.UserRoleAdmin:
		return nil
	case domain.UserRolePatient:
		if appointment.PatientID == actor.UserID {
			return nil
		}
	case domain.UserRoleDoctor:
		doctorID, err := actorDoctorID(ctx, s.doctorRepo, actor)
		if err == nil && doctorID == appointment.DoctorID {
			return nil
		}
	}
	return domain.Forbidden("нет доступа к записи")
}

func (s *AppointmentServiceImpl) notifyDoctor(ctx context.Context, doctorID int64, dto domain.CreateNotificationDTO) {
	doctor, err := s.doctorRepo.GetByID(ctx, doctorID)
	if err != nil {
		s.logger.Warn("не удалось найти врача для уведомления", zap.Int64("doctorID", doctorID), zap.Error(err))
		return
	}
	dto.UserID = doctor.UserID
	s.notifications.Notify(ctx, dto)
}

// actorDoctorID возвращает ID профиля врача, от имени которого действует actor.
func actorDoctorID(ctx context.Context, doctorRepo repository.DoctorRepository, actor domain.Identity) (int64, error) {
	if actor.Role != domain.UserRoleDoctor {
		return 0, domain.Forbidden("действие доступно только врачу")
	}

	doctor, err := doctorRepo.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return 0, repoError(err, "профиль врача не найден", "", "ошибка при получении профиля врача")
	}

	return doctor.ID, nil
}

func statusText(status domain.AppointmentStatus) string {
	switch status {
	case domain.AppointmentStatusConfirmed:
		return "подтверждена"
	case domain.AppointmentStatusCompleted:
		return "завершена"
	case domain.AppointmentStatusCancelled:
		return "отменена"
	default:
		return "ожидает подтверждения"
	}
}

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
	"medbook/internal/storage"
)

type PrescriptionServiceImpl struct {
	repo            repository.PrescriptionRepository
	appointmentRepo repository.AppointmentRepository
	doctorRepo      repository.DoctorRepository
	fileStorage     storage.FileStorage
	notifications   NotificationService
	linkExpiry      time.Duration
	logger          *zap.Logger
	now             func() time.Time
}

func NewPrescriptionService(
	repo repository.PrescriptionRepository,
	appointmentRepo repository.AppointmentRepository,
	doctorRepo repository.DoctorRepository,
	fileStorage storage.FileStorage,
	notifications NotificationService,
	linkExpiry time.Duration,
	logger *zap.Logger,
) *PrescriptionServiceImpl {
	return &PrescriptionServiceImpl{
		repo:            repo,
		appointmentRepo: appointmentRepo,
		doctorRepo:      doctorRepo,
		fileStorage:     fileStorage,
		notifications:   notifications,
		linkExpiry:      linkExpiry,
		logger:          logger,
		now:             time.Now,
	}
}

func (s *PrescriptionServiceImpl) Create(ctx context.Context, actor domain.Identity, dto domain.CreatePrescriptionDTO) (int64, error) {
	doctorID, err := actorDoctorID(ctx, s.doctorRepo, actor)
	if err != nil {
		return 0, err
	}

	appointment, err := s.appointmentRepo.GetByID(ctx, dto.AppointmentID)
	if err != nil {
		s.logger.Warn("запись для назначения не найдена", zap.Int64("appointmentID", dto.AppointmentID), zap.Error(err))
		return 0, repoError(err, "запись не найдена", "", "ошибка при создании назначения")
	}

	if appointment.DoctorID != doctorID {
		return 0, domain.Forbidden("назначение можно выписать только по своей записи")
	}
	if appointment.Status == domain.AppointmentStatusCancelled || appointment.Status == domain.AppointmentStatusPending {
		return 0, domain.Validation("назначение можно выписать только по подтвержденной или завершенной записи")
	}

	dto.Diagnosis = strings.TrimSpace(dto.Diagnosis)
	if dto.Diagnosis == "" {
		return 0, domain.Validation("диагноз не может быть пустым")
	}
	medications, err := normalizeMedications(dto.Medications)
	if err != nil {
		return 0, err
	}

	id, err := s.repo.Create(ctx, domain.Prescription{
		AppointmentID: appointment.ID,
		DoctorID:      doctorID,
		PatientID:     appointment.PatientID,
		Diagnosis:     dto.Diagnosis,
		Notes:         strings.TrimSpace(dto.Notes),
		Medications:   medications,
	})
	if err != nil {
		s.logger.Error("ошибка создания назначения", zap.Int64("appointmentID", appointment.ID), zap.Error(err))
		return 0, repoError(err, "", "назначение по этой записи уже существует", "ошибка при создании назначения")
	}

	s.notifications.Notify(ctx, domain.CreateNotificationDTO{
		UserID:   appointment.PatientID,
		Type:     domain.NotificationPrescriptionIssued,
		Title:    "Новое назначение",
		Message:  fmt.Sprintf("Врач выписал назначение по приему %s", appointment.SlotDate),
		EntityID: &id,
	})

	return id, nil
}

func (s *PrescriptionServiceImpl) GetByID(ctx context.Context, actor domain.Identity, id int64) (*domain.Prescription, error) {
	prescription, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("назначение не найдено", zap.Int64("id", id), zap.Error(err))
		return nil, repoError(err, "назначение не найдено", "", "ошибка при получении назначения")
	}

	switch actor.Role {
	case domain.UserRoleAdmin:
		return prescription, nil
	case domain.UserRolePatient:
		if prescription.PatientID == actor.UserID {
			return prescription, nil
		}
	case domain.UserRoleDoctor:
		doctorID, err := actorDoctorID(ctx, s.doctorRepo, actor)
		if err == nil && doctorID == prescription.DoctorID {
			return prescription, nil
		}
	}

	return nil, domain.Forbidden("нет доступа к назначению")
}

func (s *PrescriptionServiceImpl) Update(ctx context.Context, actor domain.Identity, id int64, dto domain.UpdatePrescriptionDTO) error {
	if _, err := s.editable(ctx, actor, id); err != nil {
		return err
	}

	if dto.Diagnosis != nil {
		diagnosis := strings.TrimSpace(*dto.Diagnosis)
		if diagnosis == "" {
			return domain.Validation("диагноз не может быть пустым")
		}
		dto.Diagnosis = &diagnosis
	}
	if dto.Notes != nil {
		notes := strings.TrimSpace(*dto.Notes)
		dto.Notes = &notes
	}
	if dto.Medications != nil {
		medications, err := normalizeMedications(*dto.Medications)
		if err != nil {
			return err
		}
		dto.Medications = &medications
	}

	if err := s.repo.Update(ctx, id, dto); err != nil {
		s.logger.Error("ошибка обновления назначения", zap.Int64("id", id), zap.Error(err))
		return repoError(err, "назначение не найдено", "", "ошибка при обновлении назначения")
	}

	return nil
}

func (s *PrescriptionServiceImpl) Delete(ctx context.Context, actor domain.Identity, id int64) error {
	prescription, err := s.editable(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("ошибка удаления назначения", zap.Int64("id", id), zap.Error(err))
		return repoError(err, "назначение не найдено", "", "ошибка при удалении назначения")
	}

	if prescription.AttachmentKey != "" && s.fileStorage != nil {
		if err := s.fileStorage.DeleteFile(ctx, prescription.AttachmentKey); err != nil {
			s.logger.Warn("не удалось удалить вложение назначения", zap.Int64("id", id), zap.Error(err))
		}
	}

	return nil
}

func (s *PrescriptionServiceImpl) List(ctx context.Context, actor domain.Identity, filter domain.PrescriptionFilter) ([]domain.Prescription, int, error) {
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset)

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

	prescriptions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("ошибка получения списка назначений", zap.Error(err))
		return nil, 0, errors.New("ошибка при получении списка назначений")
	}

	return prescriptions, total, nil
}

func (s *PrescriptionServiceImpl) UploadAttachment(ctx context.Context, actor domain.Identity, id int64, data []byte, filename string) error {
	prescription, err := s.editable(ctx, actor, id)
	if err != nil {
		return err
	}

	if s.fileStorage == nil {
		return errStorageDisabled
	}

	key, err := s.fileStorage.UploadFile(ctx, storage.FolderPrescriptions, data, filename, storage.DocumentTypes)
	if err != nil {
		s.logger.Error("ошибка загрузки вложения", zap.Int64("id", id), zap.Error(err))
		if errors.Is(err, storage.ErrEmptyFile) || errors.Is(err, storage.ErrUnsupportedType) {
			return domain.Validation("допустимы только PDF или изображения")
		}
		return errors.New("ошибка при загрузке вложения")
	}

	if err := s.repo.SetAttachment(ctx, id, key); err != nil {
		s.logger.Error("ошибка сохранения вложения", zap.Int64("id", id), zap.Error(err))
		if delErr := s.fileStorage.DeleteFile(ctx, key); delErr != nil {
			s.logger.Warn("не удалось удалить загруженное вложение", zap.String("key", key), zap.Error(delErr))
		}
		return errors.New("ошибка при загрузке вложения")
	}

	if prescription.AttachmentKey != "" {
		if err := s.fileStorage.DeleteFile(ctx, prescription.AttachmentKey); err != nil {
			s.logger.Warn("не удалось удалить старое вложение", zap.Int64("id", id), zap.Error(err))
		}
	}

	return nil
}

func (s *PrescriptionServiceImpl) AttachmentURL(ctx context.Context, actor domain.Identity, id int64) (*domain.AttachmentLink, error) {
	prescription, err := s.GetByID(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if prescription.AttachmentKey == "" {
		return nil, domain.NotFound("у назначения нет вложения")
	}

	if s.fileStorage == nil {
		return nil, errStorageDisabled
	}

	url, err := s.fileStorage.GetPresignedURL(ctx, prescription.AttachmentKey, s.linkExpiry)
	if err != nil {
		s.logger.Error("ошибка создания ссылки на вложение", zap.Int64("id", id), zap.Error(err))
		return nil, errors.New("ошибка при получении вложения")
	}

	return &domain.AttachmentLink{
		URL:       url,
		ExpiresAt: s.now().Add(s.linkExpiry).UTC(),
	}, nil
}

// editable возвращает назначение, если его может менять actor: выписавший врач
// или администратор.
func (s *PrescriptionServiceImpl) editable(ctx context.Context, actor domain.Identity, id int64) (*domain.Prescription, error) {
	prescription, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("назначение не найдено", zap.Int64("id", id), zap.Error(err))
		return nil, repoError(err, "назначение не найдено", "", "ошибка при получении назначения")
	}

	if actor.IsAdmin() {
		return prescription, nil
	}

	doctorID, err := actorDoctorID(ctx, s.doctorRepo, actor)
	if err != nil || doctorID != prescription.DoctorID {
		return nil, domain.Forbidden("нет прав на изменение назначения")
	}

	return prescription, nil
}

func normalizeMedications(list []domain.Medication) ([]domain.Medication, error) {
	result := make([]domain.Medication, 0, len(list))
	for i, m := range list {
		m.Name = strings.TrimSpace(m.Name)
		m.Dosage = strings.TrimSpace(m.Dosage)
		m.Frequency = strings.TrimSpace(m.Frequency)
		if m.Name == "" || m.Dosage == "" || m.Frequency == "" {
			return nil, domain.Validation(fmt.Sprintf("препарат %d: укажите название, дозировку и частоту приема", i+1))
		}
		if m.DurationDays < 0 || m.DurationDays > 365 {
			return nil, domain.Validation(fmt.Sprintf("препарат %d: длительность от 0 до 365 дней", i+1))
		}
		result = append(result, m)
	}
	return result, nil
}

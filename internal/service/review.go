package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"medbook/internal/domain"
	"medbook/internal/repository"
)

type ReviewServiceImpl struct {
	repo            repository.ReviewRepository
	appointmentRepo repository.AppointmentRepository
	doctorRepo      repository.DoctorRepository
	notifications   NotificationService
	logger          *zap.Logger
}

func NewReviewService(
	repo repository.ReviewRepository,
	appointmentRepo repository.AppointmentRepository,
	doctorRepo repository.DoctorRepository,
	notifications NotificationService,
	logger *zap.Logger,
) *ReviewServiceImpl {
	return &ReviewServiceImpl{
		repo:            repo,
		appointmentRepo: appointmentRepo,
		doctorRepo:      doctorRepo,
		notifications:   notifications,
		logger:          logger,
	}
}

func (s *ReviewServiceImpl) Create(ctx context.Context, patientID int64, dto domain.CreateReviewDTO) (int64, error) {
	if dto.Rating < 1 || dto.Rating > 5 {
		return 0, domain.Validation("оценка должна быть от 1 до 5")
	}

	appointment, err := s.appointmentRepo.GetByID(ctx, dto.AppointmentID)
	if err != nil {
		s.logger.Warn("запись для отзыва не найдена", zap.Int64("appointmentID", dto.AppointmentID), zap.Error(err))
		return 0, repoError(err, "запись не найдена", "", "ошибка при создании отзыва")
	}

	if appointment.PatientID != patientID {
		return 0, domain.Forbidden("оставить отзыв может только пациент этой записи")
	}

	if appointment.Status != domain.AppointmentStatusCompleted {
		return 0, domain.Validation("отзыв можно оставить только после завершенного приема")
	}

	_, err = s.repo.GetByAppointmentID(ctx, appointment.ID)
	if err == nil {
		return 0, domain.Conflict("отзыв на этот прием уже оставлен")
	}
	if !errors.Is(err, domain.ErrNotFound) {
		s.logger.Error("ошибка проверки отзыва", zap.Int64("appointmentID", appointment.ID), zap.Error(err))
		return 0, errors.New("ошибка при создании отзыва")
	}

	id, err := s.repo.Create(ctx, domain.Review{
		PatientID:     patientID,
		DoctorID:      appointment.DoctorID,
		AppointmentID: appointment.ID,
		Rating:        dto.Rating,
		Comment:       strings.TrimSpace(dto.Comment),
	})
	if err != nil {
		s.logger.Error("ошибка создания отзыва", zap.Int64("appointmentID", appointment.ID), zap.Error(err))
		return 0, repoError(err, "", "отзыв на этот прием уже оставлен", "ошибка при создании отзыва")
	}

	doctor, err := s.doctorRepo.GetByID(ctx, appointment.DoctorID)
	if err != nil {
		s.logger.Warn("не удалось найти врача для уведомления", zap.Int64("doctorID", appointment.DoctorID), zap.Error(err))
	} else {
		s.notifications.Notify(ctx, domain.CreateNotificationDTO{
			UserID:   doctor.UserID,
			Type:     domain.NotificationReviewReceived,
			Title:    "Новый отзыв",
			Message:  fmt.Sprintf("Пациент оценил прием %s на %d из 5", appointment.SlotDate, dto.Rating),
			EntityID: &id,
		})
	}

	return id, nil
}

func (s *ReviewServiceImpl) GetByID(ctx context.Context, id int64) (*domain.Review, error) {
	review, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("отзыв не найден", zap.Int64("id", id), zap.Error(err))
		return nil, repoError(err, "отзыв не найден", "", "ошибка при получении отзыва")
	}

	return review, nil
}

func (s *ReviewServiceImpl) Update(ctx context.Context, actor domain.Identity, id int64, dto domain.UpdateReviewDTO) error {
	review, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !actor.IsAdmin() && review.PatientID != actor.UserID {
		return domain.Forbidden("нет прав на изменение отзыва")
	}

	if dto.Rating != nil && (*dto.Rating < 1 || *dto.Rating > 5) {
		return domain.Validation("оценка должна быть от 1 до 5")
	}
	if dto.Comment != nil {
		comment := strings.TrimSpace(*dto.Comment)
		dto.Comment = &comment
	}
	if dto.Rating == nil && dto.Comment == nil {
		return nil
	}

	if err := s.repo.Update(ctx, id, dto); err != nil {
		s.logger.Error("ошибка обновления отзыва", zap.Int64("id", id), zap.Error(err))
		return repoError(err, "отзыв не найден", "", "ошибка при обновлении отзыва")
	}

	return nil
}

func (s *ReviewServiceImpl) Reply(ctx context.Context, actor domain.Identity, id int64, dto domain.ReplyReviewDTO) error {
	review, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !actor.IsAdmin() {
		doctorID, err := actorDoctorID(ctx, s.doctorRepo, actor)
		if err != nil || doctorID != review.DoctorID {
			return domain.Forbidden("ответить на отзыв может только врач, которому он оставлен")
		}
	}

	text := strings.TrimSpace(dto.Text)
	if text == "" {
		return domain.Validation("ответ не может быть пустым")
	}

	if err := s.repo.Reply(ctx, id, text); err != nil {
		s.logger.Error("ошибка ответа на отзыв", zap.Int64("id", id), zap.Error(err))
		return repoError(err, "отзыв не найден", "", "ошибка при ответе на отзыв")
	}

	return nil
}

func (s *ReviewServiceImpl) Delete(ctx context.Context, actor domain.Identity, id int64) error {
	review, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !actor.IsAdmin() && review.PatientID != actor.UserID {
		return domain.Forbidden("нет прав на удаление отзыва")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("ошибка удаления отзыва", zap.Int64("id", id), zap.Error(err))
		return repoError(err, "отзыв не найден", "", "ошибка при удалении отзыва")
	}

	return nil
}

func (s *ReviewServiceImpl) List(ctx context.Context, filter domain.ReviewFilter) ([]domain.Review, int, error) {
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset)

	if filter.MinRating != nil && (*filter.MinRating < 1 || *filter.MinRating > 5) {
		return nil, 0, domain.Validation("min_rating должен быть от 1 до 5")
	}

	reviews, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("ошибка получения списка отзывов", zap.Error(err))
		return nil, 0, errors.New("ошибка при получении списка отзывов")
	}

	return reviews, total, nil
}

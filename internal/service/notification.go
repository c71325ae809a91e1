package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"medbook/internal/broker"
	"medbook/internal/domain"
	"medbook/internal/repository"
)

type NotificationServiceImpl struct {
	repo      repository.NotificationRepository
	pusher    Pusher
	publisher broker.Publisher
	logger    *zap.Logger
}

func NewNotificationService(repo repository.NotificationRepository, pusher Pusher, publisher broker.Publisher, logger *zap.Logger) *NotificationServiceImpl {
	if publisher == nil {
		publisher = broker.NopPublisher{}
	}
	return &NotificationServiceImpl{
		repo:      repo,
		pusher:    pusher,
		publisher: publisher,
		logger:    logger,
	}
}

// Notify сохраняет уведомление и доставляет его подключенным клиентам.
// Ошибки только логируются: уведомление не должно срывать основную операцию.
func (s *NotificationServiceImpl) Notify(ctx context.Context, dto domain.CreateNotificationDTO) {
	if dto.UserID <= 0 {
		return
	}

	n, err := s.repo.Create(ctx, dto)
	if err != nil {
		s.logger.Error("ошибка создания уведомления",
			zap.Int64("userID", dto.UserID),
			zap.String("type", string(dto.Type)),
			zap.Error(err),
		)
		return
	}

	if s.pusher != nil {
		s.pusher.PushNotification(*n)
	}

	event := domain.Event{
		Type:       domain.EventNotificationCreated,
		UserID:     n.UserID,
		OccurredAt: n.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("ошибка публикации уведомления", zap.Int64("id", n.ID), zap.Error(err))
	}
}

func (s *NotificationServiceImpl) List(ctx context.Context, filter domain.NotificationFilter) ([]domain.Notification, int, error) {
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset)

	notifications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("ошибка получения уведомлений", zap.Int64("userID", filter.UserID), zap.Error(err))
		return nil, 0, errors.New("ошибка при получении уведомлений")
	}

	return notifications, total, nil
}

func (s *NotificationServiceImpl) CountUnread(ctx context.Context, userID int64) (int, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		s.logger.Error("ошибка подсчета непрочитанных уведомлений", zap.Int64("userID", userID), zap.Error(err))
		return 0, errors.New("ошибка при получении количества уведомлений")
	}

	return count, nil
}

func (s *NotificationServiceImpl) MarkRead(ctx context.Context, userID, id int64) error {
	err := s.repo.MarkRead(ctx, userID, id)
	if err != nil {
		s.logger.Warn("ошибка отметки уведомления", zap.Int64("userID", userID), zap.Int64("id", id), zap.Error(err))
		return repoError(err, "уведомление не найдено", "", "ошибка при обновлении уведомления")
	}

	return nil
}

func (s *NotificationServiceImpl) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	count, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		s.logger.Error("ошибка отметки всех уведомлений", zap.Int64("userID", userID), zap.Error(err))
		return 0, errors.New("ошибка при обновлении уведомлений")
	}

	return count, nil
}

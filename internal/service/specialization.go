package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"medbook/internal/domain"
	"medbook/internal/repository"
)

type SpecializationServiceImpl struct {
	repo   repository.SpecializationRepository
	logger *zap.Logger
}

func NewSpecializationService(repo repository.SpecializationRepository, logger *zap.Logger) *SpecializationServiceImpl {
	return &SpecializationServiceImpl{
		repo:   repo,
		logger: logger,
	}
}

func (s *SpecializationServiceImpl) Create(ctx context.Context, dto domain.CreateSpecializationDTO) (int64, error) {
	dto.Name = strings.TrimSpace(dto.Name)
	if dto.Name == "" {
		return 0, domain.Validation("название специализации не может быть пустым")
	}

	id, err := s.repo.Create(ctx, dto)
	if err != nil {
		s.logger.Error("ошибка создания специализации", zap.String("name", dto.Name), zap.Error(err))
		return 0, repoError(err, "", "специализация с таким названием уже существует", "ошибка при создании специализации")
	}

	return id, nil
}

func (s *SpecializationServiceImpl) GetByID(ctx context.Context, id int64) (*domain.Specialization, error) {
	specialization, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("ошибка получения специализации", zap.Int64("id", id), zap.Error(err))
		return nil, repoError(err, "специализация не найдена", "", "ошибка при получении специализации")
	}

	return specialization, nil
}

func (s *SpecializationServiceImpl) Update(ctx context.Context, id int64, dto domain.UpdateSpecializationDTO) error {
	if dto.Name != nil {
		name := strings.TrimSpace(*dto.Name)
		if name == "" {
			return domain.Validation("название специализации не может быть пустым")
		}
		dto.Name = &name
	}

	err := s.repo.Update(ctx, id, dto)
	if err != nil {
		s.logger.Error("ошибка обновления специализации", zap.Int64("id", id), zap.Error(err))
		return repoError(err, "специализация не найдена", "специализация с таким названием уже существует", "ошибка при обновлении специализации")
	}

	return nil
}

func (s *SpecializationServiceImpl) Delete(ctx context.Context, id int64) error {
	err := s.repo.Delete(ctx, id)
	if err != nil {
		s.logger.Error("ошибка удаления специализации", zap.Int64("id", id), zap.Error(err))
		return repoError(err, "специализация не найдена", "", "ошибка при удалении специализации")
	}

	return nil
}

func (s *SpecializationServiceImpl) List(ctx context.Context, filter domain.SpecializationFilter) ([]domain.Specialization, int, error) {
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset)

	specializations, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("ошибка получения списка специализаций", zap.Error(err))
		return nil, 0, errors.New("ошибка при получении списка специализаций")
	}

	return specializations, total, nil
}

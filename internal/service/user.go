package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"medbook/internal/domain"
	"medbook/internal/repository"
	"medbook/pkg/auth"
	"medbook/pkg/validator"
)

type UserServiceImpl struct {
	repo     repository.UserRepository
	sessions repository.AuthRepository
	hasher   *auth.Hasher
	logger   *zap.Logger
}

func NewUserService(repo repository.UserRepository, sessions repository.AuthRepository, hasher *auth.Hasher, logger *zap.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		repo:     repo,
		sessions: sessions,
		hasher:   hasher,
		logger:   logger,
	}
}

// createUser нормализует и проверяет данные, хеширует пароль и сохраняет
// пользователя. Общий путь для регистрации и создания администратором.
func createUser(ctx context.Context, repo repository.UserRepository, hasher *auth.Hasher, logger *zap.Logger, dto domain.CreateUserDTO) (int64, error) {
	dto.FirstName = validator.FormatName(validator.SanitizeString(dto.FirstName))
	dto.LastName = validator.FormatName(validator.SanitizeString(dto.LastName))
	dto.MiddleName = validator.FormatName(validator.SanitizeString(dto.MiddleName))
	dto.Email = strings.ToLower(strings.TrimSpace(dto.Email))
	dto.Phone = validator.FormatPhone(dto.Phone)

	if !validator.ValidateNamePart(dto.FirstName) || !validator.ValidateNamePart(dto.LastName) {
		return 0, domain.Validation("имя и фамилия должны содержать только буквы")
	}
	if dto.MiddleName != "" && !validator.ValidateNamePart(dto.MiddleName) {
		return 0, domain.Validation("отчество должно содержать только буквы")
	}
	if !validator.ValidateEmail(dto.Email) {
		return 0, domain.Validation("некорректный email")
	}
	if !validator.ValidatePhone(dto.Phone) {
		return 0, domain.Validation("некорректный номер телефона")
	}
	if !validator.ValidatePassword(dto.Password) {
		return 0, domain.Validation("пароль должен быть не короче 6 символов, содержать буквы и цифры и не содержать пробелов")
	}
	if !dto.Role.IsValid() {
		return 0, domain.Validation("некорректная роль пользователя")
	}

	existingUser, err := repo.GetByEmail(ctx, dto.Email)
	if err == nil && existingUser != nil {
		return 0, domain.Conflict("пользователь с таким email уже существует")
	}

	existingUser, err = repo.GetByPhone(ctx, dto.Phone)
	if err == nil && existingUser != nil {
		return 0, domain.Conflict("пользователь с таким телефоном уже существует")
	}

	hash, err := hasher.Hash(dto.Password)
	if err != nil {
		logger.Error("ошибка при хешировании пароля", zap.Error(err))
		return 0, errors.New("ошибка при создании пользователя")
	}

	id, err := repo.Create(ctx, domain.User{
		FirstName:    dto.FirstName,
		LastName:     dto.LastName,
		MiddleName:   dto.MiddleName,
		Email:        dto.Email,
		Phone:        dto.Phone,
		PasswordHash: hash,
		Role:         dto.Role,
		IsActive:     true,
	})
	if err != nil {
		logger.Error("ошибка создания пользователя", zap.Error(err))
		return 0, repoError(err, "", "пользователь с таким email или телефоном уже существует", "ошибка при создании пользователя")
	}

	return id, nil
}

func (s *UserServiceImpl) Create(ctx context.Context, dto domain.CreateUserDTO) (int64, error) {
	return createUser(ctx, s.repo, s.hasher, s.logger, dto)
}

func (s *UserServiceImpl) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("ошибка получения пользователя по ID", zap.Int64("id", id), zap.Error(err))
		return nil, repoError(err, "пользователь не найден", "", "ошибка при получении пользователя")
	}

	return user, nil
}

func (s *UserServiceImpl) Update(ctx context.Context, id int64, dto domain.UpdateUserDTO) error {
	_, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("пользователь для обновления не найден", zap.Int64("id", id), zap.Error(err))
		return repoError(err, "пользователь не найден", "", "ошибка при обновлении пользователя")
	}

	if dto.FirstName != nil {
		name := validator.FormatName(validator.SanitizeString(*dto.FirstName))
		if !validator.ValidateNamePart(name) {
			return domain.Validation("имя должно содержать только буквы")
		}
		dto.FirstName = &name
	}
	if dto.LastName != nil {
		name := validator.FormatName(validator.SanitizeString(*dto.LastName))
		if !validator.ValidateNamePart(name) {
			return domain.Validation("фамилия должна содержать только буквы")
		}
		dto.LastName = &name
	}
	if dto.MiddleName != nil {
		name := validator.FormatName(validator.SanitizeString(*dto.MiddleName))
		if name != "" && !validator.ValidateNamePart(name) {
			return domain.Validation("отчество должно содержать только буквы")
		}
		dto.MiddleName = &name
	}

	if dto.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*dto.Email))
		if !validator.ValidateEmail(email) {
			return domain.Validation("некорректный email")
		}
		existingUser, err := s.repo.GetByEmail(ctx, email)
		if err == nil && existingUser != nil && existingUser.ID != id {
			return domain.Conflict("пользователь с таким email уже существует")
		}
		dto.Email = &email
	}

	if dto.Phone != nil {
		phone := validator.FormatPhone(*dto.Phone)
		if !validator.ValidatePhone(phone) {
			return domain.Validation("некорректный номер телефона")
		}
		existingUser, err := s.repo.GetByPhone(ctx, phone)
		if err == nil && existingUser != nil && existingUser.ID != id {
			return domain.Conflict("пользователь с таким телефоном уже существует")
		}
		dto.Phone = &phone
	}

	err = s.repo.Update(ctx, id, dto)
	if err != nil {
		s.logger.Error("ошибка обновления пользователя", zap.Int64("id", id), zap.Error(err))
		return repoError(err, "пользователь не найден", "пользователь с такими данными уже существует", "ошибка при обновлении пользователя")
	}

	return nil
}

func (s *UserServiceImpl) UpdatePassword(ctx context.Context, id int64, dto domain.PasswordUpdateDTO) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("пользователь для обновления пароля не найден", zap.Int64("id", id), zap.Error(err))
		return repoError(err, "пользователь не найден", "", "ошибка при обновлении пароля")
	}

	ok, err := s.hasher.Verify(dto.OldPassword, user.PasswordHash)
	if err != nil {
		s.logger.Error("ошибка проверки пароля", zap.Int64("id", id), zap.Error(err))
		return errors.New("ошибка при обновлении пароля")
	}
	if !ok {
		return domain.Validation("неверный текущий пароль")
	}

	if !validator.ValidatePassword(dto.NewPassword) {
		return domain.Validation("пароль должен быть не короче 6 символов, содержать буквы и цифры и не содержать пробелов")
	}

	hash, err := s.hasher.Hash(dto.NewPassword)
	if err != nil {
		s.logger.Error("ошибка при хешировании нового пароля", zap.Error(err))
		return errors.New("ошибка при обновлении пароля")
	}

	err = s.repo.UpdatePassword(ctx, id, hash)
	if err != nil {
		s.logger.Error("ошибка обновления пароля", zap.Int64("id", id), zap.Error(err))
		return errors.New("ошибка при обновлении пароля")
	}

	s.revokeSessions(ctx, id)

	return nil
}

func (s *UserServiceImpl) Delete(ctx context.Context, id int64) error {
	err := s.repo.Delete(ctx, id)
	if err != nil {
		s.logger.Error("ошибка удаления пользователя", zap.Int64("id", id), zap.Error(err))
		return repoError(err, "пользователь не найден", "", "ошибка при удалении пользователя")
	}

	s.revokeSessions(ctx, id)

	return nil
}

// revokeSessions завершает все сессии пользователя: старые refresh token
// перестают действовать.
func (s *UserServiceImpl) revokeSessions(ctx context.Context, userID int64) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.DeleteSessionsByUserID(ctx, userID); err != nil {
		s.logger.Warn("ошибка завершения сессий пользователя", zap.Int64("id", userID), zap.Error(err))
	}
}

func (s *UserServiceImpl) List(ctx context.Context, filter domain.UserFilter) ([]domain.User, int, error) {
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset)

	if filter.Role != nil && !filter.Role.IsValid() {
		return nil, 0, domain.Validation("некорректная роль пользователя")
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("ошибка получения списка пользователей", zap.Error(err))
		return nil, 0, errors.New("ошибка при получении списка пользователей")
	}

	return users, total, nil
}

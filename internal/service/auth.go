package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"medbook/config"
	"medbook/internal/domain"
	"medbook/internal/repository"
	"medbook/pkg/auth"
	"medbook/pkg/validator"
)

type AuthServiceImpl struct {
	authRepo  repository.AuthRepository
	userRepo  repository.UserRepository
	tokens    *auth.TokenManager
	hasher    *auth.Hasher
	jwtConfig config.JWTConfig
	logger    *zap.Logger
	now       func() time.Time
}

func NewAuthService(
	authRepo repository.AuthRepository,
	userRepo repository.UserRepository,
	tokens *auth.TokenManager,
	hasher *auth.Hasher,
	jwtConfig config.JWTConfig,
	logger *zap.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		authRepo:  authRepo,
		userRepo:  userRepo,
		tokens:    tokens,
		hasher:    hasher,
		jwtConfig: jwtConfig,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *AuthServiceImpl) Register(ctx context.Context, dto domain.RegisterRequest) (int64, error) {
	if dto.Role == domain.UserRoleAdmin {
		return 0, domain.Forbidden("регистрация администратора запрещена")
	}

	return createUser(ctx, s.userRepo, s.hasher, s.logger, domain.CreateUserDTO{
		FirstName:  dto.FirstName,
		LastName:   dto.LastName,
		MiddleName: dto.MiddleName,
		Email:      dto.Email,
		Phone:      dto.Phone,
		Password:   dto.Password,
		Role:       dto.Role,
	})
}

func (s *AuthServiceImpl) findByLogin(ctx context.Context, login string) (*domain.User, error) {
	login = strings.TrimSpace(login)
	if strings.Contains(login, "@") {
		return s.userRepo.GetByEmail(ctx, strings.ToLower(login))
	}
	return s.userRepo.GetByPhone(ctx, validator.FormatPhone(login))
}

func (s *AuthServiceImpl) Login(ctx context.Context, dto domain.LoginRequest, userAgent, ip string) (*domain.Tokens, error) {
	user, err := s.findByLogin(ctx, dto.Login)
	if err != nil {
		s.logger.Warn("пользователь не найден", zap.String("login", dto.Login), zap.Error(err))
		return nil, domain.Unauthorized("неверный логин или пароль")
	}

	ok, err := s.hasher.Verify(dto.Password, user.PasswordHash)
	if err != nil || !ok {
		s.logger.Warn("неверный пароль", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil, domain.Unauthorized("неверный логин или пароль")
	}

	if !user.IsActive {
		return nil, domain.Forbidden("аккаунт деактивирован")
	}

	tokens, session, err := s.newSession(user, userAgent, ip)
	if err != nil {
		s.logger.Error("ошибка выпуска токенов", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil, errors.New("ошибка при аутентификации")
	}

	if err := s.authRepo.CreateSession(ctx, session); err != nil {
		s.logger.Error("ошибка создания сессии", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil, errors.New("ошибка при аутентификации")
	}

	if n, err := s.authRepo.DeleteExpiredSessions(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn("ошибка очистки истекших сессий", zap.Int64("user_id", user.ID), zap.Error(err))
	} else if n > 0 {
		s.logger.Debug("удалены истекшие сессии", zap.Int64("user_id", user.ID), zap.Int64("count", n))
	}

	return tokens, nil
}

func (s *AuthServiceImpl) RefreshTokens(ctx context.Context, refreshToken, userAgent, ip string) (*domain.Tokens, error) {
	session, err := s.authRepo.GetSessionByRefreshToken(ctx, refreshToken)
	if err != nil {
		s.logger.Warn("ошибка получения сессии", zap.Error(err))
		return nil, domain.Unauthorized("недействительный refresh token")
	}

	if session.ExpiresAt.Before(s.now()) {
		if err := s.authRepo.DeleteSession(ctx, session.ID); err != nil {
			s.logger.Warn("ошибка удаления истекшей сессии", zap.Error(err))
		}
		return nil, domain.Unauthorized("refresh token истек")
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		s.logger.Error("пользователь не найден", zap.Int64("user_id", session.UserID), zap.Error(err))
		return nil, domain.Unauthorized("пользователь не найден")
	}

	if !user.IsActive {
		return nil, domain.Forbidden("аккаунт деактивирован")
	}

	tokens, next, err := s.newSession(user, userAgent, ip)
	if err != nil {
		s.logger.Error("ошибка выпуска токенов", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil, errors.New("ошибка при обновлении токенов")
	}

	if err := s.authRepo.RotateSession(ctx, session.ID, next); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("refresh token уже использован", zap.Int64("user_id", user.ID))
			return nil, domain.Unauthorized("недействительный refresh token")
		}
		s.logger.Error("ошибка обновления сессии", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil, errors.New("ошибка при обновлении токенов")
	}

	return tokens, nil
}

func (s *AuthServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	session, err := s.authRepo.GetSessionByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		s.logger.Error("ошибка получения сессии при выходе", zap.Error(err))
		return errors.New("ошибка при выходе")
	}

	if err := s.authRepo.DeleteSession(ctx, session.ID); err != nil {
		s.logger.Error("ошибка удаления сессии", zap.Error(err))
		return errors.New("ошибка при выходе")
	}

	return nil
}

func (s *AuthServiceImpl) ParseToken(ctx context.Context, token string) (*domain.Identity, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, domain.Unauthorized("недействительный токен")
	}

	role := domain.UserRole(claims.Role)
	if !role.IsValid() || claims.UserID <= 0 {
		return nil, domain.Unauthorized("недействительный токен")
	}

	return &domain.Identity{UserID: claims.UserID, Role: role}, nil
}

// newSession выпускает пару токенов и готовит запись сессии для них.
func (s *AuthServiceImpl) newSession(user *domain.User, userAgent, ip string) (*domain.Tokens, domain.Session, error) {
	accessToken, err := s.tokens.NewAccessToken(user.ID, string(user.Role))
	if err != nil {
		return nil, domain.Session{}, err
	}

	refreshToken, err := auth.NewRefreshToken()
	if err != nil {
		return nil, domain.Session{}, err
	}

	now := s.now()
	session := domain.Session{
		ID:           uuid.New().String(),
		UserID:       user.ID,
		RefreshToken: refreshToken,
		UserAgent:    userAgent,
		IP:           ip,
		ExpiresAt:    now.Add(s.jwtConfig.RefreshTokenTTL),
		CreatedAt:    now,
	}

	return &domain.Tokens{AccessToken: accessToken, RefreshToken: refreshToken}, session, nil
}

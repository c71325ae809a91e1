package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"medbook/internal/domain"
	"medbook/internal/repository"
	"medbook/internal/storage"
)

type DoctorServiceImpl struct {
	repo        repository.DoctorRepository
	userRepo    repository.UserRepository
	specRepo    repository.SpecializationRepository
	fileStorage storage.FileStorage
	logger      *zap.Logger
}

func NewDoctorService(
	repo repository.DoctorRepository,
	userRepo repository.UserRepository,
	specRepo repository.SpecializationRepository,
	fileStorage storage.FileStorage,
	logger *zap.Logger,
) *DoctorServiceImpl {
	return &DoctorServiceImpl{
		repo:        repo,
		userRepo:    userRepo,
		specRepo:    specRepo,
		fileStorage: fileStorage,
		logger:      logger,
	}
}

func (s *DoctorServiceImpl) Create(ctx context.Context, userID int64, dto domain.CreateDoctorDTO) (int64, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		s.logger.Error("пользователь не найден при создании профиля врача", zap.Int64("userID", userID), zap.Error(err))
		return 0, repoError(err, "пользователь не найден", "", "ошибка при создании профиля врача")
	}

	if user.Role != domain.UserRoleDoctor {
		return 0, domain.Forbidden("профиль врача может создать только пользователь с ролью врача")
	}

	_, err = s.repo.GetByUserID(ctx, userID)
	if err == nil {
		s.logger.Warn("профиль врача уже существует", zap.Int64("userID", userID))
		return 0, domain.Conflict("профиль врача уже существует")
	}

	if err := s.checkSpecialization(ctx, dto.SpecializationID); err != nil {
		return 0, err
	}

	dto.Bio = strings.TrimSpace(dto.Bio)
	dto.Location = strings.TrimSpace(dto.Location)

	id, err := s.repo.Create(ctx, userID, dto)
	if err != nil {
		s.logger.Error("ошибка создания профиля врача", zap.Int64("userID", userID), zap.Error(err))
		return 0, repoError(err, "", "профиль врача уже существует", "ошибка при создании профиля врача")
	}

	return id, nil
}

func (s *DoctorServiceImpl) GetByID(ctx context.Context, id int64) (*domain.Doctor, error) {
	doctor, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("ошибка получения врача", zap.Int64("id", id), zap.Error(err))
		return nil, repoError(err, "врач не найден", "", "ошибка при получении врача")
	}

	return doctor, nil
}

func (s *DoctorServiceImpl) GetByUserID(ctx context.Context, userID int64) (*domain.Doctor, error) {
	doctor, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("ошибка получения врача по пользователю", zap.Int64("userID", userID), zap.Error(err))
		return nil, repoError(err, "профиль врача не найден", "", "ошибка при получении врача")
	}

	return doctor, nil
}

func (s *DoctorServiceImpl) Update(ctx context.Context, actor domain.Identity, id int64, dto domain.UpdateDoctorDTO) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}

	if err := s.checkSpecialization(ctx, dto.SpecializationID); err != nil {
		return err
	}

	err := s.repo.Update(ctx, id, dto)
	if err != nil {
		s.logger.Error("ошибка обновления врача", zap.Int64("id", id), zap.Error(err))
		return repoError(err, "врач не найден", "", "ошибка при обновлении врача")
	}

	return nil
}

func (s *DoctorServiceImpl) Delete(ctx context.Context, actor domain.Identity, id int64) error {
	doctor, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}

	err = s.repo.Delete(ctx, id)
	if err != nil {
		s.logger.Error("ошибка удаления врача", zap.Int64("id", id), zap.Error(err))
		return repoError(err, "врач не найден", "", "ошибка при удалении врача")
	}

	if doctor.ProfilePhotoURL != "" && s.fileStorage != nil {
		if err := s.fileStorage.DeleteFile(ctx, doctor.ProfilePhotoURL); err != nil {
			s.logger.Warn("не удалось удалить фото врача", zap.Int64("id", id), zap.Error(err))
		}
	}

	return nil
}

func (s *DoctorServiceImpl) List(ctx context.Context, filter domain.DoctorFilter) ([]domain.Doctor, int, error) {
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset)

	if filter.SortBy != "" && !filter.SortBy.IsValid() {
		return nil, 0, domain.Validation("некорректное поле сортировки")
	}
	if filter.Search != nil {
		search := strings.TrimSpace(*filter.Search)
		if search == "" {
			filter.Search = nil
		} else {
			filter.Search = &search
		}
	}

	doctors, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("ошибка получения списка врачей", zap.Error(err))
		return nil, 0, errors.New("ошибка при получении списка врачей")
	}

	return doctors, total, nil
}

func (s *DoctorServiceImpl) UploadProfilePhoto(ctx context.Context, actor domain.Identity, id int64, photo []byte, filename string) (string, error) {
	doctor, err := s.owned(ctx, actor, id)
	if err != nil {
		return "", err
	}

	if s.fileStorage == nil {
		return "", errStorageDisabled
	}

	key, err := s.fileStorage.UploadFile(ctx, storage.FolderDoctors, photo, filename, storage.ImageTypes)
	if err != nil {
		s.logger.Error("ошибка загрузки фото врача", zap.Int64("id", id), zap.Error(err))
		if errors.Is(err, storage.ErrEmptyFile) || errors.Is(err, storage.ErrUnsupportedType) {
			return "", domain.Validation("допустимы только изображения JPEG, PNG, GIF или WebP")
		}
		return "", errors.New("ошибка при загрузке фото")
	}

	photoURL := s.fileStorage.PublicURL(key)
	if err := s.repo.UpdateProfilePhoto(ctx, id, photoURL); err != nil {
		s.logger.Error("ошибка сохранения ссылки на фото", zap.Int64("id", id), zap.Error(err))
		if delErr := s.fileStorage.DeleteFile(ctx, key); delErr != nil {
			s.logger.Warn("не удалось удалить загруженное фото", zap.String("key", key), zap.Error(delErr))
		}
		return "", errors.New("ошибка при загрузке фото")
	}

	if doctor.ProfilePhotoURL != "" {
		if err := s.fileStorage.DeleteFile(ctx, doctor.ProfilePhotoURL); err != nil {
			s.logger.Warn("не удалось удалить старое фото", zap.Int64("id", id), zap.Error(err))
		}
	}

	return photoURL, nil
}

func (s *DoctorServiceImpl) DeleteProfilePhoto(ctx context.Context, actor domain.Identity, id int64) error {
	doctor, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}

	if doctor.ProfilePhotoURL == "" {
		return domain.NotFound("фото профиля не загружено")
	}

	if err := s.repo.UpdateProfilePhoto(ctx, id, ""); err != nil {
		s.logger.Error("ошибка удаления ссылки на фото", zap.Int64("id", id), zap.Error(err))
		return errors.New("ошибка при удалении фото")
	}

	if s.fileStorage == nil {
		return nil
	}

	if err := s.fileStorage.DeleteFile(ctx, doctor.ProfilePhotoURL); err != nil {
		s.logger.Warn("не удалось удалить фото из хранилища", zap.Int64("id", id), zap.Error(err))
	}

	return nil
}

// owned возвращает профиль, если его может менять actor: владелец или администратор.
func (s *DoctorServiceImpl) owned(ctx context.Context, actor domain.Identity, id int64) (*domain.Doctor, error) {
	doctor, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("врач не найден", zap.Int64("id", id), zap.Error(err))
		return nil, repoError(err, "врач не найден", "", "ошибка при получении врача")
	}

	if !actor.IsAdmin() && doctor.UserID != actor.UserID {
		return nil, domain.Forbidden("нет прав на изменение профиля врача")
	}

	return doctor, nil
}

func (s *DoctorServiceImpl) checkSpecialization(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}

	specialization, err := s.specRepo.GetByID(ctx, *id)
	if err != nil {
		s.logger.Warn("специализация не найдена", zap.Int64("id", *id), zap.Error(err))
		return repoError(err, "специализация не найдена", "", "ошибка при проверке специализации")
	}
	if !specialization.IsActive {
		return domain.Validation("специализация неактивна")
	}

	return nil
}

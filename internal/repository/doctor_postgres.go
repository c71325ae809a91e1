package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medbook/internal/domain"
)

const doctorSelect = `
	SELECT d.id, d.user_id, d.specialization_id, COALESCE(s.name, ''), d.bio, d.experience_years,
		d.consultation_fee::float8, d.location, d.rating::float8, d.reviews_count, d.profile_photo_url,
		d.created_at, d.updated_at,
		u.id, u.first_name, u.last_name, u.middle_name, u.email, u.phone, u.role, u.is_active, u.created_at, u.updated_at
	FROM doctors d
	JOIN users u ON u.id = d.user_id
	LEFT JOIN specializations s ON s.id = d.specialization_id
`

var doctorOrder = map[domain.DoctorSort]string{
	domain.DoctorSortRating:     "d.rating DESC, d.reviews_count DESC",
	domain.DoctorSortFee:        "d.consultation_fee ASC",
	domain.DoctorSortExperience: "d.experience_years DESC",
}

type DoctorRepo struct {
	db *pgxpool.Pool
}

func NewDoctorRepository(db *pgxpool.Pool) *DoctorRepo {
	return &DoctorRepo{
		db: db,
	}
}

func scanDoctor(row pgx.Row) (*domain.Doctor, error) {
	var d domain.Doctor
	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.SpecializationID,
		&d.SpecializationName,
		&d.Bio,
		&d.ExperienceYears,
		&d.ConsultationFee,
		&d.Location,
		&d.Rating,
		&d.ReviewsCount,
		&d.ProfilePhotoURL,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.User.ID,
		&d.User.FirstName,
		&d.User.LastName,
		&d.User.MiddleName,
		&d.User.Email,
		&d.User.Phone,
		&d.User.Role,
		&d.User.IsActive,
		&d.User.CreatedAt,
		&d.User.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DoctorRepo) Create(ctx context.Context, userID int64, dto domain.CreateDoctorDTO) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO doctors (user_id, specialization_id, bio, experience_years, consultation_fee, location)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, userID, dto.SpecializationID, dto.Bio, dto.ExperienceYears, dto.ConsultationFee, dto.Location).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("профиль врача пользователя %d: %w", userID, domain.ErrConflict)
		}
		return 0, fmt.Errorf("ошибка создания врача: %w", err)
	}

	return id, nil
}

func (r *DoctorRepo) getOne(ctx context.Context, column string, value int64) (*domain.Doctor, error) {
	d, err := scanDoctor(r.db.QueryRow(ctx, doctorSelect+` WHERE d.`+column+` = $1`, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("врач", value)
		}
		return nil, fmt.Errorf("ошибка получения врача: %w", err)
	}
	return d, nil
}

func (r *DoctorRepo) GetByID(ctx context.Context, id int64) (*domain.Doctor, error) {
	return r.getOne(ctx, "id", id)
}

func (r *DoctorRepo) GetByUserID(ctx context.Context, userID int64) (*domain.Doctor, error) {
	return r.getOne(ctx, "user_id", userID)
}

func (r *DoctorRepo) Update(ctx context.Context, id int64, dto domain.UpdateDoctorDTO) error {
	set := newSetBuilder(id)

	if dto.SpecializationID != nil {
		set.set("specialization_id", *dto.SpecializationID)
	}
	if dto.Bio != nil {
		set.set("bio", *dto.Bio)
	}
	if dto.ExperienceYears != nil {
		set.set("experience_years", *dto.ExperienceYears)
	}
	if dto.ConsultationFee != nil {
		set.set("consultation_fee", *dto.ConsultationFee)
	}
	if dto.Location != nil {
		set.set("location", *dto.Location)
	}

	if set.empty() {
		return nil
	}

	tag, err := r.db.Exec(ctx, set.sql("doctors"), set.args...)
	if err != nil {
		return fmt.Errorf("ошибка обновления врача: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("врач", id)
	}

	return nil
}

func (r *DoctorRepo) UpdateProfilePhoto(ctx context.Context, id int64, photoURL string) error {
	_, err := r.db.Exec(ctx, `UPDATE doctors SET profile_photo_url = $1, updated_at = NOW() WHERE id = $2`, photoURL, id)
	if err != nil {
		return fmt.Errorf("ошибка обновления фото врача: %w", err)
	}

	return nil
}

func (r *DoctorRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления врача: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("врач", id)
	}

	return nil
}

// List ищет врачей: подстрока имени без учета регистра, специализация,
// минимальный рейтинг, максимальная стоимость приема.
func (r *DoctorRepo) List(ctx context.Context, filter domain.DoctorFilter) ([]domain.Doctor, int, error) {
	var where whereBuilder
	where.conditions = append(where.conditions, "u.is_active")

	if filter.Search != nil && *filter.Search != "" {
		where.add("(u.first_name || ' ' || u.last_name || ' ' || u.middle_name) ILIKE $%d", "%"+*filter.Search+"%")
	}
	if filter.SpecializationID != nil {
		where.add("d.specialization_id = $%d", *filter.SpecializationID)
	}
	if filter.MinRating != nil {
		where.add("d.rating >= $%d", *filter.MinRating)
	}
	if filter.MaxFee != nil {
		where.add("d.consultation_fee <= $%d", *filter.MaxFee)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM doctors d JOIN users u ON u.id = d.user_id` + where.sql()
	if err := r.db.QueryRow(ctx, countQuery, where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчета врачей: %w", err)
	}

	order, ok := doctorOrder[filter.SortBy]
	if !ok {
		order = doctorOrder[domain.DoctorSortRating]
	}

	page, args := where.page(filter.Limit, filter.Offset)
	rows, err := r.db.Query(ctx, doctorSelect+where.sql()+` ORDER BY `+order+`, d.id`+page, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения списка врачей: %w", err)
	}
	defer rows.Close()

	doctors := []domain.Doctor{}
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка чтения врача: %w", err)
		}
		doctors = append(doctors, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка обработки результатов: %w", err)
	}

	return doctors, total, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medbook/internal/domain"
)

const reviewSelect = `
	SELECT r.id, r.patient_id, r.doctor_id, r.appointment_id, r.rating, r.comment, r.reply, r.replied_at,
		TRIM(u.last_name || ' ' || u.first_name), r.created_at, r.updated_at
	FROM reviews r
	JOIN users u ON u.id = r.patient_id
`

type ReviewRepo struct {
	db *pgxpool.Pool
}

func NewReviewRepository(db *pgxpool.Pool) *ReviewRepo {
	return &ReviewRepo{
		db: db,
	}
}

func scanReview(row pgx.Row) (*domain.Review, error) {
	var r domain.Review
	err := row.Scan(
		&r.ID,
		&r.PatientID,
		&r.DoctorID,
		&r.AppointmentID,
		&r.Rating,
		&r.Comment,
		&r.Reply,
		&r.RepliedAt,
		&r.PatientName,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func updateDoctorRating(ctx context.Context, tx pgx.Tx, doctorID int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE doctors
		SET rating = (
			SELECT COALESCE(ROUND(AVG(rating)::numeric, 2), 0) FROM reviews WHERE doctor_id = $1
		),
		reviews_count = (
			SELECT COUNT(*) FROM reviews WHERE doctor_id = $1
		),
		updated_at = NOW()
		WHERE id = $1
	`, doctorID)
	if err != nil {
		return fmt.Errorf("ошибка обновления рейтинга врача: %w", err)
	}
	return nil
}

func (r *ReviewRepo) Create(ctx context.Context, review domain.Review) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO reviews (patient_id, doctor_id, appointment_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, review.PatientID, review.DoctorID, review.AppointmentID, review.Rating, review.Comment).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("отзыв на запись %d: %w", review.AppointmentID, domain.ErrConflict)
		}
		return 0, fmt.Errorf("ошибка создания отзыва: %w", err)
	}

	if err := updateDoctorRating(ctx, tx, review.DoctorID); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("ошибка коммита транзакции: %w", err)
	}

	return id, nil
}

func (r *ReviewRepo) GetByID(ctx context.Context, id int64) (*domain.Review, error) {
	review, err := scanReview(r.db.QueryRow(ctx, reviewSelect+` WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("отзыв", id)
		}
		return nil, fmt.Errorf("ошибка получения отзыва: %w", err)
	}

	return review, nil
}

func (r *ReviewRepo) GetByAppointmentID(ctx context.Context, appointmentID int64) (*domain.Review, error) {
	review, err := scanReview(r.db.QueryRow(ctx, reviewSelect+` WHERE r.appointment_id = $1`, appointmentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("отзыв на запись %d: %w", appointmentID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка получения отзыва: %w", err)
	}

	return review, nil
}

func (r *ReviewRepo) Update(ctx context.Context, id int64, dto domain.UpdateReviewDTO) error {
	set := newSetBuilder(id)

	if dto.Rating != nil {
		set.set("rating", *dto.Rating)
	}
	if dto.Comment != nil {
		set.set("comment", *dto.Comment)
	}

	if set.empty() {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var doctorID int64
	err = tx.QueryRow(ctx, set.sql("reviews")+" RETURNING doctor_id", set.args...).Scan(&doctorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("отзыв", id)
		}
		return fmt.Errorf("ошибка обновления отзыва: %w", err)
	}

	if dto.Rating != nil {
		if err := updateDoctorRating(ctx, tx, doctorID); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка коммита транзакции: %w", err)
	}

	return nil
}

func (r *ReviewRepo) Reply(ctx context.Context, id int64, text string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE reviews SET reply = $1, replied_at = NOW(), updated_at = NOW() WHERE id = $2
	`, text, id)
	if err != nil {
		return fmt.Errorf("ошибка сохранения ответа на отзыв: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("отзыв", id)
	}

	return nil
}

func (r *ReviewRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var doctorID int64
	err = tx.QueryRow(ctx, `DELETE FROM reviews WHERE id = $1 RETURNING doctor_id`, id).Scan(&doctorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("отзыв", id)
		}
		return fmt.Errorf("ошибка удаления отзыва: %w", err)
	}

	if err := updateDoctorRating(ctx, tx, doctorID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка коммита транзакции: %w", err)
	}

	return nil
}

func (r *ReviewRepo) List(ctx context.Context, filter domain.ReviewFilter) ([]domain.Review, int, error) {
	var where whereBuilder

	if filter.DoctorID != nil {
		where.add("r.doctor_id = $%d", *filter.DoctorID)
	}
	if filter.PatientID != nil {
		where.add("r.patient_id = $%d", *filter.PatientID)
	}
	if filter.MinRating != nil {
		where.add("r.rating >= $%d", *filter.MinRating)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM reviews r`+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчета отзывов: %w", err)
	}

	page, args := where.page(filter.Limit, filter.Offset)
	rows, err := r.db.Query(ctx, reviewSelect+where.sql()+` ORDER BY r.created_at DESC, r.id DESC`+page, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения списка отзывов: %w", err)
	}
	defer rows.Close()

	reviews := []domain.Review{}
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка чтения отзыва: %w", err)
		}
		reviews = append(reviews, *review)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка обработки результатов: %w", err)
	}

	return reviews, total, nil
}

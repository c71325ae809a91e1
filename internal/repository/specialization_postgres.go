package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medbook/internal/domain"
)

type SpecializationRepo struct {
	db *pgxpool.Pool
}

func NewSpecializationRepository(db *pgxpool.Pool) *SpecializationRepo {
	return &SpecializationRepo{
		db: db,
	}
}

func (r *SpecializationRepo) Create(ctx context.Context, dto domain.CreateSpecializationDTO) (int64, error) {
	isActive := true
	if dto.IsActive != nil {
		isActive = *dto.IsActive
	}

	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO specializations (name, description, is_active)
		VALUES ($1, $2, $3)
		RETURNING id
	`, dto.Name, dto.Description, isActive).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("специализация %q: %w", dto.Name, domain.ErrConflict)
		}
		return 0, fmt.Errorf("ошибка создания специализации: %w", err)
	}

	return id, nil
}

func (r *SpecializationRepo) GetByID(ctx context.Context, id int64) (*domain.Specialization, error) {
	var s domain.Specialization
	err := r.db.QueryRow(ctx, `
		SELECT id, name, description, is_active, created_at, updated_at
		FROM specializations
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.Description, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("специализация", id)
		}
		return nil, fmt.Errorf("ошибка получения специализации: %w", err)
	}

	return &s, nil
}

func (r *SpecializationRepo) Update(ctx context.Context, id int64, dto domain.UpdateSpecializationDTO) error {
	set := newSetBuilder(id)

	if dto.Name != nil {
		set.set("name", *dto.Name)
	}
	if dto.Description != nil {
		set.set("description", *dto.Description)
	}
	if dto.IsActive != nil {
		set.set("is_active", *dto.IsActive)
	}

	if set.empty() {
		return nil
	}

	tag, err := r.db.Exec(ctx, set.sql("specializations"), set.args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("специализация с таким названием: %w", domain.ErrConflict)
		}
		return fmt.Errorf("ошибка обновления специализации: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("специализация", id)
	}

	return nil
}

func (r *SpecializationRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM specializations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления специализации: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("специализация", id)
	}

	return nil
}

func (r *SpecializationRepo) List(ctx context.Context, filter domain.SpecializationFilter) ([]domain.Specialization, int, error) {
	var where whereBuilder

	if filter.IsActive != nil {
		where.add("is_active = $%d", *filter.IsActive)
	}
	if filter.SearchTerm != nil && *filter.SearchTerm != "" {
		where.add("name ILIKE $%d", "%"+*filter.SearchTerm+"%")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM specializations`+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчета специализаций: %w", err)
	}

	page, args := where.page(filter.Limit, filter.Offset)
	rows, err := r.db.Query(ctx, `
		SELECT id, name, description, is_active, created_at, updated_at
		FROM specializations`+where.sql()+` ORDER BY name`+page, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения списка специализаций: %w", err)
	}
	defer rows.Close()

	result := []domain.Specialization{}
	for rows.Next() {
		var s domain.Specialization
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("ошибка чтения специализации: %w", err)
		}
		result = append(result, s)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка обработки результатов: %w", err)
	}

	return result, total, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medbook/internal/domain"
)

const userColumns = `id, first_name, last_name, middle_name, email, phone, password_hash, role, is_active, created_at, updated_at`

type UserRepo struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepo {
	return &UserRepo{
		db: db,
	}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.MiddleName,
		&user.Email,
		&user.Phone,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) Create(ctx context.Context, user domain.User) (int64, error) {
	query := `
		INSERT INTO users (first_name, last_name, middle_name, email, phone, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRow(ctx, query,
		user.FirstName,
		user.LastName,
		user.MiddleName,
		user.Email,
		user.Phone,
		user.PasswordHash,
		user.Role,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("пользователь уже существует: %w", domain.ErrConflict)
		}
		return 0, fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	return id, nil
}

func (r *UserRepo) getOne(ctx context.Context, column string, value interface{}) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("пользователь", value)
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	return user, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, "id", id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "email", email)
}

func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.getOne(ctx, "phone", phone)
}

func (r *UserRepo) Update(ctx context.Context, id int64, dto domain.UpdateUserDTO) error {
	set := newSetBuilder(id)

	if dto.FirstName != nil {
		set.set("first_name", *dto.FirstName)
	}
	if dto.LastName != nil {
		set.set("last_name", *dto.LastName)
	}
	if dto.MiddleName != nil {
		set.set("middle_name", *dto.MiddleName)
	}
	if dto.Email != nil {
		set.set("email", *dto.Email)
	}
	if dto.Phone != nil {
		set.set("phone", *dto.Phone)
	}
	if dto.IsActive != nil {
		set.set("is_active", *dto.IsActive)
	}

	if set.empty() {
		return nil
	}

	tag, err := r.db.Exec(ctx, set.sql("users"), set.args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email или телефон заняты: %w", domain.ErrConflict)
		}
		return fmt.Errorf("ошибка обновления пользователя: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("пользователь", id)
	}

	return nil
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`

	if _, err := r.db.Exec(ctx, query, passwordHash, id); err != nil {
		return fmt.Errorf("ошибка обновления пароля: %w", err)
	}

	return nil
}

// Delete деактивирует пользователя; записи и отзывы остаются.
func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	query := `UPDATE users SET is_active = FALSE, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления пользователя: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("пользователь", id)
	}

	return nil
}

func (r *UserRepo) List(ctx context.Context, filter domain.UserFilter) ([]domain.User, int, error) {
	var where whereBuilder

	if filter.Role != nil {
		where.add("role = $%d", *filter.Role)
	}
	if filter.IsActive != nil {
		where.add("is_active = $%d", *filter.IsActive)
	}
	if filter.Search != nil && *filter.Search != "" {
		where.add("(first_name || ' ' || last_name || ' ' || email) ILIKE $%d", "%"+*filter.Search+"%")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчета пользователей: %w", err)
	}

	page, args := where.page(filter.Limit, filter.Offset)
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users`+where.sql()+` ORDER BY id`+page, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка запроса списка пользователей: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка чтения данных пользователя: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка обработки результатов: %w", err)
	}

	return users, total, nil
}

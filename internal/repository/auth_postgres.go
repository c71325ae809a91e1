package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"medbook/internal/domain"
)

const sessionColumns = `id::text, user_id, refresh_token, user_agent, ip, expires_at, created_at`

type SessionRepo struct {
	db *pgxpool.Pool
}

func NewSessionRepository(db *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{db: db}
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertSession(ctx context.Context, db execer, s domain.Session) error {
	_, err := db.Exec(ctx,
		`INSERT INTO sessions (id, user_id, refresh_token, user_agent, ip, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.UserID, s.RefreshToken, s.UserAgent, s.IP, s.ExpiresAt, s.CreatedAt,
	)
	return err
}

func (r *SessionRepo) CreateSession(ctx context.Context, session domain.Session) error {
	if err := insertSession(ctx, r.db, session); err != nil {
		return fmt.Errorf("сохранение сессии пользователя %d: %w", session.UserID, err)
	}
	return nil
}

func (r *SessionRepo) GetSessionByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE refresh_token = $1`, refreshToken)

	var s domain.Session
	err := row.Scan(&s.ID, &s.UserID, &s.RefreshToken, &s.UserAgent, &s.IP, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("сессия", "по refresh token")
	}
	if err != nil {
		return nil, fmt.Errorf("чтение сессии: %w", err)
	}

	return &s, nil
}

// RotateSession удаляет старую сессию и создает новую в одной транзакции.
// Если старая сессия уже удалена параллельным обновлением, возвращается
// ErrNotFound и новая сессия не создается.
func (r *SessionRepo) RotateSession(ctx context.Context, oldID string, next domain.Session) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("начало транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, oldID)
	if err != nil {
		return fmt.Errorf("удаление сессии %s: %w", oldID, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("сессия", oldID)
	}

	if err := insertSession(ctx, tx, next); err != nil {
		return fmt.Errorf("сохранение сессии пользователя %d: %w", next.UserID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("фиксация транзакции: %w", err)
	}
	return nil
}

func (r *SessionRepo) DeleteSession(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("удаление сессии %s: %w", id, err)
	}
	return nil
}

func (r *SessionRepo) DeleteSessionsByUserID(ctx context.Context, userID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("удаление сессий пользователя %d: %w", userID, err)
	}
	return nil
}

func (r *SessionRepo) DeleteExpiredSessions(ctx context.Context, userID int64, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1 AND expires_at <= $2`, userID, now)
	if err != nil {
		return 0, fmt.Errorf("удаление истекших сессий пользователя %d: %w", userID, err)
	}
	return tag.RowsAffected(), nil
}

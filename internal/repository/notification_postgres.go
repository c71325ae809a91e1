package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medbook/internal/domain"
)

const notificationColumns = `id, user_id, type, title, message, entity_id, is_read, read_at, created_at`

type NotificationRepo struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{
		db: db,
	}
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Type,
		&n.Title,
		&n.Message,
		&n.EntityID,
		&n.IsRead,
		&n.ReadAt,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NotificationRepo) Create(ctx context.Context, dto domain.CreateNotificationDTO) (*domain.Notification, error) {
	n, err := scanNotification(r.db.QueryRow(ctx, `
		INSERT INTO notifications (user_id, type, title, message, entity_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+notificationColumns,
		dto.UserID, dto.Type, dto.Title, dto.Message, dto.EntityID))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания уведомления: %w", err)
	}

	return n, nil
}

func (r *NotificationRepo) List(ctx context.Context, filter domain.NotificationFilter) ([]domain.Notification, int, error) {
	var where whereBuilder
	where.add("user_id = $%d", filter.UserID)
	if filter.UnreadOnly {
		where.conditions = append(where.conditions, "NOT is_read")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications`+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчета уведомлений: %w", err)
	}

	page, args := where.page(filter.Limit, filter.Offset)
	rows, err := r.db.Query(ctx, `SELECT `+notificationColumns+` FROM notifications`+where.sql()+
		` ORDER BY created_at DESC, id DESC`+page, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения уведомлений: %w", err)
	}
	defer rows.Close()

	result := []domain.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка чтения уведомления: %w", err)
		}
		result = append(result, *n)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка обработки результатов: %w", err)
	}

	return result, total, nil
}

func (r *NotificationRepo) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета непрочитанных уведомлений: %w", err)
	}

	return count, nil
}

func (r *NotificationRepo) MarkRead(ctx context.Context, userID, id int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, NOW())
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return fmt.Errorf("ошибка отметки уведомления: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("уведомление", id)
	}

	return nil
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = NOW()
		WHERE user_id = $1 AND NOT is_read
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("ошибка отметки уведомлений: %w", err)
	}

	return tag.RowsAffected(), nil
}

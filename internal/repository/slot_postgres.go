package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medbook/internal/domain"
)

const slotColumns = `id, doctor_id, to_char(date, 'YYYY-MM-DD'), start_time, end_time, slot_duration,
	slot_type, max_patients, booked_slots, is_recurring, recurrence_id::text, created_at, updated_at`

type SlotRepo struct {
	db *pgxpool.Pool
}

func NewSlotRepository(db *pgxpool.Pool) *SlotRepo {
	return &SlotRepo{db: db}
}

func scanSlot(row pgx.Row) (*domain.AppointmentSlot, error) {
	var s domain.AppointmentSlot
	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&s.StartTime,
		&s.EndTime,
		&s.SlotDuration,
		&s.SlotType,
		&s.MaxPatients,
		&s.BookedSlots,
		&s.IsRecurring,
		&s.RecurrenceID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSlots(rows pgx.Rows) ([]domain.AppointmentSlot, error) {
	defer rows.Close()

	result := []domain.AppointmentSlot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования окна приема: %w", err)
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обработки результатов: %w", err)
	}

	return result, nil
}

func (r *SlotRepo) Create(ctx context.Context, slots []domain.AppointmentSlot) ([]int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO appointment_slots (
			doctor_id, date, start_time, end_time, slot_duration, slot_type,
			max_patients, booked_slots, is_recurring, recurrence_id
		) VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9, $10::uuid)
		RETURNING id
	`

	ids := make([]int64, 0, len(slots))
	for _, s := range slots {
		booked := s.BookedSlots
		if booked == nil {
			booked = []string{}
		}

		var id int64
		err := tx.QueryRow(ctx, query,
			s.DoctorID,
			s.Date,
			s.StartTime,
			s.EndTime,
			s.SlotDuration,
			s.SlotType,
			s.MaxPatients,
			booked,
			s.IsRecurring,
			s.RecurrenceID,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("ошибка создания окна приема на %s: %w", s.Date, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка коммита транзакции: %w", err)
	}

	return ids, nil
}

func (r *SlotRepo) GetByID(ctx context.Context, id int64) (*domain.AppointmentSlot, error) {
	s, err := scanSlot(r.db.QueryRow(ctx, `SELECT `+slotColumns+` FROM appointment_slots WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("окно приема", id)
		}
		return nil, fmt.Errorf("ошибка получения окна приема: %w", err)
	}

	return s, nil
}

// Update сохраняет окно и пересобирает booked_slots по активным записям
// с учетом новой вместимости.
func (r *SlotRepo) Update(ctx context.Context, s domain.AppointmentSlot) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := lockSlot(ctx, tx, s.ID); err != nil {
		return err
	}

	var booked []string
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(array_agg(time_label ORDER BY time_label), '{}')
		FROM (
			SELECT time_label FROM appointments
			WHERE slot_id = $1 AND status IN ('pending', 'confirmed')
			GROUP BY time_label
			HAVING COUNT(*) >= $2
		) full_labels
	`, s.ID, s.Capacity()).Scan(&booked)
	if err != nil {
		return fmt.Errorf("ошибка пересчета занятых меток: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE appointment_slots
		SET date = $1::date, start_time = $2, end_time = $3, slot_duration = $4,
			slot_type = $5, max_patients = $6, booked_slots = $7, updated_at = NOW()
		WHERE id = $8
	`,
		s.Date,
		s.StartTime,
		s.EndTime,
		s.SlotDuration,
		s.SlotType,
		s.MaxPatients,
		booked,
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления окна приема: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE appointments SET slot_date = $1::date WHERE slot_id = $2`, s.Date, s.ID)
	if err != nil {
		return fmt.Errorf("ошибка переноса даты записей: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка коммита транзакции: %w", err)
	}

	return nil
}

func (r *SlotRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM appointment_slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления окна приема: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("окно приема", id)
	}

	return nil
}

// DeleteByRecurrence удаляет серию, кроме окон с активными записями, и
// возвращает удаленные окна.
func (r *SlotRepo) DeleteByRecurrence(ctx context.Context, doctorID int64, recurrenceID string) ([]domain.AppointmentSlot, error) {
	rows, err := r.db.Query(ctx, `
		DELETE FROM appointment_slots s
		WHERE s.doctor_id = $1 AND s.recurrence_id = $2::uuid
			AND NOT EXISTS (
				SELECT 1 FROM appointments a
				WHERE a.slot_id = s.id AND a.status IN ('pending', 'confirmed')
			)
		RETURNING `+slotColumns, doctorID, recurrenceID)
	if err != nil {
		return nil, fmt.Errorf("ошибка удаления серии окон: %w", err)
	}

	return collectSlots(rows)
}

func (r *SlotRepo) List(ctx context.Context, filter domain.SlotFilter) ([]domain.AppointmentSlot, int, error) {
	var where whereBuilder

	if filter.DoctorID != nil {
		where.add("doctor_id = $%d", *filter.DoctorID)
	}
	if filter.DateFrom != nil {
		where.add("date >= $%d::date", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where.add("date <= $%d::date", *filter.DateTo)
	}
	if filter.RecurrenceID != nil {
		where.add("recurrence_id = $%d::uuid", *filter.RecurrenceID)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM appointment_slots`+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка получения количества окон приема: %w", err)
	}

	page, args := where.page(filter.Limit, filter.Offset)
	rows, err := r.db.Query(ctx, `SELECT `+slotColumns+` FROM appointment_slots`+where.sql()+
		` ORDER BY date, start_time, id`+page, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения списка окон приема: %w", err)
	}

	slots, err := collectSlots(rows)
	if err != nil {
		return nil, 0, err
	}

	return slots, total, nil
}

func (r *SlotRepo) ActiveByLabel(ctx context.Context, slotID int64) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT time_label, COUNT(*)
		FROM appointments
		WHERE slot_id = $1 AND status IN ('pending', 'confirmed')
		GROUP BY time_label
	`, slotID)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчета записей по меткам: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return nil, fmt.Errorf("ошибка чтения количества записей: %w", err)
		}
		counts[label] = count
	}

	return counts, rows.Err()
}

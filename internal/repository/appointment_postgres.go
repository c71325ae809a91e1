package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medbook/internal/domain"
)

const appointmentSelect = `
	SELECT a.id, a.patient_id, a.doctor_id, a.slot_id, to_char(a.slot_date, 'YYYY-MM-DD'), a.time_label,
		a.status, a.reason, a.created_at, a.updated_at,
		TRIM(p.last_name || ' ' || p.first_name), TRIM(du.last_name || ' ' || du.first_name)
	FROM appointments a
	JOIN users p ON p.id = a.patient_id
	JOIN doctors d ON d.id = a.doctor_id
	JOIN users du ON du.id = d.user_id
`

type AppointmentRepo struct {
	db *pgxpool.Pool
}

func NewAppointmentRepository(db *pgxpool.Pool) *AppointmentRepo {
	return &AppointmentRepo{
		db: db,
	}
}

func scanAppointment(row pgx.Row) (*domain.Appointment, error) {
	var a domain.Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.SlotID,
		&a.SlotDate,
		&a.TimeLabel,
		&a.Status,
		&a.Reason,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.PatientName,
		&a.DoctorName,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func lockSlot(ctx context.Context, tx pgx.Tx, slotID int64) (*domain.AppointmentSlot, error) {
	s, err := scanSlot(tx.QueryRow(ctx, `SELECT `+slotColumns+` FROM appointment_slots WHERE id = $1 FOR UPDATE`, slotID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("окно приема", slotID)
		}
		return nil, fmt.Errorf("ошибка блокировки окна приема: %w", err)
	}
	return s, nil
}

func countActive(ctx context.Context, tx pgx.Tx, slotID int64, label string) (int, error) {
	var count int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE slot_id = $1 AND time_label = $2 AND status IN ('pending', 'confirmed')
	`, slotID, label).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета записей: %w", err)
	}
	return count, nil
}

func (r *AppointmentRepo) Book(ctx context.Context, appointment domain.Appointment, check BookingCheck) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	slot, err := lockSlot(ctx, tx, appointment.SlotID)
	if err != nil {
		return 0, err
	}

	active, err := countActive(ctx, tx, slot.ID, appointment.TimeLabel)
	if err != nil {
		return 0, err
	}

	var patientHas bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE slot_id = $1 AND time_label = $2 AND patient_id = $3 AND status IN ('pending', 'confirmed')
		)
	`, slot.ID, appointment.TimeLabel, appointment.PatientID).Scan(&patientHas)
	if err != nil {
		return 0, fmt.Errorf("ошибка проверки записи пациента: %w", err)
	}

	if err := check(BookingState{Slot: slot, ActiveForLabel: active, PatientHasBooking: patientHas}); err != nil {
		return 0, err
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (patient_id, doctor_id, slot_id, slot_date, time_label, status, reason)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7)
		RETURNING id
	`,
		appointment.PatientID,
		slot.DoctorID,
		slot.ID,
		slot.Date,
		appointment.TimeLabel,
		domain.AppointmentStatusPending,
		appointment.Reason,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("повторная запись пациента: %w", domain.ErrConflict)
		}
		return 0, fmt.Errorf("ошибка создания записи: %w", err)
	}

	if active+1 >= slot.Capacity() {
		_, err = tx.Exec(ctx, `
			UPDATE appointment_slots
			SET booked_slots = array_append(booked_slots, $2), updated_at = NOW()
			WHERE id = $1 AND NOT ($2 = ANY(booked_slots))
		`, slot.ID, appointment.TimeLabel)
		if err != nil {
			return 0, fmt.Errorf("ошибка обновления занятых меток: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("ошибка коммита транзакции: %w", err)
	}

	return id, nil
}

func (r *AppointmentRepo) GetByID(ctx context.Context, id int64) (*domain.Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx, appointmentSelect+` WHERE a.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("запись", id)
		}
		return nil, fmt.Errorf("ошибка получения записи: %w", err)
	}

	return a, nil
}

func (r *AppointmentRepo) ChangeStatus(ctx context.Context, id int64, status domain.AppointmentStatus) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var slotID int64
	var label string
	err = tx.QueryRow(ctx, `SELECT slot_id, time_label FROM appointments WHERE id = $1`, id).Scan(&slotID, &label)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("запись", id)
		}
		return fmt.Errorf("ошибка получения записи: %w", err)
	}

	slot, err := lockSlot(ctx, tx, slotID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `UPDATE appointments SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса записи: %w", err)
	}

	if status == domain.AppointmentStatusCancelled {
		active, err := countActive(ctx, tx, slotID, label)
		if err != nil {
			return err
		}

		if active < slot.Capacity() {
			_, err = tx.Exec(ctx, `
				UPDATE appointment_slots
				SET booked_slots = array_remove(booked_slots, $2), updated_at = NOW()
				WHERE id = $1
			`, slotID, label)
			if err != nil {
				return fmt.Errorf("ошибка освобождения метки: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка коммита транзакции: %w", err)
	}

	return nil
}

func (r *AppointmentRepo) List(ctx context.Context, filter domain.AppointmentFilter) ([]domain.Appointment, int, error) {
	var where whereBuilder

	if filter.PatientID != nil {
		where.add("a.patient_id = $%d", *filter.PatientID)
	}
	if filter.DoctorID != nil {
		where.add("a.doctor_id = $%d", *filter.DoctorID)
	}
	if filter.SlotID != nil {
		where.add("a.slot_id = $%d", *filter.SlotID)
	}
	if filter.Status != nil {
		where.add("a.status = $%d", *filter.Status)
	}
	if filter.DateFrom != nil {
		where.add("a.slot_date >= $%d::date", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where.add("a.slot_date <= $%d::date", *filter.DateTo)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM appointments a`+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчета записей: %w", err)
	}

	page, args := where.page(filter.Limit, filter.Offset)
	rows, err := r.db.Query(ctx, appointmentSelect+where.sql()+` ORDER BY a.slot_date DESC, a.time_label DESC, a.id`+page, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения списка записей: %w", err)
	}
	defer rows.Close()

	appointments := []domain.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка чтения записи: %w", err)
		}
		appointments = append(appointments, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка обработки результатов: %w", err)
	}

	return appointments, total, nil
}

func (r *AppointmentRepo) CountActiveBySlot(ctx context.Context, slotID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE slot_id = $1 AND status IN ('pending', 'confirmed')
	`, slotID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета записей окна: %w", err)
	}

	return count, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medbook/internal/domain"
)

const prescriptionSelect = `
	SELECT pr.id, pr.appointment_id, pr.doctor_id, pr.patient_id, pr.diagnosis, pr.notes, pr.medications,
		pr.attachment_key, TRIM(du.last_name || ' ' || du.first_name), TRIM(p.last_name || ' ' || p.first_name),
		pr.created_at, pr.updated_at
	FROM prescriptions pr
	JOIN doctors d ON d.id = pr.doctor_id
	JOIN users du ON du.id = d.user_id
	JOIN users p ON p.id = pr.patient_id
`

type PrescriptionRepo struct {
	db *pgxpool.Pool
}

func NewPrescriptionRepository(db *pgxpool.Pool) *PrescriptionRepo {
	return &PrescriptionRepo{
		db: db,
	}
}

func scanPrescription(row pgx.Row) (*domain.Prescription, error) {
	var p domain.Prescription
	err := row.Scan(
		&p.ID,
		&p.AppointmentID,
		&p.DoctorID,
		&p.PatientID,
		&p.Diagnosis,
		&p.Notes,
		&p.Medications,
		&p.AttachmentKey,
		&p.DoctorName,
		&p.PatientName,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.Medications == nil {
		p.Medications = []domain.Medication{}
	}
	p.HasAttachment = p.AttachmentKey != ""
	return &p, nil
}

func medicationsOrEmpty(m []domain.Medication) []domain.Medication {
	if m == nil {
		return []domain.Medication{}
	}
	return m
}

func (r *PrescriptionRepo) Create(ctx context.Context, p domain.Prescription) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO prescriptions (appointment_id, doctor_id, patient_id, diagnosis, notes, medications)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`,
		p.AppointmentID,
		p.DoctorID,
		p.PatientID,
		p.Diagnosis,
		p.Notes,
		medicationsOrEmpty(p.Medications),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания назначения: %w", err)
	}

	return id, nil
}

func (r *PrescriptionRepo) GetByID(ctx context.Context, id int64) (*domain.Prescription, error) {
	p, err := scanPrescription(r.db.QueryRow(ctx, prescriptionSelect+` WHERE pr.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("назначение", id)
		}
		return nil, fmt.Errorf("ошибка получения назначения: %w", err)
	}

	return p, nil
}

func (r *PrescriptionRepo) Update(ctx context.Context, id int64, dto domain.UpdatePrescriptionDTO) error {
	set := newSetBuilder(id)

	if dto.Diagnosis != nil {
		set.set("diagnosis", *dto.Diagnosis)
	}
	if dto.Notes != nil {
		set.set("notes", *dto.Notes)
	}
	if dto.Medications != nil {
		set.set("medications", medicationsOrEmpty(*dto.Medications))
	}

	if set.empty() {
		return nil
	}

	tag, err := r.db.Exec(ctx, set.sql("prescriptions"), set.args...)
	if err != nil {
		return fmt.Errorf("ошибка обновления назначения: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("назначение", id)
	}

	return nil
}

func (r *PrescriptionRepo) SetAttachment(ctx context.Context, id int64, key string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE prescriptions SET attachment_key = $1, updated_at = NOW() WHERE id = $2
	`, key, id)
	if err != nil {
		return fmt.Errorf("ошибка сохранения вложения назначения: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("назначение", id)
	}

	return nil
}

func (r *PrescriptionRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM prescriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления назначения: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("назначение", id)
	}

	return nil
}

func (r *PrescriptionRepo) List(ctx context.Context, filter domain.PrescriptionFilter) ([]domain.Prescription, int, error) {
	var where whereBuilder

	if filter.PatientID != nil {
		where.add("pr.patient_id = $%d", *filter.PatientID)
	}
	if filter.DoctorID != nil {
		where.add("pr.doctor_id = $%d", *filter.DoctorID)
	}
	if filter.AppointmentID != nil {
		where.add("pr.appointment_id = $%d", *filter.AppointmentID)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM prescriptions pr`+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчета назначений: %w", err)
	}

	page, args := where.page(filter.Limit, filter.Offset)
	rows, err := r.db.Query(ctx, prescriptionSelect+where.sql()+` ORDER BY pr.created_at DESC, pr.id DESC`+page, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения списка назначений: %w", err)
	}
	defer rows.Close()

	result := []domain.Prescription{}
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка чтения назначения: %w", err)
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка обработки результатов: %w", err)
	}

	return result, total, nil
}

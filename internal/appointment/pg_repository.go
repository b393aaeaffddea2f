package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/hackgods/clinic-queue/internal/db"
	"github.com/hackgods/clinic-queue/internal/schedule"
)

type PgRepository struct {
	pool db.Querier
}

func NewPgRepository(pool db.Querier) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, clinic_id, patient_id, appointment_date, appointment_time, queue_number, status, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var at pgtype.Time
	var status string

	err := row.Scan(
		&a.ID,
		&a.ClinicID,
		&a.PatientID,
		&a.Date,
		&at,
		&a.QueueNumber,
		&status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = schedule.DateOf(a.Date)
	a.Time = schedule.ClockFromPgTime(at)
	a.Status = AppointmentStatus(status)
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// dayLockKey names the advisory lock shared by every writer of one clinic day.
func dayLockKey(clinicID uuid.UUID, date time.Time) string {
	return "appointments:" + clinicID.String() + ":" + schedule.FormatDate(date)
}

// Interface methods

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) BookedSlotTimes(ctx context.Context, clinicID uuid.UUID, date time.Time) ([]schedule.Clock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT appointment_time
		FROM appointments
		WHERE clinic_id = $1
		  AND appointment_date = $2
		  AND status <> 'canceled'
		ORDER BY appointment_time
	`, clinicID, schedule.DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("list booked slots: %w", err)
	}
	defer rows.Close()

	var result []schedule.Clock
	for rows.Next() {
		var t pgtype.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		result = append(result, schedule.ClockFromPgTime(t))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Insert takes a transaction-scoped advisory lock on the clinic day so that
// max(queue_number)+1 and the insert form one unit. The unique constraints
// on queue number and active slot remain the final word.
func (r *PgRepository) Insert(ctx context.Context, a Appointment) (*Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	date := schedule.DateOf(a.Date)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin insert appointment: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, dayLockKey(a.ClinicID, date)); err != nil {
		return nil, fmt.Errorf("lock clinic day: %w", err)
	}

	var next int
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(queue_number), 0) + 1
		FROM appointments
		WHERE clinic_id = $1 AND appointment_date = $2
	`, a.ClinicID, date).Scan(&next)
	if err != nil {
		return nil, fmt.Errorf("next queue number: %w", err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, clinic_id, patient_id, appointment_date, appointment_time, queue_number, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING `+appointmentColumns+`
	`, a.ID, a.ClinicID, a.PatientID, date, a.Time.PgTime(), next, string(a.Status))

	created, err := scanAppointment(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrAllocationConflict
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrAllocationConflict
		}
		return nil, fmt.Errorf("commit appointment: %w", err)
	}
	return created, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, string(to), string(from))

	updated, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	return updated, nil
}

func (r *PgRepository) ListByClinicDate(ctx context.Context, clinicID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE clinic_id = $1 AND appointment_date = $2
		ORDER BY queue_number
	`, clinicID, schedule.DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("list clinic day: %w", err)
	}
	return collectAppointments(rows)
}

// ListByClinicRange returns appointments with from <= date < to.
func (r *PgRepository) ListByClinicRange(ctx context.Context, clinicID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE clinic_id = $1
		  AND appointment_date >= $2
		  AND appointment_date < $3
		ORDER BY appointment_date, queue_number
	`, clinicID, schedule.DateOf(from), schedule.DateOf(to))
	if err != nil {
		return nil, fmt.Errorf("list clinic range: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE clinic_id = $1
		ORDER BY appointment_date DESC, queue_number
	`, clinicID)
	if err != nil {
		return nil, fmt.Errorf("list clinic appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CurrentQueueNumber(ctx context.Context, clinicID uuid.UUID, date time.Time) (int, error) {
	var current int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(queue_number), 0)
		FROM appointments
		WHERE clinic_id = $1
		  AND appointment_date = $2
		  AND status IN ('in_progress', 'completed')
	`, clinicID, schedule.DateOf(date)).Scan(&current)
	if err != nil {
		return 0, fmt.Errorf("current queue number: %w", err)
	}
	return current, nil
}

func (r *PgRepository) CountActive(ctx context.Context, clinicID uuid.UUID, date time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments
		WHERE clinic_id = $1
		  AND appointment_date = $2
		  AND status <> 'canceled'
	`, clinicID, schedule.DateOf(date)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active appointments: %w", err)
	}
	return n, nil
}

func (r *PgRepository) NextBooked(ctx context.Context, clinicID uuid.UUID, date time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE clinic_id = $1
		  AND appointment_date = $2
		  AND status = 'booked'
		ORDER BY appointment_time, queue_number
		LIMIT 1
	`, clinicID, schedule.DateOf(date))
	return scanAppointment(row)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY appointment_date DESC, appointment_time DESC
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list patient appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

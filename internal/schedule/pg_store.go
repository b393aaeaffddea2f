package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/hackgods/clinic-queue/internal/db"
)

type PgStore struct {
	pool db.Querier
}

func NewPgStore(pool db.Querier) *PgStore {
	return &PgStore{pool: pool}
}

const workingDayColumns = `id, clinic_id, day_of_week, start_time, end_time, is_closed`

const exceptionColumns = `id, clinic_id, exception_date, reason`

// Helpers

func scanWorkingDay(row pgx.Row) (*WorkingDay, error) {
	var d WorkingDay
	var dow int16
	var start, end pgtype.Time

	err := row.Scan(
		&d.ID,
		&d.ClinicID,
		&dow,
		&start,
		&end,
		&d.IsClosed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkingDayNotFound
		}
		return nil, err
	}

	d.DayOfWeek = time.Weekday(dow)
	d.StartTime = ClockFromPgTime(start)
	d.EndTime = ClockFromPgTime(end)
	return &d, nil
}

func scanException(row pgx.Row) (*Exception, error) {
	var ex Exception

	err := row.Scan(
		&ex.ID,
		&ex.ClinicID,
		&ex.Date,
		&ex.Reason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExceptionNotFound
		}
		return nil, err
	}

	ex.Date = DateOf(ex.Date)
	return &ex, nil
}

func collectWorkingDays(rows pgx.Rows) ([]WorkingDay, error) {
	defer rows.Close()

	var result []WorkingDay
	for rows.Next() {
		d, err := scanWorkingDay(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Working days

func (s *PgStore) ListWorkingDays(ctx context.Context, clinicID uuid.UUID) ([]WorkingDay, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+workingDayColumns+`
		FROM clinic_working_days
		WHERE clinic_id = $1
		ORDER BY day_of_week
	`, clinicID)
	if err != nil {
		return nil, fmt.Errorf("list working days: %w", err)
	}
	return collectWorkingDays(rows)
}

func (s *PgStore) GetWorkingDay(ctx context.Context, clinicID uuid.UUID, day time.Weekday) (*WorkingDay, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+workingDayColumns+`
		FROM clinic_working_days
		WHERE clinic_id = $1 AND day_of_week = $2
	`, clinicID, int16(day))
	return scanWorkingDay(row)
}

func (s *PgStore) GetWorkingDayByID(ctx context.Context, id uuid.UUID) (*WorkingDay, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+workingDayColumns+`
		FROM clinic_working_days
		WHERE id = $1
	`, id)
	return scanWorkingDay(row)
}

func (s *PgStore) ReplaceWorkingDays(ctx context.Context, clinicID uuid.UUID, days []WorkingDay) ([]WorkingDay, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin replace working days: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM clinic_working_days WHERE clinic_id = $1`, clinicID); err != nil {
		return nil, fmt.Errorf("delete working days: %w", err)
	}

	for _, d := range days {
		id := d.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO clinic_working_days (id, clinic_id, day_of_week, start_time, end_time, is_closed)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, id, clinicID, int16(d.DayOfWeek), d.StartTime.PgTime(), d.EndTime.PgTime(), d.IsClosed)
		if err != nil {
			return nil, fmt.Errorf("insert working day %s: %w", d.DayOfWeek, err)
		}
	}

	rows, err := tx.Query(ctx, `
		SELECT `+workingDayColumns+`
		FROM clinic_working_days
		WHERE clinic_id = $1
		ORDER BY day_of_week
	`, clinicID)
	if err != nil {
		return nil, fmt.Errorf("reload working days: %w", err)
	}
	result, err := collectWorkingDays(rows)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit replace working days: %w", err)
	}
	return result, nil
}

func (s *PgStore) UpdateWorkingDay(ctx context.Context, day WorkingDay) (*WorkingDay, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE clinic_working_days
		SET start_time = $2,
		    end_time = $3,
		    is_closed = $4
		WHERE id = $1
		RETURNING `+workingDayColumns+`
	`, day.ID, day.StartTime.PgTime(), day.EndTime.PgTime(), day.IsClosed)
	return scanWorkingDay(row)
}

// Exceptions

func (s *PgStore) ListExceptions(ctx context.Context, clinicID uuid.UUID) ([]Exception, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+exceptionColumns+`
		FROM clinic_exceptions
		WHERE clinic_id = $1
		ORDER BY exception_date
	`, clinicID)
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}
	defer rows.Close()

	var result []Exception
	for rows.Next() {
		ex, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PgStore) GetException(ctx context.Context, clinicID uuid.UUID, date time.Time) (*Exception, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+exceptionColumns+`
		FROM clinic_exceptions
		WHERE clinic_id = $1 AND exception_date = $2
	`, clinicID, DateOf(date))
	return scanException(row)
}

func (s *PgStore) GetExceptionByID(ctx context.Context, id uuid.UUID) (*Exception, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+exceptionColumns+`
		FROM clinic_exceptions
		WHERE id = $1
	`, id)
	return scanException(row)
}

func (s *PgStore) InsertException(ctx context.Context, ex Exception) (*Exception, error) {
	id := ex.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO clinic_exceptions (id, clinic_id, exception_date, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING `+exceptionColumns+`
	`, id, ex.ClinicID, DateOf(ex.Date), ex.Reason)

	created, err := scanException(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrExceptionExists
		}
		return nil, fmt.Errorf("insert exception: %w", err)
	}
	return created, nil
}

func (s *PgStore) UpsertException(ctx context.Context, ex Exception) (*Exception, error) {
	id := ex.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO clinic_exceptions (id, clinic_id, exception_date, reason)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (clinic_id, exception_date)
		DO UPDATE SET reason = EXCLUDED.reason
		RETURNING `+exceptionColumns+`
	`, id, ex.ClinicID, DateOf(ex.Date), ex.Reason)
	return scanException(row)
}

func (s *PgStore) UpdateException(ctx context.Context, ex Exception) (*Exception, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE clinic_exceptions
		SET exception_date = $2,
		    reason = $3
		WHERE id = $1
		RETURNING `+exceptionColumns+`
	`, ex.ID, DateOf(ex.Date), ex.Reason)

	updated, err := scanException(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrExceptionExists
		}
		return nil, err
	}
	return updated, nil
}

func (s *PgStore) DeleteException(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM clinic_exceptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete exception: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrExceptionNotFound
	}
	return nil
}

package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-queue/internal/schedule"
)

var appointmentCols = []string{
	"id", "clinic_id", "patient_id", "appointment_date", "appointment_time",
	"queue_number", "status", "created_at", "updated_at",
}

func appointmentRow(mock pgxmock.PgxPoolIface, a Appointment) *pgxmock.Rows {
	return mock.NewRows(appointmentCols).AddRow(
		a.ID, a.ClinicID, a.PatientID, a.Date, a.Time.PgTime(),
		a.QueueNumber, string(a.Status), fixedNow, fixedNow,
	)
}

func TestPgRepositoryInsertNumbersUnderAdvisoryLock(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clinicID := uuid.New()
	slot := schedule.NewClock(9, 30)
	want := Appointment{
		ID:          uuid.New(),
		ClinicID:    clinicID,
		PatientID:   "patient-1",
		Date:        monday,
		Time:        slot,
		QueueNumber: 3,
		Status:      StatusBooked,
	}

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(dayLockKey(clinicID, monday)).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("COALESCE\\(MAX\\(queue_number\\), 0\\) \\+ 1").
		WithArgs(clinicID, monday).
		WillReturnRows(mock.NewRows([]string{"next"}).AddRow(3))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(want.ID, clinicID, "patient-1", monday, slot.PgTime(), 3, "booked").
		WillReturnRows(appointmentRow(mock, want))
	mock.ExpectCommit()

	got, err := NewPgRepository(mock).Insert(context.Background(), Appointment{
		ID:        want.ID,
		ClinicID:  clinicID,
		PatientID: "patient-1",
		Date:      monday.Add(15 * time.Hour),
		Time:      slot,
		Status:    StatusBooked,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, got.QueueNumber)
	assert.Equal(t, slot, got.Time)
	assert.Equal(t, StatusBooked, got.Status)
	assert.True(t, got.Date.Equal(monday))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryInsertUniqueViolationIsConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clinicID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(dayLockKey(clinicID, monday)).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("COALESCE").
		WithArgs(clinicID, monday).
		WillReturnRows(mock.NewRows([]string{"next"}).AddRow(1))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), clinicID, "patient-1", monday, pgxmock.AnyArg(), 1, "booked").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_active_slot_uq"})
	mock.ExpectRollback()

	_, err = NewPgRepository(mock).Insert(context.Background(), Appointment{
		ClinicID:  clinicID,
		PatientID: "patient-1",
		Date:      monday,
		Time:      schedule.NewClock(9, 0),
		Status:    StatusBooked,
	})
	require.ErrorIs(t, err, ErrAllocationConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryInsertLockFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clinicID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(dayLockKey(clinicID, monday)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err = NewPgRepository(mock).Insert(context.Background(), Appointment{ClinicID: clinicID, Date: monday, Status: StatusBooked})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAllocationConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryUpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	appt := Appointment{
		ID:          uuid.New(),
		ClinicID:    uuid.New(),
		PatientID:   "patient-1",
		Date:        monday,
		Time:        schedule.NewClock(9, 0),
		QueueNumber: 1,
		Status:      StatusInProgress,
	}

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(appt.ID, "in_progress", "booked").
		WillReturnRows(appointmentRow(mock, appt))
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(appt.ID, "completed", "booked").
		WillReturnError(pgx.ErrNoRows)

	repo := NewPgRepository(mock)
	got, err := repo.UpdateStatus(context.Background(), appt.ID, StatusBooked, StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, got.Status)

	_, err = repo.UpdateStatus(context.Background(), appt.ID, StatusBooked, StatusCompleted)
	require.ErrorIs(t, err, ErrStatusConflict)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryGetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("FROM appointments").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err = NewPgRepository(mock).GetByID(context.Background(), id)
	require.ErrorIs(t, err, ErrAppointmentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryQueueCounters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clinicID := uuid.New()

	mock.ExpectQuery("status IN \\('in_progress', 'completed'\\)").
		WithArgs(clinicID, monday).
		WillReturnRows(mock.NewRows([]string{"current"}).AddRow(4))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(clinicID, monday).
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(6))

	repo := NewPgRepository(mock)
	current, err := repo.CurrentQueueNumber(context.Background(), clinicID, monday)
	require.NoError(t, err)
	assert.Equal(t, 4, current)

	n, err := repo.CountActive(context.Background(), clinicID, monday)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryListByClinicDate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clinicID := uuid.New()
	first := Appointment{ID: uuid.New(), ClinicID: clinicID, PatientID: "p-1", Date: monday, Time: schedule.NewClock(9, 0), QueueNumber: 1, Status: StatusCompleted}
	second := Appointment{ID: uuid.New(), ClinicID: clinicID, PatientID: "p-2", Date: monday, Time: schedule.NewClock(9, 30), QueueNumber: 2, Status: StatusDelayed}

	mock.ExpectQuery("ORDER BY queue_number").
		WithArgs(clinicID, monday).
		WillReturnRows(mock.NewRows(appointmentCols).
			AddRow(first.ID, clinicID, "p-1", monday, first.Time.PgTime(), 1, "completed", fixedNow, fixedNow).
			AddRow(second.ID, clinicID, "p-2", monday, second.Time.PgTime(), 2, "delayed", fixedNow, fixedNow))

	got, err := NewPgRepository(mock).ListByClinicDate(context.Background(), clinicID, monday)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, StatusCompleted, got[0].Status)
	assert.Equal(t, schedule.NewClock(9, 30), got[1].Time)
	assert.Equal(t, StatusDelayed, got[1].Status)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryInsertEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	apptID := uuid.New()
	payload := []byte(`{"queue_number":1}`)

	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs(EventAppointmentBooked, &apptID, payload, (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewPgRepository(mock).InsertEvent(context.Background(), EventLog{
		EventType:     EventAppointmentBooked,
		AppointmentID: &apptID,
		Payload:       payload,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

package identity

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgDirectoryClinicByOwner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clinicID := uuid.New()
	mock.ExpectQuery("FROM clinic_profiles").
		WithArgs("owner-1").
		WillReturnRows(mock.NewRows([]string{"id", "owner_user_id", "doctor_name", "specialty", "slot_duration_minutes"}).
			AddRow(clinicID, "owner-1", "Dr. Salem", "Dermatology", 20))

	c, err := NewPgDirectory(mock).ClinicByOwner(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, clinicID, c.ID)
	assert.Equal(t, 20, c.SlotDurationMinutes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgDirectoryNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM clinic_profiles").
		WithArgs("nobody").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM patients").
		WithArgs("p-404").
		WillReturnError(pgx.ErrNoRows)

	dir := NewPgDirectory(mock)
	_, err = dir.ClinicByOwner(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrClinicNotFound)

	_, err = dir.PatientName(context.Background(), "p-404")
	require.ErrorIs(t, err, ErrPatientNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryDirectory(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()

	saved, err := dir.SaveClinic(ctx, ClinicProfile{OwnerUserID: "owner-1", DoctorName: "Dr. Salem", SlotDurationMinutes: 30})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, saved.ID)

	byOwner, err := dir.ClinicByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, byOwner.ID)

	_, err = dir.ClinicByID(ctx, uuid.New())
	require.ErrorIs(t, err, ErrClinicNotFound)

	require.NoError(t, dir.SavePatient(ctx, Patient{ID: "p-1", DisplayName: "Mona"}))
	name, err := dir.PatientName(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "Mona", name)
}

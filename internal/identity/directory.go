package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-queue/internal/db"
)

var (
	ErrClinicNotFound  = errors.New("clinic not found")
	ErrPatientNotFound = errors.New("patient not found")
)

// ClinicProfile is owned by the registration layer. The queue engine only
// reads the owner and the slot duration.
type ClinicProfile struct {
	ID                  uuid.UUID
	OwnerUserID         string
	DoctorName          string
	Specialty           string
	SlotDurationMinutes int
}

type Patient struct {
	ID          string
	DisplayName string
	Phone       string
}

// Directory resolves clinic profiles and patient display data. Lookups are
// point queries; callers never join against identity tables.
type Directory interface {
	ClinicByID(ctx context.Context, id uuid.UUID) (*ClinicProfile, error)
	ClinicByOwner(ctx context.Context, userID string) (*ClinicProfile, error)
	PatientName(ctx context.Context, patientID string) (string, error)
}

type PgDirectory struct {
	pool db.Querier
}

func NewPgDirectory(pool db.Querier) *PgDirectory {
	return &PgDirectory{pool: pool}
}

const clinicColumns = `id, owner_user_id, doctor_name, specialty, slot_duration_minutes`

func scanClinic(row pgx.Row) (*ClinicProfile, error) {
	var c ClinicProfile

	err := row.Scan(
		&c.ID,
		&c.OwnerUserID,
		&c.DoctorName,
		&c.Specialty,
		&c.SlotDurationMinutes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClinicNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (d *PgDirectory) ClinicByID(ctx context.Context, id uuid.UUID) (*ClinicProfile, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+clinicColumns+`
		FROM clinic_profiles
		WHERE id = $1
	`, id)
	return scanClinic(row)
}

func (d *PgDirectory) ClinicByOwner(ctx context.Context, userID string) (*ClinicProfile, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+clinicColumns+`
		FROM clinic_profiles
		WHERE owner_user_id = $1
	`, userID)
	return scanClinic(row)
}

func (d *PgDirectory) PatientName(ctx context.Context, patientID string) (string, error) {
	var name string
	err := d.pool.QueryRow(ctx, `SELECT display_name FROM patients WHERE id = $1`, patientID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrPatientNotFound
		}
		return "", fmt.Errorf("load patient name: %w", err)
	}
	return name, nil
}

func (d *PgDirectory) SaveClinic(ctx context.Context, c ClinicProfile) (*ClinicProfile, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	row := d.pool.QueryRow(ctx, `
		INSERT INTO clinic_profiles (id, owner_user_id, doctor_name, specialty, slot_duration_minutes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET doctor_name = EXCLUDED.doctor_name,
		    specialty = EXCLUDED.specialty,
		    slot_duration_minutes = EXCLUDED.slot_duration_minutes,
		    updated_at = now()
		RETURNING `+clinicColumns+`
	`, c.ID, c.OwnerUserID, c.DoctorName, c.Specialty, c.SlotDurationMinutes)

	saved, err := scanClinic(row)
	if err != nil {
		return nil, fmt.Errorf("save clinic: %w", err)
	}
	return saved, nil
}

func (d *PgDirectory) SavePatient(ctx context.Context, p Patient) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO patients (id, display_name, phone)
		VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    phone = EXCLUDED.phone
	`, p.ID, p.DisplayName, p.Phone)
	if err != nil {
		return fmt.Errorf("save patient: %w", err)
	}
	return nil
}

// MemoryDirectory backs the in-memory storage driver and tests.
type MemoryDirectory struct {
	mu       sync.RWMutex
	clinics  map[uuid.UUID]ClinicProfile
	patients map[string]Patient
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		clinics:  make(map[uuid.UUID]ClinicProfile),
		patients: make(map[string]Patient),
	}
}

func (d *MemoryDirectory) ClinicByID(ctx context.Context, id uuid.UUID) (*ClinicProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.clinics[id]
	if !ok {
		return nil, ErrClinicNotFound
	}
	return &c, nil
}

func (d *MemoryDirectory) ClinicByOwner(ctx context.Context, userID string) (*ClinicProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, c := range d.clinics {
		if c.OwnerUserID == userID {
			return &c, nil
		}
	}
	return nil, ErrClinicNotFound
}

func (d *MemoryDirectory) PatientName(ctx context.Context, patientID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.patients[patientID]
	if !ok {
		return "", ErrPatientNotFound
	}
	return p.DisplayName, nil
}

func (d *MemoryDirectory) SaveClinic(ctx context.Context, c ClinicProfile) (*ClinicProfile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	d.clinics[c.ID] = c
	return &c, nil
}

func (d *MemoryDirectory) SavePatient(ctx context.Context, p Patient) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.patients[p.ID] = p
	return nil
}

package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-queue/internal/identity"
	"github.com/hackgods/clinic-queue/internal/schedule"
)

const weekDays = 7

// GetAppointmentDetails hydrates an appointment with clinic, patient and
// wait data. Patient data comes from the directory, never from a join.
func (s *Service) GetAppointmentDetails(ctx context.Context, appointmentID uuid.UUID) (*AppointmentDetail, error) {
	appt, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	clinic, err := s.clinicByID(ctx, appt.ClinicID)
	if err != nil {
		return nil, err
	}

	wait, err := s.estimate(ctx, appt, clinic.SlotDurationMinutes)
	if err != nil {
		return nil, fmt.Errorf("estimate wait: %w", err)
	}

	name, err := s.dir.PatientName(ctx, appt.PatientID)
	if err != nil && !errors.Is(err, identity.ErrPatientNotFound) {
		s.log.Warn("patient lookup failed", zap.String("patient_id", appt.PatientID), zap.Error(err))
	}

	return &AppointmentDetail{
		Appointment: *appt,
		DoctorName:  clinic.DoctorName,
		Specialty:   clinic.Specialty,
		PatientName: name,
		Wait:        *wait,
	}, nil
}

// ClinicQueue is the caller's clinic queue for one date, ordered by queue number.
func (s *Service) ClinicQueue(ctx context.Context, clinicUserID string, date time.Time) (*DayQueue, error) {
	clinic, err := s.clinicOf(ctx, clinicUserID)
	if err != nil {
		return nil, err
	}
	date = schedule.DateOf(date)

	appts, err := s.repo.ListByClinicDate(ctx, clinic.ID, date)
	if err != nil {
		return nil, err
	}
	current, err := s.repo.CurrentQueueNumber(ctx, clinic.ID, date)
	if err != nil {
		return nil, err
	}

	return &DayQueue{
		ClinicID:           clinic.ID,
		DoctorName:         clinic.DoctorName,
		Date:               date,
		CurrentQueueNumber: current,
		Counts:             countStatuses(appts),
		Appointments:       appts,
	}, nil
}

// WeeklyQueue summarizes seven days starting at startDate. A day is busy
// when at most a fifth of its capacity is still free.
func (s *Service) WeeklyQueue(ctx context.Context, clinicUserID string, startDate time.Time) (*WeeklyQueue, error) {
	clinic, err := s.clinicOf(ctx, clinicUserID)
	if err != nil {
		return nil, err
	}
	startDate = schedule.DateOf(startDate)
	endDate := startDate.AddDate(0, 0, weekDays)

	appts, err := s.repo.ListByClinicRange(ctx, clinic.ID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string][]Appointment)
	for _, a := range appts {
		key := schedule.FormatDate(a.Date)
		byDate[key] = append(byDate[key], a)
	}

	week := &WeeklyQueue{
		ClinicID:   clinic.ID,
		DoctorName: clinic.DoctorName,
		StartDate:  startDate,
		EndDate:    endDate.AddDate(0, 0, -1),
		Days:       make([]DaySummary, 0, weekDays),
		BusyDays:   []time.Time{},
	}

	for i := 0; i < weekDays; i++ {
		date := startDate.AddDate(0, 0, i)

		plan, err := s.calc.Plan(ctx, clinic.ID, date)
		if err != nil {
			return nil, err
		}
		capacity, err := s.calc.DailyCapacity(ctx, clinic.ID, date, clinic.SlotDurationMinutes)
		if err != nil {
			return nil, err
		}

		counts := countStatuses(byDate[schedule.FormatDate(date)])
		day := DaySummary{
			Date:           date,
			Counts:         counts,
			MaxCapacity:    capacity,
			AvailableSlots: capacity - counts.Active(),
			IsWorkingDay:   plan.WorkingDayOpen(),
			HasException:   plan.Exception != nil,
		}
		if plan.Exception != nil {
			day.ExceptionReason = plan.Exception.Reason
		}
		if plan.WorkingDay != nil {
			start, end := plan.WorkingDay.StartTime, plan.WorkingDay.EndTime
			day.StartTime, day.EndTime = &start, &end
		}

		week.Days = append(week.Days, day)
		week.TotalAppointments += counts.Total
		if capacity > 0 && day.AvailableSlots*5 <= capacity {
			week.BusyDays = append(week.BusyDays, date)
		}
	}

	return week, nil
}

// ClinicAppointments lists every appointment of the caller's clinic, newest date first.
func (s *Service) ClinicAppointments(ctx context.Context, clinicUserID string) ([]Appointment, error) {
	clinic, err := s.clinicOf(ctx, clinicUserID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByClinic(ctx, clinic.ID)
}

func (s *Service) PatientHistory(ctx context.Context, patientID string) (*PatientHistory, error) {
	appts, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	counts := countStatuses(appts)
	return &PatientHistory{
		PatientID:    patientID,
		Total:        counts.Total,
		Completed:    counts.Completed,
		Canceled:     counts.Canceled,
		Appointments: appts,
	}, nil
}

// PatientUpcoming lists live appointments from today on, soonest first.
func (s *Service) PatientUpcoming(ctx context.Context, patientID string) ([]Appointment, error) {
	appts, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	result := []Appointment{}
	for _, a := range appts {
		if !a.Date.Before(today) && !a.Status.Terminal() {
			result = append(result, a)
		}
	}
	sortByDateQueue(result)
	return result, nil
}

// PatientPast lists appointments before today or already finished, newest first.
func (s *Service) PatientPast(ctx context.Context, patientID string) ([]Appointment, error) {
	appts, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	result := []Appointment{}
	for _, a := range appts {
		if a.Date.Before(today) || a.Status.Terminal() {
			result = append(result, a)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Date.After(result[j].Date) })
	return result, nil
}

// NextAvailableDate scans forward one day at a time, comparing the count
// of live appointments with capacity. It does not look at individual slots.
func (s *Service) NextAvailableDate(ctx context.Context, clinicID uuid.UUID, fromDate time.Time) (*NextAvailable, error) {
	clinic, err := s.clinicByID(ctx, clinicID)
	if err != nil {
		return nil, err
	}

	fromDate = schedule.DateOf(fromDate)
	if today := s.today(); fromDate.Before(today) {
		fromDate = today
	}
	return s.scanAvailable(ctx, clinic, fromDate)
}

func (s *Service) scanAvailable(ctx context.Context, clinic *identity.ClinicProfile, from time.Time) (*NextAvailable, error) {
	horizon := s.cfg.BookingHorizonDays

	for i := 0; i < horizon; i++ {
		date := from.AddDate(0, 0, i)

		plan, err := s.calc.Plan(ctx, clinic.ID, date)
		if err != nil {
			return nil, err
		}
		if !plan.Open() {
			continue
		}

		capacity, err := s.calc.DailyCapacity(ctx, clinic.ID, date, clinic.SlotDurationMinutes)
		if err != nil {
			return nil, err
		}
		booked, err := s.repo.CountActive(ctx, clinic.ID, date)
		if err != nil {
			return nil, fmt.Errorf("count appointments: %w", err)
		}

		if booked < capacity {
			start, end := plan.WorkingDay.StartTime, plan.WorkingDay.EndTime
			return &NextAvailable{
				Date:           &date,
				StartTime:      &start,
				EndTime:        &end,
				AvailableSlots: capacity - booked,
				HorizonDays:    horizon,
			}, nil
		}
	}

	return &NextAvailable{HorizonDays: horizon}, nil
}

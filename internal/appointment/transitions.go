package appointment

import (
	"fmt"
)

var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusBooked:     {StatusInProgress, StatusDelayed, StatusCanceled},
	StatusInProgress: {StatusCompleted, StatusDelayed},
	StatusDelayed:    {StatusInProgress, StatusCanceled},
	StatusCompleted:  {},
	StatusCanceled:   {},
}

// CanTransition reports whether from -> to is allowed. Re-applying the
// current status is always allowed and changes nothing.
func CanTransition(from, to AppointmentStatus) bool {
	if from == to {
		_, known := transitions[from]
		return known
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError is returned for a status change outside the table.
type TransitionError struct {
	From AppointmentStatus
	To   AppointmentStatus
}

func (e *TransitionError) Error() string {
	switch e.From {
	case StatusCompleted:
		return "cannot change status of completed appointments"
	case StatusCanceled:
		return "cannot change status of canceled appointments"
	}
	return fmt.Sprintf("cannot change appointment status from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func validateTransition(from, to AppointmentStatus) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

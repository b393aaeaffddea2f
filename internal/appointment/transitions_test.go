package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTableIsComplete(t *testing.T) {
	allowed := map[[2]AppointmentStatus]bool{
		{StatusBooked, StatusInProgress}:    true,
		{StatusBooked, StatusDelayed}:       true,
		{StatusBooked, StatusCanceled}:      true,
		{StatusInProgress, StatusCompleted}: true,
		{StatusInProgress, StatusDelayed}:   true,
		{StatusDelayed, StatusInProgress}:   true,
		{StatusDelayed, StatusCanceled}:     true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := from == to || allowed[[2]AppointmentStatus{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)

			err := validateTransition(from, to)
			if want {
				assert.NoError(t, err, "%s -> %s", from, to)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", from, to)
			}
		}
	}
}

func TestTransitionErrorMessages(t *testing.T) {
	assert.Equal(t, "cannot change status of completed appointments",
		validateTransition(StatusCompleted, StatusBooked).Error())
	assert.Equal(t, "cannot change status of canceled appointments",
		validateTransition(StatusCanceled, StatusInProgress).Error())
	assert.Equal(t, "cannot change appointment status from booked to completed",
		validateTransition(StatusBooked, StatusCompleted).Error())
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("in_progress")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, st)

	_, err = ParseStatus("InProgress")
	require.ErrorIs(t, err, ErrUnknownStatus)

	assert.False(t, CanTransition(AppointmentStatus("lost"), AppointmentStatus("lost")))
}

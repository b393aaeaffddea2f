package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSlots(t *testing.T) {
	tests := []struct {
		name     string
		start    Clock
		end      Clock
		duration int
		want     []Clock
	}{
		{
			name:     "morning half hours",
			start:    NewClock(9, 0),
			end:      NewClock(12, 0),
			duration: 30,
			want: []Clock{
				NewClock(9, 0), NewClock(9, 30), NewClock(10, 0),
				NewClock(10, 30), NewClock(11, 0), NewClock(11, 30),
			},
		},
		{
			name:     "trailing partial slot dropped",
			start:    NewClock(9, 0),
			end:      NewClock(10, 10),
			duration: 20,
			want:     []Clock{NewClock(9, 0), NewClock(9, 20), NewClock(9, 40)},
		},
		{
			name:     "window shorter than one slot",
			start:    NewClock(9, 0),
			end:      NewClock(9, 15),
			duration: 30,
			want:     []Clock{},
		},
		{
			name:     "empty window",
			start:    NewClock(9, 0),
			end:      NewClock(9, 0),
			duration: 15,
			want:     []Clock{},
		},
		{
			name:     "runs to midnight",
			start:    NewClock(22, 0),
			end:      EndOfDay,
			duration: 60,
			want:     []Clock{NewClock(22, 0), NewClock(23, 0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GenerateSlots(tt.start, tt.end, tt.duration)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateSlotsRejectsNonPositiveDuration(t *testing.T) {
	for _, d := range []int{0, -15} {
		_, err := GenerateSlots(NewClock(9, 0), NewClock(17, 0), d)
		require.ErrorIs(t, err, ErrInvalidSlotDuration)
	}
}

func TestGenerateSlotsCountIsFloor(t *testing.T) {
	start := NewClock(8, 0)
	for end := start; end <= NewClock(18, 0); end = end.Add(7) {
		for _, d := range []int{5, 10, 15, 20, 25, 30, 45, 60} {
			slots, err := GenerateSlots(start, end, d)
			require.NoError(t, err)
			assert.Len(t, slots, int(end-start)/d, "window %s-%s duration %d", start, end, d)
		}
	}
}

func TestGenerateSlotsIsDeterministic(t *testing.T) {
	a, err := GenerateSlots(NewClock(9, 0), NewClock(17, 0), 25)
	require.NoError(t, err)
	b, err := GenerateSlots(NewClock(9, 0), NewClock(17, 0), 25)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFirstFreeSlot(t *testing.T) {
	all := []Clock{NewClock(9, 0), NewClock(9, 30), NewClock(10, 0)}

	slot, ok := FirstFreeSlot(all, nil)
	require.True(t, ok)
	assert.Equal(t, NewClock(9, 0), slot)

	slot, ok = FirstFreeSlot(all, []Clock{NewClock(9, 0), NewClock(10, 0)})
	require.True(t, ok)
	assert.Equal(t, NewClock(9, 30), slot)

	_, ok = FirstFreeSlot(all, all)
	assert.False(t, ok)
}

func TestAvailableSlots(t *testing.T) {
	all := []Clock{NewClock(9, 0), NewClock(9, 30), NewClock(10, 0)}
	got := AvailableSlots(all, []Clock{NewClock(9, 30)})
	assert.Equal(t, []Clock{NewClock(9, 0), NewClock(10, 0)}, got)
}

func TestSlotHelpers(t *testing.T) {
	assert.True(t, IsWithinHours(NewClock(9, 0), NewClock(9, 0), NewClock(12, 0)))
	assert.False(t, IsWithinHours(NewClock(12, 0), NewClock(9, 0), NewClock(12, 0)))

	assert.True(t, IsSlotAligned(NewClock(10, 30), NewClock(9, 0), 30))
	assert.False(t, IsSlotAligned(NewClock(10, 20), NewClock(9, 0), 30))
	assert.False(t, IsSlotAligned(NewClock(8, 30), NewClock(9, 0), 30))
}

package schedule

// GenerateSlots returns the start of every full slot in [start, end).
// A trailing window shorter than the slot duration is dropped, so the
// count is always floor((end-start)/duration).
func GenerateSlots(start, end Clock, slotDurationMinutes int) ([]Clock, error) {
	if slotDurationMinutes <= 0 {
		return nil, ErrInvalidSlotDuration
	}
	if end <= start {
		return []Clock{}, nil
	}

	slots := make([]Clock, 0, int(end-start)/slotDurationMinutes)
	for slot := start; slot.Add(slotDurationMinutes) <= end; slot = slot.Add(slotDurationMinutes) {
		slots = append(slots, slot)
	}
	return slots, nil
}

// FirstFreeSlot returns the earliest slot not present in booked.
func FirstFreeSlot(all, booked []Clock) (Clock, bool) {
	taken := make(map[Clock]struct{}, len(booked))
	for _, b := range booked {
		taken[b] = struct{}{}
	}
	for _, slot := range all {
		if _, ok := taken[slot]; !ok {
			return slot, true
		}
	}
	return 0, false
}

// AvailableSlots keeps the order of all and drops every booked slot.
func AvailableSlots(all, booked []Clock) []Clock {
	taken := make(map[Clock]struct{}, len(booked))
	for _, b := range booked {
		taken[b] = struct{}{}
	}
	out := make([]Clock, 0, len(all))
	for _, slot := range all {
		if _, ok := taken[slot]; !ok {
			out = append(out, slot)
		}
	}
	return out
}

func IsWithinHours(t, start, end Clock) bool {
	return t >= start && t < end
}

func IsSlotAligned(t, start Clock, slotDurationMinutes int) bool {
	if slotDurationMinutes <= 0 || t < start {
		return false
	}
	return int(t-start)%slotDurationMinutes == 0
}

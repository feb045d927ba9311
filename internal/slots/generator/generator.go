package generator

import (
	"slotify/internal/slots/timewindow"
	"slotify/pkg/model"
)

// Generate partitions [startTime, endTime) on date into contiguous slots of
// intervalMinutes each, in ascending order. A trailing remainder shorter than
// the interval is dropped. Inputs are expected to have passed the creation
// policy; a range that fits no interval yields an empty slice.
func Generate(date, startTime, endTime string, intervalMinutes int) []model.Slot {
	if intervalMinutes <= 0 {
		return nil
	}

	cursor := timewindow.ToMinutes(startTime)
	end := timewindow.ToMinutes(endTime)
	if cursor < 0 || end < 0 {
		return nil
	}

	slots := make([]model.Slot, 0, max(0, (end-cursor)/intervalMinutes))
	for cursor+intervalMinutes <= end {
		slots = append(slots, model.Slot{
			Date:      date,
			StartTime: timewindow.FormatMinutes(cursor),
			EndTime:   timewindow.FormatMinutes(cursor + intervalMinutes),
		})
		cursor += intervalMinutes
	}
	return slots
}

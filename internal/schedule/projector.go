// Package schedule expands a medication's configured dose times into
// concrete future dose log records.
package schedule

import (
	"strconv"
	"strings"
	"time"

	"medremind/internal/util"
	"medremind/pkg/domain"
)

// ProjectLogs produces one pending log per (day offset, time slot) pair for
// day offsets 0..daysAhead-1 counted from startDate's calendar day.
//
// Slot strings are split on ":" and the segments parsed as base-10 hours and
// minutes. Values are not range-checked; out-of-range components normalize
// forward through time.Date, so "25:00" lands on the next day at 01:00.
// Seconds and sub-seconds of every scheduled timestamp are zero.
func ProjectLogs(medicationID, userID string, timeSlots []string, startDate time.Time, daysAhead int) []domain.MedicationLog {
	now := time.Now().UTC()
	logs := make([]domain.MedicationLog, 0, daysAhead*len(timeSlots))
	for day := 0; day < daysAhead; day++ {
		date := startDate.AddDate(0, 0, day)
		for _, slot := range timeSlots {
			hours, minutes := parseSlot(slot)
			logs = append(logs, domain.MedicationLog{
				ID:            util.NewID(),
				MedicationID:  medicationID,
				UserID:        userID,
				ScheduledTime: time.Date(date.Year(), date.Month(), date.Day(), hours, minutes, 0, 0, date.Location()),
				Status:        domain.LogPending,
				CreatedAt:     now,
			})
		}
	}
	return logs
}

func parseSlot(slot string) (hours, minutes int) {
	parts := strings.Split(slot, ":")
	hours, _ = strconv.Atoi(strings.TrimSpace(parts[0]))
	if len(parts) > 1 {
		minutes, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	return hours, minutes
}

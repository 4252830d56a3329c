package surveillance

import (
	"time"

	"github.com/jwalitptl/surveillance-engine/internal/model"
)

// ComputeWindow derives the acceptable date range around a due date.
// Overrides are returned verbatim when present; otherwise the defaults
// of 14 days before and 28 days after apply. Applied whenever a due date
// is set or changed: creation, manual update, recurrence.
func ComputeWindow(dueDate time.Time, overrideStart, overrideEnd *time.Time) (time.Time, time.Time) {
	start := dueDate.AddDate(0, 0, -model.WindowDaysBefore)
	end := dueDate.AddDate(0, 0, model.WindowDaysAfter)
	if overrideStart != nil {
		start = *overrideStart
	}
	if overrideEnd != nil {
		end = *overrideEnd
	}
	return start, end
}

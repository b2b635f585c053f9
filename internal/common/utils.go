package common

import "time"

// DayLayout is the calendar-day format used to key report and log files.
const DayLayout = "2006-01-02"

// DayStamp returns the YYYY-MM-DD stamp of t in its own location.
func DayStamp(t time.Time) string {
	return t.Format(DayLayout)
}

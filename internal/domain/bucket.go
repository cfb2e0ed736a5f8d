package domain

import "time"

type DayLabel string

const (
	LabelOperational DayLabel = "operational"
	LabelDegraded    DayLabel = "degraded"
	LabelOutage      DayLabel = "outage"
	LabelNoData      DayLabel = "no_data"
)

// DailyBucket is a derived, per-calendar-day availability summary.
// UptimePercent is nil only for no_data days.
type DailyBucket struct {
	Date          time.Time `json:"date"`
	UptimePercent *float64  `json:"uptime_percent"`
	Label         DayLabel  `json:"status_label"`
}

package domain

import "time"

type IncidentStatus string

const (
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentIdentified    IncidentStatus = "identified"
	IncidentMonitoring    IncidentStatus = "monitoring"
	IncidentResolved      IncidentStatus = "resolved"
)

type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

type Incident struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      IncidentStatus `json:"status"`
	Severity    Severity       `json:"severity"`
	CreatedAt   time.Time      `json:"created_at"`
}

// OutageTitle is the derived incident title used to dedupe open incidents per target.
func OutageTitle(t *Target) string {
	name := t.Name
	if name == "" {
		name = t.URL
	}
	return "Service Down: " + name
}

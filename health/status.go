package health

import (
	"regexp"
	"time"
)

// Component names used by the connector.
const (
	ComponentNATS      = "nats"
	ComponentTemplates = "templates"
	ComponentSink      = "sink"
	ComponentPipeline  = "pipeline"
)

// Health levels, ordered from best to worst.
const (
	LevelHealthy   = "healthy"
	LevelDegraded  = "degraded"
	LevelUnhealthy = "unhealthy"
)

// Status is the health state of one component at a point in time.
type Status struct {
	Component   string    `json:"component"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// IsHealthy reports whether the component is fully operational.
func (s Status) IsHealthy() bool { return s.Status == LevelHealthy }

// IsDegraded reports whether the component is operating with reduced
// capability, for example a sink that is buffering because publishes fail.
func (s Status) IsDegraded() bool { return s.Status == LevelDegraded }

// IsUnhealthy reports whether the component is not functioning.
func (s Status) IsUnhealthy() bool { return s.Status == LevelUnhealthy }

// Healthy builds a healthy status for a component.
func Healthy(component, message string) Status {
	return newStatus(component, LevelHealthy, message)
}

// Degraded builds a degraded status for a component.
func Degraded(component, message string) Status {
	return newStatus(component, LevelDegraded, message)
}

// Unhealthy builds an unhealthy status for a component.
func Unhealthy(component, message string) Status {
	return newStatus(component, LevelUnhealthy, message)
}

func newStatus(component, level, message string) Status {
	return Status{
		Component: component,
		Status:    level,
		Message:   sanitizeMessage(message),
		Timestamp: time.Now(),
	}
}

// Aggregate combines component statuses into a single system status. Any
// unhealthy component makes the system unhealthy; any degraded component
// makes it degraded; an empty set is unhealthy because nothing has reported
// yet.
func Aggregate(systemName string, statuses []Status) Status {
	if len(statuses) == 0 {
		return Status{
			Component: systemName,
			Status:    LevelUnhealthy,
			Message:   "no components reporting",
			Timestamp: time.Now(),
		}
	}

	level := LevelHealthy
	var unhealthy, degraded int
	for _, s := range statuses {
		switch {
		case s.IsUnhealthy():
			unhealthy++
		case s.IsDegraded():
			degraded++
		}
	}
	message := "all components healthy"
	switch {
	case unhealthy > 0:
		level = LevelUnhealthy
		message = "one or more components unhealthy"
	case degraded > 0:
		level = LevelDegraded
		message = "one or more components degraded"
	}

	return Status{
		Component:   systemName,
		Status:      level,
		Message:     message,
		Timestamp:   time.Now(),
		SubStatuses: statuses,
	}
}

var (
	urlRegex        = regexp.MustCompile(`(?:https?|nats|wss?)://\S+`)
	ipAddrRegex     = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}(?::\d{2,5})?\b`)
	credentialRegex = regexp.MustCompile(`(?i)(password|token|secret|credential)\s*[:=]\s*\S+`)
)

// sanitizeMessage strips broker URLs, addresses, and credential-looking
// fragments so connection errors can be reported over the health endpoint
// without leaking deployment details.
func sanitizeMessage(msg string) string {
	if msg == "" {
		return ""
	}
	msg = urlRegex.ReplaceAllString(msg, "[URL]")
	msg = ipAddrRegex.ReplaceAllString(msg, "[ADDR]")
	msg = credentialRegex.ReplaceAllString(msg, "$1=[REDACTED]")
	return msg
}

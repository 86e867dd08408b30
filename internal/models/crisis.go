package models

import (
	"time"

	"github.com/google/uuid"
)

// Severity orders crisis urgency. The integer rank makes max-merges and
// threshold checks explicit.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

func (s Severity) Rank() int { return severityRank[s] }

// MaxSeverity returns the more urgent of two severities.
func MaxSeverity(a, b Severity) Severity {
	if a.Rank() >= b.Rank() {
		return a
	}
	return b
}

// ValidSeverity reports whether s is one of the four known levels.
func ValidSeverity(s Severity) bool {
	_, ok := severityRank[s]
	return ok
}

// AlertStatus is the crisis state machine:
//
//	PENDING → ASSIGNED → IN_PROGRESS → RESOLVED
//	PENDING|ASSIGNED → ESCALATED (timer fired or no eligible counselor)
//	ESCALATED → ASSIGNED (counselor responded)
//	ESCALATED → EMERGENCY_DISPATCHED (max escalation level reached)
//
// RESOLVED and EMERGENCY_DISPATCHED are never left once entered, except
// that EMERGENCY_DISPATCHED may still be RESOLVED by a counselor.
type AlertStatus string

const (
	AlertPending             AlertStatus = "PENDING"
	AlertAssigned            AlertStatus = "ASSIGNED"
	AlertInProgress          AlertStatus = "IN_PROGRESS"
	AlertEscalated           AlertStatus = "ESCALATED"
	AlertEmergencyDispatched AlertStatus = "EMERGENCY_DISPATCHED"
	AlertResolved            AlertStatus = "RESOLVED"
)

// Open reports whether the alert still needs attention.
func (s AlertStatus) Open() bool { return s != AlertResolved }

// CrisisAlert tracks one incident of a user needing urgent support. Alerts
// are never deleted; resolution terminalizes them.
type CrisisAlert struct {
	ID                 uuid.UUID   `json:"id"`
	UserID             uuid.UUID   `json:"user_id"`
	Severity           Severity    `json:"severity"`
	Status             AlertStatus `json:"status"`
	Triggers           []string    `json:"triggers"`
	AssignedCounselors []uuid.UUID `json:"assigned_counselors"`
	EscalationLevel    int         `json:"escalation_level"`
	CreatedAt          time.Time   `json:"created_at"`
	RespondedAt        *time.Time  `json:"responded_at,omitempty"`
	ResolvedAt         *time.Time  `json:"resolved_at,omitempty"`
	ResolutionNote     string      `json:"resolution_note,omitempty"`
}

// Primary returns the primary assigned counselor, or uuid.Nil.
func (a *CrisisAlert) Primary() uuid.UUID {
	if len(a.AssignedCounselors) == 0 {
		return uuid.Nil
	}
	return a.AssignedCounselors[0]
}

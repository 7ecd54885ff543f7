package models

import "time"

// ViolationRecord is one denied attempt, recorded append-only. This table
// is the system of record for denial events and the sole input to pattern
// detection; normal operation never mutates or deletes rows (the retention
// sweep is the only deleter).
type ViolationRecord struct {
	ID           string    `db:"id"`
	Identifier   string    `db:"identifier"`
	Dimension    Dimension `db:"dimension"`
	AttemptCount int       `db:"attempt_count"`
	UserAgent    string    `db:"user_agent"`
	RequestPath  string    `db:"request_path"`
	// Request context alongside the denying identifier. These let the
	// pattern detector correlate dimensions of the same request (e.g.
	// one IP behind many distinct emails).
	Email     *string   `db:"email"`
	IPAddress *string   `db:"ip_address"`
	ClientID  *string   `db:"client_id"`
	CreatedAt time.Time `db:"created_at"`
}

// ViolationMetadata carries request context into the violation log.
type ViolationMetadata struct {
	UserAgent   string
	RequestPath string
	Email       string
	IPAddress   string
	ClientID    string
}

// AlertSeverity grades a ViolationAlert for the admin view.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// ViolationAlert is a derived record flagging a repeat offender.
// is_resolved is a manually-set flag, never cleared automatically.
type ViolationAlert struct {
	ID             string        `db:"id"`
	Identifier     string        `db:"identifier"`
	Dimension      Dimension     `db:"dimension"`
	ViolationCount int           `db:"violation_count"`
	Severity       AlertSeverity `db:"severity"`
	AlertType      string        `db:"alert_type"`
	Message        string        `db:"message"`
	IsResolved     bool          `db:"is_resolved"`
	CreatedAt      time.Time     `db:"created_at"`
}

// Pattern types produced by the detector.
const (
	PatternSharedIP     = "shared_ip_many_emails"
	PatternSharedClient = "shared_client_many_emails"
	PatternRapidFire    = "rapid_fire_single_identifier"
)

// ViolationPattern groups identifiers believed to be correlated, with a
// heuristic confidence in [0,1]. Advisory output only; the detector never
// creates blocks.
type ViolationPattern struct {
	ID             string    `db:"id"`
	PatternType    string    `db:"pattern_type"`
	Description    string    `db:"description"`
	Identifiers    []string  `db:"identifiers"`
	ViolationCount int       `db:"violation_count"`
	Confidence     float64   `db:"confidence_score"`
	DetectedAt     time.Time `db:"detected_at"`
}

// ViolatorGroup is a grouped count over the violation log within a
// lookback window, used by alerts and auto-escalation.
type ViolatorGroup struct {
	Identifier string
	Dimension  Dimension
	Count      int
	LastSeen   time.Time
}

// CorrelatedGroup is one shared source identifier (IP or client
// fingerprint) with the distinct email identifiers seen behind it.
type CorrelatedGroup struct {
	Source    string
	Dimension Dimension
	Emails    []string
	Count     int
	FirstSeen time.Time
	LastSeen  time.Time
}

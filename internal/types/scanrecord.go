package types

import "time"

// ScanStatus is the lifecycle state of one backfill cycle.
type ScanStatus string

const (
	ScanRunning   ScanStatus = "Running"
	ScanCompleted ScanStatus = "Completed"
	ScanFailed    ScanStatus = "Failed"
	ScanCancelled ScanStatus = "Cancelled"
)

// ScanRecord is the audit row for one backfill cycle window, created at
// the start of the cycle and updated at completion (spec §3).
type ScanRecord struct {
	ScanID                    string     `bson:"scan_id"`
	UntilSignature            string     `bson:"until_signature"`
	BeforeSignature           string     `bson:"before_signature"`
	Status                    ScanStatus `bson:"status"`
	EventsFound               int        `bson:"events_found"`
	EventsBackfilledCount     int        `bson:"events_backfilled_count"`
	EventsBackfilledSignatures []string  `bson:"events_backfilled_signatures"`
	StartedAt                 time.Time  `bson:"started_at"`
	CompletedAt               *time.Time `bson:"completed_at,omitempty"`
	ErrorMessage              string     `bson:"error_message,omitempty"`
	ProgramFilters            []string   `bson:"program_filters"`
}

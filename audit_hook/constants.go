package audithook

// Action constants for audit events.
const (
	// Grant actions
	ActionGrantCreated      = "grant.created"
	ActionScheduleGenerated = "schedule.generated"

	// Realization actions
	ActionEventsRealized = "events.realized"
	ActionEventCancelled = "event.cancelled"

	// Sweep actions
	ActionSweepCompleted = "sweep.completed"
)

// Resource constants for audit events.
const (
	ResourceGrant    = "grant"
	ResourceSchedule = "schedule"
	ResourceEvent    = "event"
	ResourceSweep    = "sweep"
)

// Category constants for audit events.
const (
	CategoryEquity      = "equity"
	CategoryRealization = "realization"
	CategoryOperations  = "operations"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)

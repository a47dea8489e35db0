package audithook

// Action constants for audit events.
const (
	// Transfer actions
	ActionTransferCompleted = "transfer.completed"
	ActionTransferRejected  = "transfer.rejected"
	ActionTransferDeclined  = "transfer.declined"
	ActionTransferFailed    = "transfer.failed"

	// Reporting actions
	ActionReportGenerated = "report.generated"
)

// Resource constants for audit events.
const (
	ResourceTransaction = "transaction"
	ResourceReport      = "report"
)

// Category constants for audit events.
const (
	CategoryLedger    = "ledger"
	CategoryReporting = "reporting"
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
)

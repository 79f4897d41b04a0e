package domain

// StatementState is the lifecycle state of a query-engine statement.
type StatementState string

const (
	StatementQueued    StatementState = "QUEUED"
	StatementRunning   StatementState = "RUNNING"
	StatementSucceeded StatementState = "SUCCEEDED"
	StatementFailed    StatementState = "FAILED"
	StatementCancelled StatementState = "CANCELLED"
)

// Terminal reports whether the statement will not change state again.
func (s StatementState) Terminal() bool {
	return s == StatementSucceeded || s == StatementFailed || s == StatementCancelled
}

// StatementStatus is a polled statement state with the engine's reason text.
type StatementStatus struct {
	State  StatementState
	Reason string
}

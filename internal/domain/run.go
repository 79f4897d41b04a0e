package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunRecord is the audit entry persisted for every pipeline invocation.
type RunRecord struct {
	ID              uuid.UUID
	Command         string
	State           string
	Counted         int
	Skipped         int
	Published       int
	PublishFailures int
	Dropped         int
	Error           string
	StartedAt       time.Time
	FinishedAt      time.Time
}

// NewRunRecord starts a record for the named command.
func NewRunRecord(command string, now time.Time) RunRecord {
	return RunRecord{ID: uuid.New(), Command: command, StartedAt: now}
}

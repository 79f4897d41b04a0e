package domain

import "errors"

var (
	// ErrStatementFailed is returned when a query-engine statement ends FAILED or CANCELLED.
	ErrStatementFailed = errors.New("statement failed")
	// ErrStatementTimeout is returned when a statement does not finish before the poll deadline.
	ErrStatementTimeout = errors.New("statement timed out")
	// ErrDeleteFailed means a processed queue message could not be deleted.
	ErrDeleteFailed = errors.New("queue message not deleted")
	// ErrTopicNotFound means the publish target does not exist.
	ErrTopicNotFound = errors.New("topic not found")
	// ErrNoSnapshot means a dataset location holds no objects.
	ErrNoSnapshot = errors.New("snapshot not found")
	// ErrRateLimited means an external API answered 429.
	ErrRateLimited = errors.New("rate limited")
	// ErrUpstream marks recoverable failures of external HTTP APIs.
	ErrUpstream = errors.New("upstream unavailable")
)

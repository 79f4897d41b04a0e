package domain

import "time"

// Stage distinguishes the two counting passes.
type Stage string

const (
	StageBookset Stage = "bookset"
	StageBook    Stage = "book"
)

// CountResult is one successfully counted query.
type CountResult struct {
	RequestURL string    `json:"request_url"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	TotalCount int64     `json:"total_count"`
}

// SkippedQuery is a query the mention API permanently rejected.
type SkippedQuery struct {
	Query string `json:"query"`
}

// QueueMessage is a received unit of work plus the token needed to delete it.
type QueueMessage struct {
	ID      string
	Body    string
	Receipt string
}

// PublishEntry is one entry of a batch publish call.
type PublishEntry struct {
	ID      string
	Message string
	GroupID string
}

// MentionOutcome classifies a mention-count response.
type MentionOutcome int

const (
	// MentionUnknown is the zero value; it never comes with a usable count.
	MentionUnknown MentionOutcome = iota
	MentionCounted
	MentionRateLimited
	MentionRejected
)

func (o MentionOutcome) String() string {
	switch o {
	case MentionCounted:
		return "counted"
	case MentionRateLimited:
		return "rate_limited"
	case MentionRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// MentionCount is the parsed answer of the mention-count API.
type MentionCount struct {
	Outcome MentionOutcome
	Start   time.Time
	End     time.Time
	Total   int64
	Reason  string
}

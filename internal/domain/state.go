package domain

// CountingState is the phase of the two-pass counting cycle, derived from
// queue depths and object-storage flags on every invocation.
type CountingState int

const (
	// StateAwaitExtract: both queues are empty and no book-level counts exist yet;
	// the book queue is filled from the bookset-level results.
	StateAwaitExtract CountingState = iota
	// StateCountingBooksets: the bookset queue has work.
	StateCountingBooksets
	// StateCountingBooks: the bookset queue is empty, the book queue has work.
	StateCountingBooks
	// StateReadyForRanking: both queues are empty, book counts exist, top books do not.
	StateReadyForRanking
	// StateIdle: the cycle finished; waiting for the next extraction to reset it.
	StateIdle
)

func (s CountingState) String() string {
	switch s {
	case StateAwaitExtract:
		return "await_extract"
	case StateCountingBooksets:
		return "counting_booksets"
	case StateCountingBooks:
		return "counting_books"
	case StateReadyForRanking:
		return "ready_for_ranking"
	case StateIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// CycleFacts are the externally observed conditions the state is derived from.
type CycleFacts struct {
	BooksetDepth    int
	BookDepth       int
	BookCountsExist bool
	TopBooksExist   bool
}

// NextState derives the counting state from observed facts.
func NextState(f CycleFacts) CountingState {
	switch {
	case f.BooksetDepth > 0:
		return StateCountingBooksets
	case f.BookDepth > 0:
		return StateCountingBooks
	case !f.BookCountsExist:
		return StateAwaitExtract
	case !f.TopBooksExist:
		return StateReadyForRanking
	default:
		return StateIdle
	}
}

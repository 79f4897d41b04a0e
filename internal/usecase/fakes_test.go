package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"BookMentions/internal/domain"
	"BookMentions/internal/ports"
)

type memQueue struct {
	mu        sync.Mutex
	name      string
	seq       int
	visible   []domain.QueueMessage
	inflight  map[string]domain.QueueMessage
	deleted   []string
	deleteErr error
}

var _ ports.Queue = (*memQueue)(nil)

func newMemQueue(name string, bodies ...string) *memQueue {
	q := &memQueue{name: name, inflight: map[string]domain.QueueMessage{}}
	for _, b := range bodies {
		q.push(b)
	}
	return q
}

func (q *memQueue) push(body string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	id := fmt.Sprintf("m%d", q.seq)
	q.visible = append(q.visible, domain.QueueMessage{ID: id, Body: body, Receipt: "r-" + id})
}

func (q *memQueue) Name() string { return q.name }

func (q *memQueue) Depth(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.visible), nil
}

func (q *memQueue) Receive(_ context.Context, max int) ([]domain.QueueMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := min(max, len(q.visible))
	out := append([]domain.QueueMessage(nil), q.visible[:n]...)
	q.visible = q.visible[n:]
	for _, m := range out {
		q.inflight[m.ID] = m
	}
	return out, nil
}

func (q *memQueue) Delete(_ context.Context, msg domain.QueueMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deleteErr != nil {
		return q.deleteErr
	}
	delete(q.inflight, msg.ID)
	q.deleted = append(q.deleted, msg.Body)
	return nil
}

func (q *memQueue) Release(_ context.Context, msg domain.QueueMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.inflight[msg.ID]; !ok {
		return fmt.Errorf("release %s: not in flight", msg.ID)
	}
	delete(q.inflight, msg.ID)
	q.visible = append(q.visible, msg)
	return nil
}

func (q *memQueue) inFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}

// memTopic records publishes and forwards them to its subscribed queue.
type memTopic struct {
	name        string
	subscriber  *memQueue
	calls       [][]domain.PublishEntry
	failPerCall int
	err         error
}

var _ ports.Topic = (*memTopic)(nil)

func (t *memTopic) Name() string { return t.name }

func (t *memTopic) PublishBatch(_ context.Context, entries []domain.PublishEntry) (int, error) {
	if t.err != nil {
		return 0, t.err
	}
	t.calls = append(t.calls, entries)
	failed := min(t.failPerCall, len(entries))
	if t.subscriber != nil {
		for _, e := range entries[failed:] {
			t.subscriber.push(e.Message)
		}
	}
	return failed, nil
}

func (t *memTopic) messages() []string {
	var out []string
	for _, call := range t.calls {
		for _, e := range call {
			out = append(out, e.Message)
		}
	}
	return out
}

// fakeCounter answers Counted with total 1 unless told otherwise.
type fakeCounter struct {
	mu       sync.Mutex
	outcomes map[string]domain.MentionCount
	totals   map[string]int64
	errs     map[string]error
	calls    map[string]int
}

var _ ports.MentionCounter = (*fakeCounter)(nil)

func newFakeCounter() *fakeCounter {
	return &fakeCounter{
		outcomes: map[string]domain.MentionCount{},
		totals:   map[string]int64{},
		errs:     map[string]error{},
		calls:    map[string]int{},
	}
}

func (c *fakeCounter) Count(_ context.Context, requestURL string) (domain.MentionCount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[requestURL]++
	if err := c.errs[requestURL]; err != nil {
		return domain.MentionCount{}, err
	}
	if mc, ok := c.outcomes[requestURL]; ok {
		return mc, nil
	}
	total, ok := c.totals[requestURL]
	if !ok {
		total = 1
	}
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return domain.MentionCount{Outcome: domain.MentionCounted, Start: start, End: start.Add(7 * 24 * time.Hour), Total: total}, nil
}

// fakeEngine finishes every statement after pollsBeforeDone RUNNING polls.
type fakeEngine struct {
	statements      []string
	outputs         []string
	final           domain.StatementState
	pollsBeforeDone int
	polls           map[string]int
}

var _ ports.QueryEngine = (*fakeEngine)(nil)

func (e *fakeEngine) Start(_ context.Context, statement, output string) (string, error) {
	e.statements = append(e.statements, statement)
	e.outputs = append(e.outputs, output)
	return fmt.Sprintf("exec-%d", len(e.statements)), nil
}

func (e *fakeEngine) Status(_ context.Context, id string) (domain.StatementStatus, error) {
	if e.polls == nil {
		e.polls = map[string]int{}
	}
	e.polls[id]++
	if e.pollsBeforeDone < 0 || e.polls[id] <= e.pollsBeforeDone {
		return domain.StatementStatus{State: domain.StatementRunning}, nil
	}
	if e.final == "" {
		return domain.StatementStatus{State: domain.StatementSucceeded}, nil
	}
	return domain.StatementStatus{State: e.final, Reason: "syntax error"}, nil
}

type fakeIndex struct {
	crawl string
	err   error
}

func (i fakeIndex) LatestCrawl(context.Context) (string, error) { return i.crawl, i.err }

type fakeMetadata struct {
	books map[string]domain.RawBook
	calls [][]string
}

func (m *fakeMetadata) LookupBatch(_ context.Context, isbns []string) ([]domain.RawBook, error) {
	m.calls = append(m.calls, isbns)
	var out []domain.RawBook
	for _, isbn := range isbns {
		if b, ok := m.books[isbn]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	subjects []string
	bodies   []string
}

func (n *fakeNotifier) Alert(_ context.Context, subject, body string) error {
	n.subjects = append(n.subjects, subject)
	n.bodies = append(n.bodies, body)
	return nil
}

type fakeLedger struct {
	runs []domain.RunRecord
	err  error
}

func (l *fakeLedger) SaveRun(_ context.Context, run domain.RunRecord) error {
	if l.err != nil {
		return l.err
	}
	l.runs = append(l.runs, run)
	return nil
}

func (l *fakeLedger) RecentRuns(context.Context, int) ([]domain.RunRecord, error) {
	return l.runs, nil
}

func rawBook(isbn, title, date string, pages int, authors ...string) domain.RawBook {
	return domain.RawBook{
		ISBN:          isbn,
		Title:         title,
		Authors:       authors,
		Pages:         &pages,
		DatePublished: domain.FlexString(date),
	}
}

func noSleep(calls *int) func(context.Context, time.Duration) error {
	return func(context.Context, time.Duration) error {
		*calls++
		return nil
	}
}

package dashboard

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"BookMentions/internal/domain"
	"BookMentions/internal/ports"
	"BookMentions/internal/ranking"
)

// Handler serves the dashboard API.
type Handler struct {
	cache  *Cache
	ledger ports.RunLedger
	now    func() time.Time
	log    *slog.Logger
}

// NewHandler wires the snapshot cache and an optional run ledger.
func NewHandler(cache *Cache, ledger ports.RunLedger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{cache: cache, ledger: ledger, now: time.Now, log: logger}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

type topBooksResponse struct {
	Version      string              `json:"version"`
	BooksTracked int                 `json:"books_tracked"`
	LoadedAt     time.Time           `json:"loaded_at"`
	Books        []domain.RankedBook `json:"books"`
}

type statsResponse struct {
	Version string           `json:"version"`
	Buckets []ranking.Bucket `json:"buckets"`
}

type runResponse struct {
	ID              string     `json:"id"`
	Command         string     `json:"command"`
	State           string     `json:"state"`
	Counted         int        `json:"counted"`
	Skipped         int        `json:"skipped"`
	Published       int        `json:"published"`
	PublishFailures int        `json:"publish_failures"`
	Dropped         int        `json:"dropped"`
	Error           string     `json:"error,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (*Snapshot, bool) {
	snap, err := h.cache.Current(r.Context())
	if errors.Is(err, domain.ErrNoSnapshot) {
		writeError(w, http.StatusNotFound, "No ranked list published yet")
		return nil, false
	}
	if err != nil {
		h.log.Error("load snapshot", "error", err)
		writeError(w, http.StatusServiceUnavailable, "Snapshot unavailable")
		return nil, false
	}
	return snap, true
}

// TopBooks returns the ranked list, optionally cut to ?limit=N.
func (h *Handler) TopBooks(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	books := snap.Books
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n < len(books) {
			books = books[:n]
		}
	}

	writeJSON(w, http.StatusOK, topBooksResponse{
		Version:      snap.Version,
		BooksTracked: snap.BooksTracked,
		LoadedAt:     snap.LoadedAt,
		Books:        books,
	})
}

// YearStats sums mentions per publication year.
func (h *Handler) YearStats(w http.ResponseWriter, r *http.Request) {
	if snap, ok := h.snapshot(w, r); ok {
		writeJSON(w, http.StatusOK, statsResponse{Version: snap.Version, Buckets: ranking.MentionsByYear(snap.Books)})
	}
}

// EraStats sums mentions per 25-year era.
func (h *Handler) EraStats(w http.ResponseWriter, r *http.Request) {
	if snap, ok := h.snapshot(w, r); ok {
		writeJSON(w, http.StatusOK, statsResponse{
			Version: snap.Version,
			Buckets: ranking.MentionsByEra(snap.Books, h.now().Year()),
		})
	}
}

// AuthorStats sums mentions per author.
func (h *Handler) AuthorStats(w http.ResponseWriter, r *http.Request) {
	if snap, ok := h.snapshot(w, r); ok {
		writeJSON(w, http.StatusOK, statsResponse{Version: snap.Version, Buckets: ranking.MentionsByAuthor(snap.Books)})
	}
}

// Runs lists recent pipeline invocations.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	out := []runResponse{}
	if h.ledger == nil {
		writeJSON(w, http.StatusOK, out)
		return
	}

	runs, err := h.ledger.RecentRuns(r.Context(), limit)
	if err != nil {
		h.log.Error("recent runs", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load runs")
		return
	}
	for _, run := range runs {
		resp := runResponse{
			ID:              run.ID.String(),
			Command:         run.Command,
			State:           run.State,
			Counted:         run.Counted,
			Skipped:         run.Skipped,
			Published:       run.Published,
			PublishFailures: run.PublishFailures,
			Dropped:         run.Dropped,
			Error:           run.Error,
			StartedAt:       run.StartedAt,
		}
		if !run.FinishedAt.IsZero() {
			finished := run.FinishedAt
			resp.FinishedAt = &finished
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

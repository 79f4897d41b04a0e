// Package ranking selects the most-mentioned queries, joins them back to book
// metadata and shapes the published top list.
package ranking

import (
	"sort"

	"BookMentions/internal/domain"
	"BookMentions/internal/querybuilder"
)

const (
	// CandidateSize is how many counted queries survive into the join. It is
	// larger than FinalSize because dedup and missing metadata drop rows.
	CandidateSize = 300
	// FinalSize is the length of the published list.
	FinalSize = 100
)

// TopCounts returns the n highest counts. Ties keep input order.
func TopCounts(counts []domain.CountResult, n int) []domain.CountResult {
	sorted := make([]domain.CountResult, len(counts))
	copy(sorted, counts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TotalCount > sorted[j].TotalCount
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// LatestByRequest keeps one count per request URL, the one with the latest
// start date, ordered newest first.
func LatestByRequest(counts []domain.CountResult) []domain.CountResult {
	sorted := make([]domain.CountResult, len(counts))
	copy(sorted, counts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartDate.After(sorted[j].StartDate)
	})
	seen := make(map[string]struct{}, len(sorted))
	out := sorted[:0]
	for _, c := range sorted {
		if _, ok := seen[c.RequestURL]; ok {
			continue
		}
		seen[c.RequestURL] = struct{}{}
		out = append(out, c)
	}
	return out
}

// UniqueBooks drops exact duplicate records, keeping first occurrences.
func UniqueBooks(books []domain.BookRecord) []domain.BookRecord {
	seen := make(map[domain.BookRecord]struct{}, len(books))
	out := make([]domain.BookRecord, 0, len(books))
	for _, b := range books {
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	return out
}

// Join matches counts to books by query key. Counts without a titled book
// are dropped; the result is ordered by total count, ties in count order.
func Join(counts []domain.CountResult, books []domain.BookRecord) []domain.JoinedBook {
	byQuery := make(map[string]domain.BookRecord, len(books))
	for _, b := range books {
		if _, ok := byQuery[b.Query]; !ok {
			byQuery[b.Query] = b
		}
	}

	joined := make([]domain.JoinedBook, 0, len(counts))
	for _, c := range counts {
		b, ok := byQuery[querybuilder.QueryOf(c.RequestURL)]
		if !ok || b.Title == "" {
			continue
		}
		joined = append(joined, domain.JoinedBook{BookRecord: b, RequestURL: c.RequestURL, TotalCount: c.TotalCount})
	}
	sort.SliceStable(joined, func(i, j int) bool {
		return joined[i].TotalCount > joined[j].TotalCount
	})
	return joined
}

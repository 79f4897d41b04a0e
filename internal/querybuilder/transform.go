package querybuilder

import (
	"sort"
	"strings"

	"BookMentions/internal/domain"
)

// MinDistinctWords is the smallest number of distinct words a query needs to
// be specific enough to search for.
const MinDistinctWords = 3

// TransformStats reports how many books each rule removed.
type TransformStats struct {
	Input        int
	NoAuthors    int
	Duplicates   int
	Incomplete   int
	TooFewWords  int
	Doubled      int
	DuplicateKey int
	AuthorOnly   int
}

// Transform normalizes raw metadata into query-keyed book records. Books are
// dropped when they lack authors, pages or a publication date, or when their
// query is too vague to count mentions reliably. Input order is preserved.
func Transform(raw []domain.RawBook) ([]domain.BookRecord, TransformStats) {
	stats := TransformStats{Input: len(raw)}
	seen := make(map[domain.BookRecord]struct{}, len(raw))
	candidates := make([]domain.BookRecord, 0, len(raw))

	for _, rb := range raw {
		authors := strings.TrimSpace(strings.Join(rb.Authors, " "))
		if authors == "" {
			stats.NoAuthors++
			continue
		}
		rec := domain.BookRecord{
			Publisher:     rb.Publisher,
			Title:         rb.Title,
			DatePublished: string(rb.DatePublished),
			Authors:       authors,
			ISBN:          rb.ISBN,
			Image:         rb.Image,
			Binding:       rb.Binding,
		}
		if rb.Pages != nil {
			rec.Pages = *rb.Pages
		}
		if _, dup := seen[rec]; dup {
			stats.Duplicates++
			continue
		}
		seen[rec] = struct{}{}

		if rb.Pages == nil || rec.DatePublished == "" {
			stats.Incomplete++
			continue
		}
		candidates = append(candidates, rec)
	}

	keys := make(map[string]struct{}, len(candidates))
	out := make([]domain.BookRecord, 0, len(candidates))
	for _, rec := range candidates {
		rec.TitleShort = ShortTitle(rec.Title)
		words := strings.Fields(Clean(rec.TitleShort + " " + rec.Authors))

		switch {
		case len(distinct(words)) < MinDistinctWords:
			stats.TooFewWords++
			continue
		case isDoubled(words):
			stats.Doubled++
			continue
		}

		// Repeated words stay in the key, so "Tora Tora Tora" and "Tora" by
		// the same author remain separate books.
		sorted := append([]string(nil), words...)
		sort.Strings(sorted)
		rec.Query = Encode(strings.Join(sorted, " "))
		if _, dup := keys[rec.Query]; dup {
			stats.DuplicateKey++
			continue
		}
		keys[rec.Query] = struct{}{}

		if sameSet(distinct(sorted), authorWords(rec.Authors)) {
			stats.AuthorOnly++
			continue
		}
		out = append(out, rec)
	}
	return out, stats
}

// DedupeByQuery keeps the first record for every query key.
func DedupeByQuery(books []domain.BookRecord) []domain.BookRecord {
	seen := make(map[string]struct{}, len(books))
	out := make([]domain.BookRecord, 0, len(books))
	for _, b := range books {
		if _, ok := seen[b.Query]; ok {
			continue
		}
		seen[b.Query] = struct{}{}
		out = append(out, b)
	}
	return out
}

// ShortTitle is the part of a title before its first colon.
func ShortTitle(title string) string {
	short, _, _ := strings.Cut(title, ":")
	return strings.TrimSpace(short)
}

// isDoubled reports a phrase repeated exactly twice, such as a publisher
// credited as its own author.
func isDoubled(words []string) bool {
	counts := make(map[string]int, len(words))
	for _, w := range words {
		counts[w]++
	}
	if len(counts)*2 != len(words) {
		return false
	}
	for _, n := range counts {
		if n != 2 {
			return false
		}
	}
	return true
}

func authorWords(authors string) []string {
	s := strings.ToLower(authors)
	s = strings.NewReplacer(",", "", ".", "").Replace(s)
	return distinct(strings.Fields(s))
}

func distinct(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := toSet(a)
	for _, w := range b {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

package ranking

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"BookMentions/internal/domain"
)

// DefaultDenylist names "authors" that are franchises, studios or public
// figures whose viral mentions have nothing to do with books. Entries are
// regular expressions matched anywhere in the display author.
var DefaultDenylist = []string{
	"Disney", "Marvel", "Atlus", "Capcom", "EA DICE", ". HBO", "Aesop", "Gandhi",
	"Bruce Springsteen", "John Lennon", "Kobe Bryant", "George Lucas", "Muhammad Ali",
	"George Soros", "Albert Einstein", "John Paul II", "From Software", "Thich Nhat Hanh",
	"Martin Luther King", "Kansas", "Rich Little",
}

// DefaultYearOverrides pins publication years the metadata gets wrong.
// Orwell's Nineteen Eighty-Four was republished under the title 1984.
var DefaultYearOverrides = map[string]int{"1984": 1949}

var (
	parenthetical = regexp.MustCompile(`\(.*?\)`)
	nonWordChar   = regexp.MustCompile(`\W`)
)

// Ranker turns joined rows into the published list.
type Ranker struct {
	deny      *regexp.Regexp
	overrides map[string]int
	size      int
	excluded  map[string]struct{}
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithDenylist replaces the author denylist. An empty list keeps the default.
func WithDenylist(patterns []string) Option {
	return func(r *Ranker) {
		if len(patterns) > 0 {
			r.deny = compileDenylist(patterns)
		}
	}
}

// WithSize sets how many rows are published.
func WithSize(n int) Option {
	return func(r *Ranker) {
		if n > 0 {
			r.size = n
		}
	}
}

// WithYearOverrides replaces the per-title year overrides. An empty map keeps
// the default.
func WithYearOverrides(o map[string]int) Option {
	return func(r *Ranker) {
		if len(o) > 0 {
			r.overrides = o
		}
	}
}

// NewRanker returns a ranker with the default rules.
func NewRanker(opts ...Option) *Ranker {
	r := &Ranker{
		deny:      compileDenylist(DefaultDenylist),
		overrides: DefaultYearOverrides,
		size:      FinalSize,
		excluded:  map[string]struct{}{"It": {}},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func compileDenylist(patterns []string) *regexp.Regexp {
	if len(patterns) == 0 {
		return nil
	}
	return regexp.MustCompile(strings.Join(patterns, "|"))
}

type editionKey struct{ title, author string }

type row struct {
	domain.RankedBook
	first, second string
}

// Rank shapes joined rows for display, resolves publication years against
// the curated editions, filters non-book entities and near duplicates, and
// returns at most the configured number of rows ranked from 1.
func (r *Ranker) Rank(joined []domain.JoinedBook, editions []domain.EarliestEdition) []domain.RankedBook {
	earliest := make(map[editionKey]int, len(editions))
	for _, e := range editions {
		k := editionKey{nonWordChar.ReplaceAllString(e.Title, " "), e.Authors}
		if _, ok := earliest[k]; !ok {
			earliest[k] = e.Year
		}
	}

	rows := make([]row, 0, len(joined))
	for _, j := range joined {
		author := DisplayAuthor(j.Authors)
		year, ok := earliest[editionKey{nonWordChar.ReplaceAllString(j.TitleShort, " "), author}]
		if !ok {
			year, ok = PublicationYear(j.DatePublished)
		}
		if !ok {
			continue
		}
		if y, pinned := r.overrides[j.TitleShort]; pinned {
			year = y
		}
		if r.deny != nil && r.deny.MatchString(author) {
			continue
		}
		title := strings.TrimSpace(parenthetical.ReplaceAllString(j.TitleShort, ""))
		if _, skip := r.excluded[title]; skip {
			continue
		}
		first, second := authorTokens(author)
		rows = append(rows, row{
			RankedBook: domain.RankedBook{
				ShortenedTitle: title,
				Authors:        author,
				Year:           year,
				Mentions:       j.TotalCount,
				Query:          j.Query,
			},
			first:  first,
			second: second,
		})
	}

	rows = dropDuplicates(rows, func(x row) editionKey { return editionKey{x.ShortenedTitle, x.first} })
	rows = dropDuplicates(rows, func(x row) editionKey { return editionKey{x.ShortenedTitle, x.second} })

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Mentions > rows[j].Mentions })
	if len(rows) > r.size {
		rows = rows[:r.size]
	}
	out := make([]domain.RankedBook, len(rows))
	for i, x := range rows {
		x.Rank = i + 1
		out[i] = x.RankedBook
	}
	return out
}

func dropDuplicates(rows []row, key func(row) editionKey) []row {
	seen := make(map[editionKey]struct{}, len(rows))
	out := make([]row, 0, len(rows))
	for _, x := range rows {
		k := key(x)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, x)
	}
	return out
}

// authorTokens returns the first author word and the third word, or the
// second when there is no third. Comparing both catches the same person
// credited with and without a middle name or initial.
func authorTokens(author string) (string, string) {
	fields := strings.Fields(author)
	var first, second string
	if len(fields) > 0 {
		first = fields[0]
	}
	switch {
	case len(fields) > 2:
		second = fields[2]
	case len(fields) > 1:
		second = fields[1]
	}
	return first, second
}

// DisplayAuthor turns "Last, First" into "First Last".
func DisplayAuthor(authors string) string {
	parts := strings.Split(authors, ", ")
	if len(parts) > 1 {
		return strings.TrimSpace(parts[1] + " " + parts[0])
	}
	return strings.TrimSpace(parts[0])
}

// PublicationYear parses the year from the first four characters of a
// publication date.
func PublicationYear(date string) (int, bool) {
	if len(date) < 4 {
		return 0, false
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0, false
	}
	return y, true
}

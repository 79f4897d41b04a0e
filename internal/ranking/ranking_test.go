package ranking

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BookMentions/internal/domain"
	"BookMentions/internal/querybuilder"
)

const endpoint = querybuilder.DefaultEndpoint

func joined(title, authors, date string, mentions int64) domain.JoinedBook {
	q := querybuilder.Fragment(title + " " + authors)
	return domain.JoinedBook{
		BookRecord: domain.BookRecord{
			Title:         title,
			TitleShort:    querybuilder.ShortTitle(title),
			Authors:       authors,
			DatePublished: date,
			Query:         q,
		},
		RequestURL: endpoint + q,
		TotalCount: mentions,
	}
}

func TestTopCountsIsStable(t *testing.T) {
	t.Parallel()

	counts := []domain.CountResult{
		{RequestURL: "a", TotalCount: 5},
		{RequestURL: "b", TotalCount: 9},
		{RequestURL: "c", TotalCount: 5},
		{RequestURL: "d", TotalCount: 1},
	}
	got := TopCounts(counts, 3)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{got[0].RequestURL, got[1].RequestURL, got[2].RequestURL})
	assert.Equal(t, got, TopCounts(counts, 3))
	assert.Equal(t, "a", counts[0].RequestURL, "input untouched")
	assert.Len(t, TopCounts(counts, 10), 4)
}

func TestLatestByRequest(t *testing.T) {
	t.Parallel()

	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	counts := []domain.CountResult{
		{RequestURL: "a", StartDate: day(1), TotalCount: 1},
		{RequestURL: "b", StartDate: day(2), TotalCount: 2},
		{RequestURL: "a", StartDate: day(3), TotalCount: 3},
	}
	got := LatestByRequest(counts)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].RequestURL)
	assert.EqualValues(t, 3, got[0].TotalCount)
	assert.Equal(t, "b", got[1].RequestURL)
}

func TestJoin(t *testing.T) {
	t.Parallel()

	books := []domain.BookRecord{
		{Title: "Moby Dick", Query: "(dick%20moby)", ISBN: "1"},
		{Title: "Moby Dick Again", Query: "(dick%20moby)", ISBN: "2"},
		{Title: "", Query: "(untitled%20x%20y)"},
		{Title: "War and Peace", Query: "(peace%20war)", ISBN: "3"},
	}
	counts := []domain.CountResult{
		{RequestURL: endpoint + "(dick%20moby)", TotalCount: 10},
		{RequestURL: endpoint + "(untitled%20x%20y)", TotalCount: 50},
		{RequestURL: endpoint + "(missing)", TotalCount: 70},
		{RequestURL: endpoint + "(peace%20war)", TotalCount: 20},
	}

	got := Join(counts, books)
	require.Len(t, got, 2)
	assert.Equal(t, "3", got[0].ISBN)
	assert.Equal(t, "1", got[1].ISBN, "first matching book wins")
	assert.EqualValues(t, 20, got[0].TotalCount)
}

func TestUniqueBooks(t *testing.T) {
	t.Parallel()

	a := domain.BookRecord{ISBN: "1", Query: "q"}
	b := domain.BookRecord{ISBN: "2", Query: "q"}
	assert.Equal(t, []domain.BookRecord{a, b}, UniqueBooks([]domain.BookRecord{a, b, a}))
}

func TestRankCollapsesEditionsAndPinsYear(t *testing.T) {
	t.Parallel()

	rows := []domain.JoinedBook{
		joined("1984", "Orwell, George", "1961-01-01", 900),
		joined("1984: Signet Classics", "George Orwell", "1977", 500),
	}
	got := NewRanker().Rank(rows, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "1984", got[0].ShortenedTitle)
	assert.Equal(t, "George Orwell", got[0].Authors)
	assert.Equal(t, 1949, got[0].Year)
	assert.EqualValues(t, 900, got[0].Mentions)
	assert.Equal(t, 1, got[0].Rank)
}

func TestRankPrefersEarliestEdition(t *testing.T) {
	t.Parallel()

	rows := []domain.JoinedBook{joined("Jane Eyre", "Brontë, Charlotte", "2003", 40)}
	editions := []domain.EarliestEdition{{Title: "Jane Eyre", Authors: "Charlotte Brontë", Year: 1847}}

	got := NewRanker().Rank(rows, editions)
	require.Len(t, got, 1)
	assert.Equal(t, 1847, got[0].Year)
}

func TestRankFilters(t *testing.T) {
	t.Parallel()

	rows := []domain.JoinedBook{
		joined("Frozen Storybook", "Disney Book Group", "2013", 100),
		joined("Letter from Birmingham Jail", "Martin Luther King Jr.", "1963", 90),
		joined("It", "King, Stephen", "1986", 80),
		joined("No Year", "Some Author", "n/a", 70),
		joined("Dune (Deluxe)", "Frank Herbert", "1965", 60),
		joined("Dune", "Frank P. Herbert", "1990", 50),
	}
	got := NewRanker().Rank(rows, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "Dune", got[0].ShortenedTitle)
	assert.Equal(t, 1965, got[0].Year)
	assert.EqualValues(t, 60, got[0].Mentions)
}

func TestRankSecondAuthorTokenDedupe(t *testing.T) {
	t.Parallel()

	rows := []domain.JoinedBook{
		joined("Emma", "Jane Austen", "1815", 30),
		joined("Emma", "J. Austen", "1900", 20),
		joined("Emma", "Someone Else", "2001", 10),
	}
	got := NewRanker().Rank(rows, nil)
	require.Len(t, got, 2)
	assert.Equal(t, "Jane Austen", got[0].Authors)
	assert.Equal(t, "Someone Else", got[1].Authors)
	assert.Equal(t, 2, got[1].Rank)
}

func TestRankLimitsSize(t *testing.T) {
	t.Parallel()

	var rows []domain.JoinedBook
	for i := 0; i < 10; i++ {
		rows = append(rows, joined(fmt.Sprintf("Book %d", i), fmt.Sprintf("Author%d Name", i), "2000", int64(100-i)))
	}
	got := NewRanker(WithSize(3), WithDenylist(nil)).Rank(rows, nil)
	require.Len(t, got, 3)
	for i, b := range got {
		assert.Equal(t, i+1, b.Rank)
	}
	assert.Equal(t, "Book 0", got[0].ShortenedTitle)
}

func TestDisplayAuthor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "George Orwell", DisplayAuthor("Orwell, George"))
	assert.Equal(t, "George Orwell", DisplayAuthor("George Orwell"))
	assert.Equal(t, "Plato", DisplayAuthor(" Plato "))
}

func TestStats(t *testing.T) {
	t.Parallel()

	books := []domain.RankedBook{
		{Authors: "A", Year: 1949, Mentions: 10},
		{Authors: "B", Year: 1847, Mentions: 5},
		{Authors: "A", Year: 1950, Mentions: 1},
		{Authors: "C", Year: 2010, Mentions: 7},
	}

	assert.Equal(t, []Bucket{{"1847", 5}, {"1949", 10}, {"1950", 1}, {"2010", 7}}, MentionsByYear(books))
	assert.Equal(t, []Bucket{{"A", 11}, {"C", 7}, {"B", 5}}, MentionsByAuthor(books))

	eras := MentionsByEra(books, 2026)
	require.Equal(t, "-10000 - 1900", eras[0].Label)
	assert.EqualValues(t, 5, eras[0].Mentions)
	assert.Equal(t, "1925 - 1950", eras[2].Label)
	assert.EqualValues(t, 11, eras[2].Mentions)
	assert.Equal(t, "2000 - 2025", eras[5].Label)
	assert.EqualValues(t, 7, eras[5].Mentions)
	assert.Equal(t, "2025 - 2026", eras[len(eras)-1].Label)
}

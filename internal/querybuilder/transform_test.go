package querybuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BookMentions/internal/domain"
)

func pages(n int) *int { return &n }

func rawBook(title string, authors ...string) domain.RawBook {
	return domain.RawBook{
		Publisher:     "Penguin",
		Title:         title,
		Pages:         pages(300),
		DatePublished: "1961",
		Authors:       authors,
		ISBN:          "978" + title,
		Binding:       "Paperback",
	}
}

func TestTransformBuildsSortedQuery(t *testing.T) {
	t.Parallel()

	books, stats := Transform([]domain.RawBook{rawBook("Nineteen Eighty-Four: A Novel", "Orwell, George")})
	require.Len(t, books, 1)
	assert.Equal(t, 1, stats.Input)

	b := books[0]
	assert.Equal(t, "Nineteen Eighty-Four", b.TitleShort)
	assert.Equal(t, "Orwell, George", b.Authors)
	assert.Equal(t, 300, b.Pages)
	assert.Equal(t, "(eighty%20four%20george%20nineteen%20orwell)", b.Query)
}

func TestTransformKeyKeepsRepeatedWords(t *testing.T) {
	t.Parallel()

	books, stats := Transform([]domain.RawBook{
		rawBook("Tora Tora Tora", "Gordon Prange"),
		rawBook("Tora", "Gordon Prange"),
	})
	require.Len(t, books, 2)
	assert.Zero(t, stats.DuplicateKey)
	assert.Equal(t, "(gordon%20prange%20tora%20tora%20tora)", books[0].Query)
	assert.Equal(t, "(gordon%20prange%20tora)", books[1].Query)
}

func TestTransformRejections(t *testing.T) {
	t.Parallel()

	noPages := rawBook("Moby Dick", "Herman Melville")
	noPages.Pages = nil
	noDate := rawBook("Moby Dick", "Herman Melville")
	noDate.DatePublished = ""

	tests := []struct {
		name  string
		book  domain.RawBook
		check func(t *testing.T, s TransformStats)
	}{
		{"no authors", rawBook("Moby Dick"), func(t *testing.T, s TransformStats) { assert.Equal(t, 1, s.NoAuthors) }},
		{"blank authors", rawBook("Moby Dick", " "), func(t *testing.T, s TransformStats) { assert.Equal(t, 1, s.NoAuthors) }},
		{"missing pages", noPages, func(t *testing.T, s TransformStats) { assert.Equal(t, 1, s.Incomplete) }},
		{"missing date", noDate, func(t *testing.T, s TransformStats) { assert.Equal(t, 1, s.Incomplete) }},
		{"too few words", rawBook("Orwell", "George Orwell"), func(t *testing.T, s TransformStats) { assert.Equal(t, 1, s.TooFewWords) }},
		{"phrase doubled", rawBook("Taste of Home", "Taste of Home"), func(t *testing.T, s TransformStats) { assert.Equal(t, 1, s.Doubled) }},
		{"author only", rawBook("Mark Twain", "Twain, Mark Samuel"), func(t *testing.T, s TransformStats) { assert.Equal(t, 1, s.AuthorOnly) }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			books, stats := Transform([]domain.RawBook{tt.book})
			assert.Empty(t, books)
			tt.check(t, stats)
		})
	}
}

func TestTransformDeduplicates(t *testing.T) {
	t.Parallel()

	first := rawBook("War and Peace", "Leo Tolstoy")
	exact := first
	otherEdition := rawBook("War and Peace: Deluxe", "Tolstoy, Leo")
	otherEdition.ISBN = "9780000000002"

	books, stats := Transform([]domain.RawBook{first, exact, otherEdition})
	require.Len(t, books, 1)
	assert.Equal(t, first.ISBN, books[0].ISBN)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 1, stats.DuplicateKey)
	assert.Equal(t, "(and%20leo%20peace%20tolstoy%20war)", books[0].Query)
}

func TestDedupeByQuery(t *testing.T) {
	t.Parallel()

	in := []domain.BookRecord{
		{ISBN: "1", Query: "(a%20b%20c)"},
		{ISBN: "2", Query: "(d%20e%20f)"},
		{ISBN: "3", Query: "(a%20b%20c)"},
	}
	out := DedupeByQuery(in)
	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0].ISBN)
	assert.Equal(t, "2", out[1].ISBN)
}

func TestShortTitle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Dune", ShortTitle("Dune: Deluxe Edition"))
	assert.Equal(t, "Dune", ShortTitle(" Dune "))
	assert.Equal(t, "", ShortTitle(": subtitle only"))
}

package querybuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "initials with periods", in: "Winnie Pooh A. A. Milne", want: "winnie pooh milne"},
		{name: "initials without periods", in: "Winnie Pooh A A Milne", want: "winnie pooh milne"},
		{name: "stop word inside a word survives", in: "The Theater of the Mind", want: "theater of mind"},
		{name: "honorifics", in: "Oh, the Places You'll Go! Dr. Seuss", want: "oh places you ll go seuss"},
		{name: "bracketed aside", in: "Dune (Deluxe Edition) Frank Herbert", want: "dune frank herbert"},
		{name: "html tags", in: "Beloved <i>novel</i> Toni Morrison", want: "beloved novel toni morrison"},
		{name: "suffixes", in: "Letters Martin Luther King Jr.", want: "letters martin luther king"},
		{name: "whitespace collapse", in: "  War   and\tPeace  ", want: "war and peace"},
		{name: "unicode letters kept", in: "Cien años de soledad", want: "cien años de soledad"},
		{name: "only stop words", in: "The A An", want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"A. A. Milne",
		"The Hobbit: or There and Back Again J. R. R. Tolkien",
		"Mrs. Dalloway (Annotated) Virginia Woolf",
		"Harry Potter & the Sorcerer's Stone -- J.K. Rowling",
		"a.the.an dr.mr",
		"İstanbul Orhan Pamuk",
		"Ｆｕｌｌｗｉｄｔｈ Title",
		"",
	}
	for _, in := range inputs {
		once := Clean(in)
		assert.Equal(t, once, Clean(once), "input %q", in)
	}
}

func TestEncodeAndWords(t *testing.T) {
	t.Parallel()

	frag := Encode("moby dick herman melville")
	assert.Equal(t, "(moby%20dick%20herman%20melville)", frag)
	assert.Equal(t, []string{"moby", "dick", "herman", "melville"}, Words(frag))
	assert.Nil(t, Words("()"))
	assert.Equal(t, "(war%20peace)", Fragment("The War & Peace"))
}

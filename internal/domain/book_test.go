package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlexStringAcceptsNumbersAndStrings(t *testing.T) {
	t.Parallel()

	var books []RawBook
	raw := `[{"title":"A","date_published":2004},{"title":"B","date_published":" 1999-01-02 "},{"title":"C","date_published":null}]`
	require.NoError(t, json.Unmarshal([]byte(raw), &books))
	require.Len(t, books, 3)
	require.Equal(t, FlexString("2004"), books[0].DatePublished)
	require.Equal(t, FlexString("1999-01-02"), books[1].DatePublished)
	require.Equal(t, FlexString(""), books[2].DatePublished)
}

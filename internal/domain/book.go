package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// RawBook mirrors one entry of the book-metadata API response.
type RawBook struct {
	Publisher     string     `json:"publisher"`
	Title         string     `json:"title"`
	Pages         *int       `json:"pages,omitempty"`
	DatePublished FlexString `json:"date_published"`
	Authors       []string   `json:"authors"`
	ISBN          string     `json:"isbn"`
	Image         string     `json:"image,omitempty"`
	Binding       string     `json:"binding"`
}

// BookRecord is a normalized book keyed by its mention query.
type BookRecord struct {
	Publisher     string `json:"publisher"`
	Title         string `json:"title"`
	Pages         int    `json:"pages"`
	DatePublished string `json:"date_published"`
	Authors       string `json:"authors"`
	ISBN          string `json:"isbn"`
	Image         string `json:"image,omitempty"`
	Binding       string `json:"binding"`
	TitleShort    string `json:"title_short"`
	Query         string `json:"query"`
}

// JoinedBook is a counted query matched back to its book metadata.
type JoinedBook struct {
	BookRecord
	RequestURL string `json:"request_url"`
	TotalCount int64  `json:"total_count"`
}

// RankedBook is one row of the published top list.
type RankedBook struct {
	Rank           int    `json:"rank"`
	ShortenedTitle string `json:"shortened_title"`
	Authors        string `json:"author(s)"`
	Year           int    `json:"year"`
	Mentions       int64  `json:"mentions"`
	Query          string `json:"query"`
}

// EarliestEdition is one entry of the curated first-publication list.
type EarliestEdition struct {
	Title   string `json:"title"`
	Authors string `json:"author(s)"`
	Year    int    `json:"year"`
}

// FlexString accepts both JSON strings and numbers; the metadata API is
// inconsistent about publication dates ("2004-05-01" vs 2004).
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

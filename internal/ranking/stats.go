package ranking

import (
	"fmt"
	"sort"

	"BookMentions/internal/domain"
)

// Bucket is one bar of an aggregate chart.
type Bucket struct {
	Label    string `json:"label"`
	Mentions int64  `json:"mentions"`
}

const (
	eraStart = 1900
	eraWidth = 25
	// eraFloor opens the first era so every earlier year lands in it.
	eraFloor = -10000
)

// MentionsByYear sums mentions per publication year, oldest first.
func MentionsByYear(books []domain.RankedBook) []Bucket {
	sums := make(map[int]int64)
	for _, b := range books {
		sums[b.Year] += b.Mentions
	}
	years := make([]int, 0, len(sums))
	for y := range sums {
		years = append(years, y)
	}
	sort.Ints(years)
	out := make([]Bucket, 0, len(years))
	for _, y := range years {
		out = append(out, Bucket{Label: fmt.Sprint(y), Mentions: sums[y]})
	}
	return out
}

// MentionsByEra sums mentions into 25-year eras starting at 1900. Eras are
// right-inclusive and the last one ends at currentYear; years outside every
// era are ignored.
func MentionsByEra(books []domain.RankedBook, currentYear int) []Bucket {
	edges := []int{eraFloor}
	for y := eraStart; y < currentYear; y += eraWidth {
		edges = append(edges, y)
	}
	edges = append(edges, currentYear)

	out := make([]Bucket, len(edges)-1)
	for i := range out {
		out[i].Label = fmt.Sprintf("%d - %d", edges[i], edges[i+1])
	}
	for _, b := range books {
		for i := range out {
			if b.Year > edges[i] && b.Year <= edges[i+1] {
				out[i].Mentions += b.Mentions
				break
			}
		}
	}
	return out
}

// MentionsByAuthor sums mentions per display author, most mentioned first.
func MentionsByAuthor(books []domain.RankedBook) []Bucket {
	sums := make(map[string]int64)
	var order []string
	for _, b := range books {
		if _, ok := sums[b.Authors]; !ok {
			order = append(order, b.Authors)
		}
		sums[b.Authors] += b.Mentions
	}
	out := make([]Bucket, 0, len(order))
	for _, a := range order {
		out = append(out, Bucket{Label: a, Mentions: sums[a]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Mentions > out[j].Mentions })
	return out
}

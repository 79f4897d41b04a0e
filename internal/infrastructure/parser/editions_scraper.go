package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"BookMentions/internal/domain"
	"BookMentions/internal/ports"
)

// DefaultListURL is the curated "greatest books" list used to correct
// publication years.
const DefaultListURL = "https://thegreatestbooks.org/lists/details"

var yearExpr = regexp.MustCompile(`\(?(-?\d{3,4})\)?`)

// EditionsScraper walks the paginated list and extracts title, author and
// first publication year of every entry.
type EditionsScraper struct {
	client   *http.Client
	listURL  string
	maxPages int
}

var _ ports.EditionSource = (*EditionsScraper)(nil)

// NewEditionsScraper wires an HTTP client; maxPages defaults to 50.
func NewEditionsScraper(client *http.Client, listURL string, maxPages int) *EditionsScraper {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if listURL == "" {
		listURL = DefaultListURL
	}
	if maxPages <= 0 {
		maxPages = 50
	}
	return &EditionsScraper{client: client, listURL: listURL, maxPages: maxPages}
}

// FetchEditions returns every entry of the list, first occurrence winning.
func (s *EditionsScraper) FetchEditions(ctx context.Context) ([]domain.EarliestEdition, error) {
	var (
		results []domain.EarliestEdition
		seen    = map[string]struct{}{}
	)

	for page := 1; page <= s.maxPages; page++ {
		pageURL, err := buildPageURL(s.listURL, page)
		if err != nil {
			return nil, err
		}

		doc, err := s.fetchDocument(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		entries := extractEditions(doc)
		if len(entries) == 0 {
			break
		}
		for _, e := range entries {
			key := e.Title + "\x00" + e.Authors
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			results = append(results, e)
		}
	}

	return results, nil
}

func (s *EditionsScraper) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "BookMentions/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func extractEditions(doc *goquery.Document) []domain.EarliestEdition {
	var collected []domain.EarliestEdition
	doc.Find("li.list-group-item, ol.books > li").Each(func(_ int, item *goquery.Selection) {
		if e, ok := parseEdition(item); ok {
			collected = append(collected, e)
		}
	})
	return collected
}

// parseEdition reads one entry shaped like
// <a href="/books/..">Title</a> by <a href="/authors/..">Author</a> (1949).
func parseEdition(item *goquery.Selection) (domain.EarliestEdition, bool) {
	title := strings.TrimSpace(item.Find(`a[href*="/books/"]`).First().Text())
	author := strings.TrimSpace(item.Find(`a[href*="/authors/"]`).First().Text())
	if title == "" || author == "" {
		return domain.EarliestEdition{}, false
	}

	yearText := strings.TrimSpace(item.Find(".year").First().Text())
	if yearText == "" {
		after := strings.SplitN(item.Text(), author, 2)
		if len(after) == 2 {
			yearText = after[1]
		}
	}
	match := yearExpr.FindStringSubmatch(yearText)
	if match == nil {
		return domain.EarliestEdition{}, false
	}
	year, err := strconv.Atoi(match[1])
	if err != nil {
		return domain.EarliestEdition{}, false
	}

	return domain.EarliestEdition{Title: title, Authors: author, Year: year}, true
}

func buildPageURL(base string, page int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid list url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("page", strconv.Itoa(page))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

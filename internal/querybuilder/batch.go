package querybuilder

import "strings"

const (
	// Separator joins fragments into one OR-query.
	Separator = "%20OR%20"
	// MaxQueryLength is the mention API's query length limit.
	MaxQueryLength = 512
	// DefaultEndpoint is prefixed to every batched query.
	DefaultEndpoint = "https://api.twitter.com/2/tweets/counts/recent?query="
)

// Batcher greedily packs fragments into OR-queries no longer than MaxLength.
type Batcher struct {
	Endpoint  string
	MaxLength int
}

// NewBatcher returns a batcher for the default mention endpoint.
func NewBatcher() Batcher {
	return Batcher{Endpoint: DefaultEndpoint, MaxLength: MaxQueryLength}
}

// Batches is the output of Build.
type Batches struct {
	// URLs are complete request URLs, endpoint included.
	URLs []string
	// Dropped holds fragments longer than the limit on their own.
	Dropped []string
}

// Build packs fragments in input order. The length limit applies to the
// joined query, not the endpoint prefix.
func (b Batcher) Build(fragments []string) Batches {
	limit := b.MaxLength
	if limit <= 0 {
		limit = MaxQueryLength
	}
	var (
		out     Batches
		current strings.Builder
	)
	flush := func() {
		if current.Len() == 0 {
			return
		}
		out.URLs = append(out.URLs, b.Endpoint+current.String())
		current.Reset()
	}
	for _, f := range fragments {
		if f == "" {
			continue
		}
		if len(f) > limit {
			out.Dropped = append(out.Dropped, f)
			continue
		}
		if current.Len() > 0 && current.Len()+len(Separator)+len(f) > limit {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(Separator)
		}
		current.WriteString(f)
	}
	flush()
	return out
}

// Split returns the request URL up to and including its first "=" and the
// fragments joined after it.
func Split(requestURL string) (prefix string, fragments []string) {
	base, query, ok := strings.Cut(requestURL, "=")
	if !ok {
		return "", []string{requestURL}
	}
	if query == "" {
		return base + "=", nil
	}
	return base + "=", strings.Split(query, Separator)
}

// Explode turns batched request URLs into one request URL per fragment.
func Explode(requestURLs []string) []string {
	var out []string
	for _, u := range requestURLs {
		prefix, fragments := Split(u)
		for _, f := range fragments {
			out = append(out, prefix+f)
		}
	}
	return out
}

// QueryOf strips the endpoint from a request URL, leaving the query key used
// to join counts back to books.
func QueryOf(requestURL string) string {
	_, query, ok := strings.Cut(requestURL, "=")
	if !ok {
		return requestURL
	}
	return query
}

package dataset

import "path"

// Layout maps every dataset the pipeline reads or writes to its object key or
// prefix. Each counted dataset has a historical all/<version> prefix that is
// only appended to and a most_recent prefix that is overwritten.
type Layout struct {
	Root    string
	Version string
}

// Pair is the historical and most-recent location of one dataset.
type Pair struct {
	All        string
	MostRecent string
}

// CountPaths are the locations written by one counting pass.
type CountPaths struct {
	Pair
	Skipped string
}

// NewLayout returns the layout rooted at root, "data" when empty.
func NewLayout(root, version string) Layout {
	if root == "" {
		root = "data"
	}
	if version == "" {
		version = "cur_version"
	}
	return Layout{Root: root, Version: version}
}

func (l Layout) join(parts ...string) string {
	return path.Join(append([]string{l.Root}, parts...)...)
}

// ArchiveOutput is where statement kind (drop, create, unload, parquet, json)
// writes for one crawl run.
func (l Layout) ArchiveOutput(kind, crawl, datestr string) string {
	return l.join("extracted", "warc", kind, crawl, datestr)
}

// RawBooks is the prefix of enriched, untransformed book snapshots.
func (l Layout) RawBooks() string { return l.join("extracted", "isbn", l.Version) }

// TransformedBooks is the prefix of query-keyed book snapshots.
func (l Layout) TransformedBooks() string { return l.join("transformed", "isbn", l.Version) }

// Counts returns the locations of the given counting pass.
func (l Layout) Counts(stage string) CountPaths {
	name := stage + "_counts"
	return CountPaths{
		Pair: Pair{
			All:        l.join("extracted", "twitter", name, "all", l.Version),
			MostRecent: l.join("extracted", "twitter", name, "most_recent"),
		},
		Skipped: l.join("extracted_failed", "twitter", name, "all", l.Version),
	}
}

// TopCounts is where the 300 best book counts are staged for ranking.
func (l Layout) TopCounts() Pair {
	return Pair{
		All:        l.join("extracted", "twitter", "topbooks", "all", l.Version),
		MostRecent: l.join("extracted", "twitter", "topbooks", "most_recent"),
	}
}

// CountsCSV is the deduplicated CSV copy of the latest book counts.
func (l Layout) CountsCSV() string {
	return l.join("extracted", "twitter", "book_counts", "csv", "batch_copied_from_json.csv")
}

// TransformedTop holds joined rows before display shaping.
func (l Layout) TransformedTop() Pair {
	return Pair{
		All:        l.join("transformed", "topbooks", "all"),
		MostRecent: l.join("transformed", "topbooks", "most_recent", "topbooks.json"),
	}
}

// ServedBooks is the book table the dashboard reports as tracked.
func (l Layout) ServedBooks() string { return l.join("main", "batch", "isbn", l.Version, "isbn.json") }

// ServedTop is the published ranked list.
func (l Layout) ServedTop() string {
	return l.join("main", "batch", "topbooks", "most_recent", "topbooks.json")
}

// ServedTopArchive is the historical copy of one published list.
func (l Layout) ServedTopArchive(datestr string) string {
	return l.join("main", "batch", "topbooks", "all", datestr+".json")
}

// Editions is the curated earliest-edition list.
func (l Layout) Editions() string { return l.join("extracted", "bestbooks", "bestbooks.json") }

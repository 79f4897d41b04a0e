package commoncrawl

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"BookMentions/internal/ports"
)

// BookURLPattern matches product pages whose path carries a ten-digit ISBN.
const BookURLPattern = `^https:\/\/www.amazon.com\/[^\/]*\/dp\/(0|1)[0-9]{9}\/.*`

// Statements builds the drop, create-as-select and unload statements for one
// extraction run.
type Statements struct {
	Database    string
	SourceTable string
	Table       string
	Columns     []string
	URLPattern  string
}

var _ ports.StatementSet = Statements{}

// NewStatements returns statements for table books_<datestr>.
func NewStatements(database, sourceTable, datestr string) Statements {
	return Statements{
		Database:    database,
		SourceTable: sourceTable,
		Table:       "books_" + datestr,
		Columns:     []string{"url", "warc_filename", "warc_record_offset", "warc_record_length"},
		URLPattern:  BookURLPattern,
	}
}

func (s Statements) qualified() string { return s.Database + "." + s.Table }

// Drop removes the run's table if it exists.
func (s Statements) Drop() string {
	return "DROP TABLE IF EXISTS " + s.qualified()
}

// Create materializes book URLs of crawl as parquet under location.
func (s Statements) Create(crawl, location string) (string, error) {
	body, _, err := sq.Select(s.Columns...).
		From(s.SourceTable).
		Where(sq.Expr("crawl = " + quote(crawl))).
		Where(sq.Expr("length(regexp_extract(url, " + quote(s.URLPattern) + ")) > 0")).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build create select: %w", err)
	}
	return fmt.Sprintf("CREATE TABLE %s WITH (format='PARQUET', external_location=%s) AS %s",
		s.qualified(), quote(location), body), nil
}

// Unload writes one JSON line per URL holding the ISBN path segment.
func (s Statements) Unload(location string) (string, error) {
	body, _, err := sq.Select("SPLIT(url, '/')[6] AS isbn").From(s.qualified()).ToSql()
	if err != nil {
		return "", fmt.Errorf("build unload select: %w", err)
	}
	return fmt.Sprintf("UNLOAD (%s) TO %s WITH (format='JSON')", body, quote(location)), nil
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

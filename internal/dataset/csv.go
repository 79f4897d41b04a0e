package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"BookMentions/internal/domain"
)

// PutCountsCSV writes counts as CSV with a header row for SQL consumers that
// cannot read JSON lines.
func PutCountsCSV(ctx context.Context, s *Store, key string, counts []domain.CountResult) error {
	var buf bytes.Buffer
	if err := writeCountsCSV(&buf, counts); err != nil {
		return err
	}
	if err := s.objects.Put(ctx, key, buf.Bytes(), "text/csv"); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// writeCountsCSV stops at the first failed write.
func writeCountsCSV(out io.Writer, counts []domain.CountResult) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"start_date", "end_date", "request_url", "total_count"}); err != nil {
		return fmt.Errorf("encode csv header: %w", err)
	}
	for i, c := range counts {
		err := w.Write([]string{
			c.StartDate.UTC().Format(time.RFC3339),
			c.EndDate.UTC().Format(time.RFC3339),
			c.RequestURL,
			strconv.FormatInt(c.TotalCount, 10),
		})
		if err != nil {
			return fmt.Errorf("encode csv row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}
	return nil
}

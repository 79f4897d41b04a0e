// Package dataset stores row sets as JSON-lines objects in the bucket.
package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"BookMentions/internal/ports"
)

const jsonLines = "application/x-ndjson"

// Store reads and writes datasets through an object store.
type Store struct {
	objects ports.ObjectStore
	now     func() time.Time
}

// NewStore wraps an object store.
func NewStore(objects ports.ObjectStore) *Store {
	return &Store{objects: objects, now: time.Now}
}

// Objects exposes the underlying object store.
func (s *Store) Objects() ports.ObjectStore { return s.objects }

// Append writes rows as a new part under prefix. Empty row sets are skipped.
func Append[T any](ctx context.Context, s *Store, prefix string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	key := fmt.Sprintf("%s/part-%s-%s.json", strings.TrimSuffix(prefix, "/"), s.now().UTC().Format("20060102150405"), uuid.NewString()[:8])
	return Put(ctx, s, key, rows)
}

// Put writes rows to exactly key, replacing what was there.
func Put[T any](ctx context.Context, s *Store, key string, rows []T) error {
	body, err := encode(rows)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.objects.Put(ctx, key, body, jsonLines); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Replace deletes everything under prefix and writes rows as its only part.
func Replace[T any](ctx context.Context, s *Store, prefix string, rows []T) error {
	if err := s.Delete(ctx, prefix); err != nil {
		return err
	}
	return Append(ctx, s, prefix, rows)
}

// Read decodes every part under prefix in key order. A prefix that names a
// single object reads just that object. Parts ending in .gz are gunzipped.
func Read[T any](ctx context.Context, s *Store, prefix string) ([]T, error) {
	objs, err := s.objects.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].Key < objs[j].Key })

	var out []T
	for _, o := range objs {
		rows, err := readObject[T](ctx, s, o.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

// Exists reports whether anything is stored under prefix.
func (s *Store) Exists(ctx context.Context, prefix string) (bool, error) {
	objs, err := s.objects.List(ctx, prefix)
	if err != nil {
		return false, fmt.Errorf("list %s: %w", prefix, err)
	}
	return len(objs) > 0, nil
}

// Delete removes everything under prefix.
func (s *Store) Delete(ctx context.Context, prefix string) error {
	if err := s.objects.DeletePrefix(ctx, prefix); err != nil {
		return fmt.Errorf("delete %s: %w", prefix, err)
	}
	return nil
}

// Version returns the ETag of key, used to detect a new snapshot.
func (s *Store) Version(ctx context.Context, key string) (string, error) {
	info, err := s.objects.Stat(ctx, key)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", key, err)
	}
	return info.ETag, nil
}

func readObject[T any](ctx context.Context, s *Store, key string) ([]T, error) {
	rc, err := s.objects.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if strings.HasSuffix(key, ".gz") {
		zr, err := gzip.NewReader(rc)
		if err != nil {
			return nil, fmt.Errorf("gunzip %s: %w", key, err)
		}
		defer zr.Close()
		r = zr
	}

	rows, err := decode[T](r)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return rows, nil
}

func encode[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decode[T any](r io.Reader) ([]T, error) {
	var out []T
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, sc.Err()
}

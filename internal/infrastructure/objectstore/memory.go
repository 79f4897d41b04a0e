// Package objectstore implements ports.ObjectStore over an S3-compatible
// bucket and in memory.
package objectstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"BookMentions/internal/domain"
	"BookMentions/internal/ports"
)

// MemoryStore keeps objects in a map. It backs local dry runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
	now     func() time.Time
}

type memObject struct {
	body     []byte
	etag     string
	modified time.Time
}

var _ ports.ObjectStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memObject), now: time.Now}
}

// Put stores a copy of body.
func (s *MemoryStore) Put(_ context.Context, key string, body []byte, _ string) error {
	sum := md5.Sum(body)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memObject{
		body:     append([]byte(nil), body...),
		etag:     hex.EncodeToString(sum[:]),
		modified: s.now(),
	}
	return nil
}

// Get returns the object's bytes.
func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", key, domain.ErrNoSnapshot)
	}
	return io.NopCloser(bytes.NewReader(obj.body)), nil
}

// Stat describes the object.
func (s *MemoryStore) Stat(_ context.Context, key string) (ports.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return ports.ObjectInfo{}, fmt.Errorf("stat %s: %w", key, domain.ErrNoSnapshot)
	}
	return ports.ObjectInfo{Key: key, ETag: obj.etag, LastModified: obj.modified}, nil
}

// List returns objects under prefix sorted by key.
func (s *MemoryStore) List(_ context.Context, prefix string) ([]ports.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ports.ObjectInfo
	for k, obj := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, ports.ObjectInfo{Key: k, ETag: obj.etag, LastModified: obj.modified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// DeletePrefix removes objects under prefix.
func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			delete(s.objects, k)
		}
	}
	return nil
}

// Keys lists every stored key.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Package memory implements storage.Storage on an in-memory map.
//
// The store is both a storage backend (provider "memory") and a
// testutil.TestComponent, so runs can be exercised end to end without
// touching disk. Write failures and an unavailable destination can be
// injected.
package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/photoflow/component"
	"github.com/kbukum/photoflow/logger"
	"github.com/kbukum/photoflow/storage"
	"github.com/kbukum/photoflow/testutil"
)

func init() {
	storage.RegisterFactory(storage.ProviderMemory, func(_ context.Context, _ storage.Config, _ *logger.Logger) (storage.Storage, error) {
		return New(), nil
	})
}

// ErrUnavailable is returned by every operation while the store is marked unavailable.
var ErrUnavailable = errors.New("memory storage unavailable")

// object holds a stored object's data and metadata.
type object struct {
	data    []byte
	modTime time.Time
}

// Storage is an in-memory storage backend.
type Storage struct {
	mu          sync.RWMutex
	objects     map[string]*object
	failing     map[string]error
	unavailable bool
	started     bool
}

var (
	_ storage.Storage        = (*Storage)(nil)
	_ component.Component    = (*Storage)(nil)
	_ testutil.TestComponent = (*Storage)(nil)
)

// New creates an empty store that is ready for use.
func New() *Storage {
	return &Storage{
		objects: make(map[string]*object),
		failing: make(map[string]error),
		started: true,
	}
}

func clean(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

// FailWrites makes every Upload of p return err. A nil err clears the fault.
func (s *Storage) FailWrites(p string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failing, clean(p))
		return
	}
	s.failing[clean(p)] = err
}

// SetUnavailable toggles whether the whole store rejects operations.
func (s *Storage) SetUnavailable(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = v
}

// Paths returns the stored paths in lexical order.
func (s *Storage) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.objects))
	for p := range s.objects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Bytes returns a copy of the object stored at p.
func (s *Storage) Bytes(p string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[clean(p)]
	if !ok {
		return nil, false
	}
	return bytes.Clone(o.data), true
}

// --- storage.Storage ---

func (s *Storage) Upload(_ context.Context, p string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("read upload data: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return ErrUnavailable
	}
	key := clean(p)
	if err := s.failing[key]; err != nil {
		return err
	}
	s.objects[key] = &object{data: data, modTime: time.Now()}
	return nil
}

func (s *Storage) Download(_ context.Context, p string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.unavailable {
		return nil, ErrUnavailable
	}
	o, ok := s.objects[clean(p)]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", p)
	}
	return io.NopCloser(bytes.NewReader(o.data)), nil
}

func (s *Storage) Delete(_ context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return ErrUnavailable
	}
	delete(s.objects, clean(p))
	return nil
}

func (s *Storage) Exists(_ context.Context, p string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.unavailable {
		return false, ErrUnavailable
	}
	_, ok := s.objects[clean(p)]
	return ok, nil
}

func (s *Storage) List(_ context.Context, prefix string) ([]storage.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.unavailable {
		return nil, ErrUnavailable
	}
	var result []storage.FileInfo
	for p, o := range s.objects {
		if strings.HasPrefix(p, prefix) {
			result = append(result, storage.FileInfo{
				Path:         p,
				Size:         int64(len(o.data)),
				LastModified: o.modTime,
			})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

func (s *Storage) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.unavailable {
		return ErrUnavailable
	}
	return nil
}

// --- component.Component ---

func (s *Storage) Name() string { return "storage" }

func (s *Storage) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

func (s *Storage) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	return nil
}

func (s *Storage) Health(ctx context.Context) component.Health {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return component.Health{Name: s.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	if err := s.Ping(ctx); err != nil {
		return component.Health{Name: s.Name(), Status: component.StatusUnhealthy, Message: err.Error()}
	}
	return component.Health{Name: s.Name(), Status: component.StatusHealthy}
}

func (s *Storage) Describe() component.Description {
	return component.Description{Name: "Storage", Type: "storage", Details: "provider=memory"}
}

// --- testutil.TestComponent ---

func (s *Storage) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = make(map[string]*object)
	s.failing = make(map[string]error)
	s.unavailable = false
	return nil
}

func (s *Storage) Snapshot(_ context.Context) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(map[string]*object, len(s.objects))
	for k, v := range s.objects {
		snap[k] = &object{data: bytes.Clone(v.data), modTime: v.modTime}
	}
	return snap, nil
}

func (s *Storage) Restore(_ context.Context, snap interface{}) error {
	m, ok := snap.(map[string]*object)
	if !ok {
		return fmt.Errorf("invalid snapshot type: expected map[string]*object, got %T", snap)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = make(map[string]*object, len(m))
	for k, v := range m {
		s.objects[k] = &object{data: bytes.Clone(v.data), modTime: v.modTime}
	}
	return nil
}

// Package cache memoizes image resolution results across builds. Entries
// live in memory for the whole process and are mirrored to a JSON file by
// a background writer.
package cache

import (
	"errors"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/AnyUserName/lazyimg-cli/internal/logging"
)

// ErrPersistFailed marks a cache file write that did not complete. It is
// only ever logged.
var ErrPersistFailed = errors.New("cache persist failed")

// Store maps exact reference strings to entries.
//
// Get never performs I/O. Put updates memory synchronously and schedules a
// rewrite of the whole file; rewrites coalesce and the newest snapshot
// always lands last.
type Store struct {
	path string
	log  *zap.Logger

	mu      sync.RWMutex
	entries map[string]Entry
	version uint64 // bumped on every Put

	hits, misses        atomic.Int64
	writes, writeErrors atomic.Int64

	// persistence state, guarded by pmu
	pmu     sync.Mutex
	pcond   *sync.Cond
	written uint64
	closed  bool

	dirty chan struct{}
	stop  chan struct{}
	done  chan struct{}
}

// Open loads the cache file at path. A missing file starts an empty cache;
// an unreadable or corrupt one is logged and also starts empty. An empty
// path yields a memory-only store.
func Open(path string, log *zap.Logger) *Store {
	s := &Store{
		path:    path,
		log:     logging.OrNop(log),
		entries: make(map[string]Entry),
		dirty:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	s.pcond = sync.NewCond(&s.pmu)

	if path == "" {
		close(s.done)
		return s
	}

	entries, err := ReadFile(path)
	switch {
	case err == nil:
		for ref, e := range entries {
			if !e.Usable() {
				s.log.Warn("dropping unusable cache entry", zap.String("ref", ref))
				continue
			}
			s.entries[ref] = e
		}
		s.log.Debug("cache loaded", zap.String("file", path), zap.Int("entries", len(s.entries)))
	case errors.Is(err, os.ErrNotExist):
		s.log.Debug("cache file not found, starting empty", zap.String("file", path))
	default:
		s.log.Warn("cache file unreadable, starting empty", zap.String("file", path), zap.Error(err))
	}

	go s.writer()
	return s
}

// Path returns the backing file, or "" for a memory-only store.
func (s *Store) Path() string { return s.path }

// Get returns the entry for ref.
func (s *Store) Get(ref string) (Entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[ref]
	s.mu.RUnlock()
	if ok {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
	return e, ok
}

// Put stores e under ref and schedules persistence.
func (s *Store) Put(ref string, e Entry) {
	s.mu.Lock()
	s.entries[ref] = e
	s.version++
	s.mu.Unlock()

	if s.path == "" {
		return
	}
	select {
	case s.dirty <- struct{}{}:
	default: // a rewrite is already scheduled and will pick this entry up
	}
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Keys returns all references in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Stats returns activity counters.
func (s *Store) Stats() Stats {
	return Stats{
		Entries:     s.Len(),
		Hits:        s.hits.Load(),
		Misses:      s.misses.Load(),
		Writes:      s.writes.Load(),
		WriteErrors: s.writeErrors.Load(),
	}
}

// Flush blocks until every Put made before the call has been written (or
// its write has failed).
func (s *Store) Flush() {
	if s.path == "" {
		return
	}
	s.mu.RLock()
	target := s.version
	s.mu.RUnlock()

	s.pmu.Lock()
	for s.written < target && !s.closed {
		s.pcond.Wait()
	}
	s.pmu.Unlock()
}

// Close flushes pending writes and stops the background writer. The store
// keeps serving Get and Put from memory afterwards.
func (s *Store) Close() {
	if s.path == "" {
		return
	}
	s.Flush()

	s.pmu.Lock()
	if s.closed {
		s.pmu.Unlock()
		return
	}
	s.closed = true
	s.pcond.Broadcast()
	s.pmu.Unlock()

	close(s.stop)
	<-s.done
}

func (s *Store) writer() {
	defer close(s.done)
	for {
		select {
		case <-s.dirty:
			s.persist()
		case <-s.stop:
			return
		}
	}
}

func (s *Store) persist() {
	s.mu.RLock()
	snapshot := make(map[string]Entry, len(s.entries))
	for k, v := range s.entries {
		snapshot[k] = v
	}
	version := s.version
	s.mu.RUnlock()

	if err := WriteFile(s.path, snapshot); err != nil {
		s.writeErrors.Add(1)
		s.log.Error("cache write failed",
			zap.String("file", s.path),
			zap.Error(errors.Join(ErrPersistFailed, err)))
	} else {
		s.writes.Add(1)
	}

	s.pmu.Lock()
	if version > s.written {
		s.written = version
	}
	s.pcond.Broadcast()
	s.pmu.Unlock()
}

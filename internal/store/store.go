package store

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Codec converts entities to and from persisted records.
type Codec[K cmp.Ordered, V any] struct {
	Key    func(V) K
	Encode func(V) (json.RawMessage, error)
	Decode func(json.RawMessage) (V, error)
}

// JSONCodec encodes V with encoding/json. V is expected to be a pointer type.
func JSONCodec[K cmp.Ordered, V any](key func(V) K) Codec[K, V] {
	return Codec[K, V]{
		Key: key,
		Encode: func(v V) (json.RawMessage, error) {
			return json.Marshal(v)
		},
		Decode: func(raw json.RawMessage) (V, error) {
			var v V
			err := json.Unmarshal(raw, &v)
			return v, err
		},
	}
}

// SmallestFree returns the smallest non-negative int for which used is false.
func SmallestFree(used func(int) bool) int {
	k := 0
	for used(k) {
		k++
	}
	return k
}

type Options[K cmp.Ordered, V any] struct {
	Kind    string
	Backend Backend
	Codec   Codec[K, V]
	// Alloc is nil for stores keyed by external identities.
	Alloc  func(used func(K) bool) K
	Logger *slog.Logger
}

// Store is a persisted, key-addressed collection of one entity kind. Every
// mutation is written through to the backend before it returns. Values handed
// out are never mutated in place: Update swaps in a modified copy.
type Store[K cmp.Ordered, V any] struct {
	kind    string
	backend Backend
	codec   Codec[K, V]
	alloc   func(used func(K) bool) K
	logger  *slog.Logger

	mu    sync.RWMutex
	items map[K]V
	guard Guard[K]
}

func New[K cmp.Ordered, V any](opts Options[K, V]) *Store[K, V] {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store[K, V]{
		kind:    opts.Kind,
		backend: opts.Backend,
		codec:   opts.Codec,
		alloc:   opts.Alloc,
		logger:  logger.With("store", opts.Kind),
		items:   map[K]V{},
	}
}

func (s *Store[K, V]) Kind() string { return s.kind }

// Load replaces the in-memory collection with the persisted one. Missing or
// corrupt data resets the store to empty and writes the empty set back; only
// a failure of that write is returned.
func (s *Store[K, V]) Load(ctx context.Context) error {
	items, err := s.read(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.items = items
		return nil
	}
	if errors.Is(err, ErrMissing) {
		s.logger.Info("no persisted data, starting empty", "error", err)
	} else {
		s.logger.Warn("persisted data unreadable, resetting to empty", "error", err)
	}
	s.items = map[K]V{}
	if werr := s.persistLocked(ctx); werr != nil {
		return &Error{Kind: s.kind, Op: "load", Err: werr}
	}
	return nil
}

func (s *Store[K, V]) read(ctx context.Context) (map[K]V, error) {
	records, err := s.backend.Read(ctx, s.kind)
	if err != nil {
		return nil, err
	}
	items := make(map[K]V, len(records))
	for i, raw := range records {
		v, err := s.codec.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrCorrupt, i, err)
		}
		items[s.codec.Key(v)] = v
	}
	return items, nil
}

// Save writes every entity to the backend.
func (s *Store[K, V]) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persistLocked(ctx); err != nil {
		return &Error{Kind: s.kind, Op: "save", Err: err}
	}
	return nil
}

func (s *Store[K, V]) persistLocked(ctx context.Context) error {
	keys := make([]K, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	records := make([]json.RawMessage, 0, len(keys))
	for _, k := range keys {
		raw, err := s.codec.Encode(s.items[k])
		if err != nil {
			return fmt.Errorf("encode %v: %w", k, err)
		}
		records = append(records, raw)
	}
	return s.backend.Write(ctx, s.kind, records)
}

func (s *Store[K, V]) Has(k K) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[k]
	return ok
}

func (s *Store[K, V]) Get(k K) (V, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[k]
	if !ok {
		var zero V
		return zero, fmt.Errorf("%s %v: %w", s.kind, k, ErrNotFound)
	}
	return v, nil
}

// Values returns all entities ordered by key.
func (s *Store[K, V]) Values() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]K, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.items[k])
	}
	return out
}

func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// AvailableKey returns the smallest key not currently in use.
func (s *Store[K, V]) AvailableKey() (K, error) {
	if s.alloc == nil {
		var zero K
		return zero, &Error{Kind: s.kind, Op: "allocate", Err: ErrNoAllocator}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alloc(func(k K) bool {
		_, ok := s.items[k]
		return ok
	}), nil
}

// Insert allocates a key, builds the entity with it and saves.
func (s *Store[K, V]) Insert(ctx context.Context, build func(K) (V, error)) (V, error) {
	var zero V
	if s.alloc == nil {
		return zero, &Error{Kind: s.kind, Op: "insert", Err: ErrNoAllocator}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.alloc(func(k K) bool {
		_, ok := s.items[k]
		return ok
	})
	v, err := build(k)
	if err != nil {
		return zero, err
	}
	s.items[k] = v
	if err := s.persistLocked(ctx); err != nil {
		delete(s.items, k)
		return zero, &Error{Kind: s.kind, Op: "insert", Err: err}
	}
	return v, nil
}

// Add stores a new entity and saves. The key must be free.
func (s *Store[K, V]) Add(ctx context.Context, v V) error {
	k := s.codec.Key(v)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[k]; ok {
		return fmt.Errorf("%s %v: %w", s.kind, k, ErrDuplicate)
	}
	s.items[k] = v
	if err := s.persistLocked(ctx); err != nil {
		delete(s.items, k)
		return &Error{Kind: s.kind, Op: "add", Err: err}
	}
	return nil
}

// Put inserts or replaces an entity and saves.
func (s *Store[K, V]) Put(ctx context.Context, v V) error {
	k := s.codec.Key(v)
	unlock := s.guard.Lock(k)
	defer unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.items[k]
	s.items[k] = v
	if err := s.persistLocked(ctx); err != nil {
		if had {
			s.items[k] = prev
		} else {
			delete(s.items, k)
		}
		return &Error{Kind: s.kind, Op: "put", Err: err}
	}
	return nil
}

// Delete removes an entity and saves. Absent keys are a no-op.
func (s *Store[K, V]) Delete(ctx context.Context, k K) error {
	unlock := s.guard.Lock(k)
	defer unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.items[k]
	if !ok {
		return nil
	}
	delete(s.items, k)
	if err := s.persistLocked(ctx); err != nil {
		s.items[k] = prev
		return &Error{Kind: s.kind, Op: "delete", Err: err}
	}
	return nil
}

// FindOrInsert returns the entity for k, creating and saving it when absent.
// created reports which of the two happened.
func (s *Store[K, V]) FindOrInsert(ctx context.Context, k K, create func(K) V) (v V, created bool, err error) {
	unlock := s.guard.Lock(k)
	defer unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.items[k]; ok {
		return v, false, nil
	}
	v = create(k)
	s.items[k] = v
	if err := s.persistLocked(ctx); err != nil {
		delete(s.items, k)
		var zero V
		return zero, false, &Error{Kind: s.kind, Op: "insert", Err: err}
	}
	return v, true, nil
}

// Update applies fn to a copy of the entity under k and saves the copy. If fn
// or the save fails the previous value stays in place. Every write to k,
// including the bulk ones, waits for fn to return. fn must not write to this
// store.
func (s *Store[K, V]) Update(ctx context.Context, k K, fn func(V) error) (V, error) {
	var zero V
	unlock := s.guard.Lock(k)
	defer unlock()

	cur, err := s.Get(k)
	if err != nil {
		return zero, err
	}
	next, err := s.clone(cur)
	if err != nil {
		return zero, &Error{Kind: s.kind, Op: "update", Err: err}
	}
	if err := fn(next); err != nil {
		return zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[k] = next
	if err := s.persistLocked(ctx); err != nil {
		s.items[k] = cur
		return zero, &Error{Kind: s.kind, Op: "update", Err: err}
	}
	return next, nil
}

// lockAll takes the guard of every present key in key order. Keys added
// afterwards are not covered.
func (s *Store[K, V]) lockAll() ([]K, func()) {
	s.mu.RLock()
	keys := make([]K, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	slices.Sort(keys)
	unlocks := make([]func(), 0, len(keys))
	for _, k := range keys {
		unlocks = append(unlocks, s.guard.Lock(k))
	}
	return keys, func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// UpdateAll applies fn to a copy of every entity and saves once. fn reports
// whether it changed the entity.
func (s *Store[K, V]) UpdateAll(ctx context.Context, fn func(V) (bool, error)) (int, error) {
	keys, unlock := s.lockAll()
	defer unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := make(map[K]V, len(keys))
	changed := 0
	for _, k := range keys {
		cur, ok := s.items[k]
		if !ok {
			continue
		}
		next, err := s.clone(cur)
		if err != nil {
			return 0, &Error{Kind: s.kind, Op: "update", Err: err}
		}
		dirty, err := fn(next)
		if err != nil {
			for pk, pv := range prev {
				s.items[pk] = pv
			}
			return 0, err
		}
		if dirty {
			prev[k] = cur
			s.items[k] = next
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	if err := s.persistLocked(ctx); err != nil {
		for k, v := range prev {
			s.items[k] = v
		}
		return 0, &Error{Kind: s.kind, Op: "update", Err: err}
	}
	return changed, nil
}

// DeleteWhere removes every entity matching pred and saves once.
func (s *Store[K, V]) DeleteWhere(ctx context.Context, pred func(V) bool) ([]K, error) {
	keys, unlock := s.lockAll()
	defer unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := map[K]V{}
	for _, k := range keys {
		v, ok := s.items[k]
		if ok && pred(v) {
			removed[k] = v
			delete(s.items, k)
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}
	if err := s.persistLocked(ctx); err != nil {
		for k, v := range removed {
			s.items[k] = v
		}
		return nil, &Error{Kind: s.kind, Op: "delete", Err: err}
	}
	out := make([]K, 0, len(removed))
	for k := range removed {
		out = append(out, k)
	}
	slices.Sort(out)
	return out, nil
}

func (s *Store[K, V]) clone(v V) (V, error) {
	raw, err := s.codec.Encode(v)
	if err != nil {
		var zero V
		return zero, err
	}
	return s.codec.Decode(raw)
}

package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SeeWhatSticks/task-mistress/internal/domain"
	"github.com/SeeWhatSticks/task-mistress/internal/store"
)

var fixedNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type item struct {
	Key   int    `json:"key"`
	Label string `json:"label"`
}

func newItems(backend store.Backend) *store.Store[int, *item] {
	return store.New(store.Options[int, *item]{
		Kind:    "items",
		Backend: backend,
		Codec:   store.JSONCodec[int](func(i *item) int { return i.Key }),
		Alloc:   store.SmallestFree,
	})
}

// flakyBackend wraps a backend and fails writes on demand.
type flakyBackend struct {
	store.Backend
	mu   sync.Mutex
	fail bool
}

func (f *flakyBackend) Write(ctx context.Context, kind string, records []json.RawMessage) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.Backend.Write(ctx, kind, records)
}

func (f *flakyBackend) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func TestAvailableKey(t *testing.T) {
	ctx := context.Background()
	s := newItems(store.FileBackend{Dir: t.TempDir()})
	require.NoError(t, s.Load(ctx))

	k, err := s.AvailableKey()
	require.NoError(t, err)
	assert.Equal(t, 0, k)

	for _, key := range []int{0, 1, 3} {
		require.NoError(t, s.Add(ctx, &item{Key: key}))
	}
	k, err = s.AvailableKey()
	require.NoError(t, err)
	assert.Equal(t, 2, k)
}

func TestAvailableKeyWithoutAllocator(t *testing.T) {
	s := store.New(store.Options[string, *item]{
		Kind:    "named",
		Backend: store.FileBackend{Dir: t.TempDir()},
		Codec:   store.JSONCodec[string](func(i *item) string { return i.Label }),
	})
	_, err := s.AvailableKey()
	require.ErrorIs(t, err, store.ErrNoAllocator)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := newItems(store.FileBackend{Dir: dir})
	require.NoError(t, s.Load(ctx))
	for i := 0; i < 3; i++ {
		_, err := s.Insert(ctx, func(k int) (*item, error) {
			return &item{Key: k, Label: "x"}, nil
		})
		require.NoError(t, err)
	}
	before := s.Values()

	reloaded := newItems(store.FileBackend{Dir: dir})
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, before, reloaded.Values())
}

func TestPlayerRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	open := func() *store.Store[string, *domain.Player] {
		return store.New(store.Options[string, *domain.Player]{
			Kind:    "players",
			Backend: store.FileBackend{Dir: dir},
			Codec:   store.JSONCodec[string](func(p *domain.Player) string { return p.ID }),
		})
	}
	s := open()
	require.NoError(t, s.Load(ctx))
	p := domain.NewPlayer("42", 1)
	p.ToggleLimit("2")
	a := p.AssignTask(7, "1", fixedNow)
	a.MarkCompleted(fixedNow)
	a.AddVerifier("99")
	require.NoError(t, s.Add(ctx, p))

	reloaded := open()
	require.NoError(t, reloaded.Load(ctx))
	got, err := reloaded.Get("42")
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestLoadSelfHealsCorruptFile(t *testing.T) {
	ctx := context.Background()
	backend := store.FileBackend{Dir: t.TempDir()}
	require.NoError(t, os.WriteFile(backend.Path("items"), []byte("{not json"), 0o644))

	s := newItems(backend)
	require.NoError(t, s.Load(ctx))
	assert.Equal(t, 0, s.Len())

	data, err := os.ReadFile(backend.Path("items"))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestLoadSelfHealsBadRecord(t *testing.T) {
	ctx := context.Background()
	backend := store.FileBackend{Dir: t.TempDir()}
	require.NoError(t, os.WriteFile(backend.Path("items"), []byte(`[{"key":0},{"key":"oops"}]`), 0o644))

	s := newItems(backend)
	require.NoError(t, s.Load(ctx))
	assert.Equal(t, 0, s.Len())
}

func TestGetMissing(t *testing.T) {
	s := newItems(store.FileBackend{Dir: t.TempDir()})
	_, err := s.Get(5)
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.False(t, s.Has(5))
}

func TestAddDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newItems(store.FileBackend{Dir: t.TempDir()})
	require.NoError(t, s.Add(ctx, &item{Key: 1}))
	require.ErrorIs(t, s.Add(ctx, &item{Key: 1}), store.ErrDuplicate)
}

func TestFindOrInsert(t *testing.T) {
	ctx := context.Background()
	s := newItems(store.FileBackend{Dir: t.TempDir()})
	v, created, err := s.FindOrInsert(ctx, 4, func(k int) *item { return &item{Key: k, Label: "new"} })
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "new", v.Label)

	v, created, err = s.FindOrInsert(ctx, 4, func(k int) *item { return &item{Key: k, Label: "other"} })
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "new", v.Label)
}

func TestSaveFailureKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{Backend: store.FileBackend{Dir: t.TempDir()}}
	s := newItems(backend)
	require.NoError(t, s.Add(ctx, &item{Key: 1, Label: "before"}))

	backend.setFail(true)
	_, err := s.Update(ctx, 1, func(i *item) error {
		i.Label = "after"
		return nil
	})
	var serr *store.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "update", serr.Op)

	got, err := s.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "before", got.Label)

	require.Error(t, s.Add(ctx, &item{Key: 2}))
	assert.False(t, s.Has(2))
}

func TestUpdateDoesNotMutateHandedOutValues(t *testing.T) {
	ctx := context.Background()
	s := newItems(store.FileBackend{Dir: t.TempDir()})
	require.NoError(t, s.Add(ctx, &item{Key: 1, Label: "a"}))
	old, err := s.Get(1)
	require.NoError(t, err)

	next, err := s.Update(ctx, 1, func(i *item) error {
		i.Label = "b"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "a", old.Label)
	assert.Equal(t, "b", next.Label)
}

func TestUpdateHandlerErrorLeavesStateAlone(t *testing.T) {
	ctx := context.Background()
	s := newItems(store.FileBackend{Dir: t.TempDir()})
	require.NoError(t, s.Add(ctx, &item{Key: 1, Label: "a"}))
	boom := errors.New("boom")
	_, err := s.Update(ctx, 1, func(i *item) error {
		i.Label = "half"
		return boom
	})
	require.ErrorIs(t, err, boom)
	got, _ := s.Get(1)
	assert.Equal(t, "a", got.Label)
}

func TestConcurrentUpdatesSerialize(t *testing.T) {
	ctx := context.Background()
	s := newItems(store.FileBackend{Dir: t.TempDir()})
	require.NoError(t, s.Add(ctx, &item{Key: 1}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, 1, func(it *item) error {
				it.Label += "x"
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	got, _ := s.Get(1)
	assert.Len(t, got.Label, 20)
}

func TestUpdateAllAndDeleteWhere(t *testing.T) {
	ctx := context.Background()
	s := newItems(store.FileBackend{Dir: t.TempDir()})
	for i := 0; i < 4; i++ {
		require.NoError(t, s.Add(ctx, &item{Key: i}))
	}
	n, err := s.UpdateAll(ctx, func(it *item) (bool, error) {
		if it.Key%2 == 0 {
			it.Label = "even"
			return true, nil
		}
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	removed, err := s.DeleteWhere(ctx, func(it *item) bool { return it.Label == "even" })
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, removed)
	assert.Equal(t, 2, s.Len())

	k, err := s.AvailableKey()
	require.NoError(t, err)
	assert.Equal(t, 0, k)
}

func TestDeleteAbsentIsNoop(t *testing.T) {
	s := newItems(store.FileBackend{Dir: t.TempDir()})
	require.NoError(t, s.Delete(context.Background(), 9))
}

func TestGuardReleasesEntries(t *testing.T) {
	var g store.Guard[string]
	unlock := g.Lock("a")
	assert.Equal(t, 1, g.Held())
	unlock()
	assert.Equal(t, 0, g.Held())
}

func TestWritesWaitForInFlightUpdate(t *testing.T) {
	tests := []struct {
		name  string
		write func(ctx context.Context, s *store.Store[int, *item]) error
		want  string
		gone  bool
	}{
		{
			name: "update all",
			write: func(ctx context.Context, s *store.Store[int, *item]) error {
				_, err := s.UpdateAll(ctx, func(i *item) (bool, error) {
					i.Label += "+bulk"
					return true, nil
				})
				return err
			},
			want: "x+update+bulk",
		},
		{
			name: "put",
			write: func(ctx context.Context, s *store.Store[int, *item]) error {
				return s.Put(ctx, &item{Key: 1, Label: "put"})
			},
			want: "put",
		},
		{
			name: "delete where",
			write: func(ctx context.Context, s *store.Store[int, *item]) error {
				_, err := s.DeleteWhere(ctx, func(*item) bool { return true })
				return err
			},
			gone: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := newItems(store.FileBackend{Dir: t.TempDir()})
			require.NoError(t, s.Add(ctx, &item{Key: 1, Label: "x"}))

			entered := make(chan struct{})
			release := make(chan struct{})
			updated := make(chan error, 1)
			go func() {
				_, err := s.Update(ctx, 1, func(i *item) error {
					close(entered)
					<-release
					i.Label += "+update"
					return nil
				})
				updated <- err
			}()
			<-entered

			wrote := make(chan error, 1)
			go func() { wrote <- tt.write(ctx, s) }()
			select {
			case err := <-wrote:
				t.Fatalf("write finished while update was in flight: %v", err)
			case <-time.After(20 * time.Millisecond):
			}
			close(release)
			require.NoError(t, <-updated)
			require.NoError(t, <-wrote)

			got, err := s.Get(1)
			if tt.gone {
				require.ErrorIs(t, err, store.ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Label)
		})
	}
}

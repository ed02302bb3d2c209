package repo_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SeeWhatSticks/task-mistress/internal/db"
	"github.com/SeeWhatSticks/task-mistress/internal/domain"
	"github.com/SeeWhatSticks/task-mistress/internal/events"
	"github.com/SeeWhatSticks/task-mistress/internal/migrate"
	"github.com/SeeWhatSticks/task-mistress/internal/repo"
	"github.com/SeeWhatSticks/task-mistress/internal/store"
)

func newRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(context.Background(), conn))
	return repo.Repo{DB: conn, Now: func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }}
}

func TestMigrateIsIdempotent(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	require.NoError(t, migrate.Migrate(ctx, r.DB))
	v, err := migrate.Version(ctx, r.DB)
	require.NoError(t, err)
	latest, err := migrate.Latest()
	require.NoError(t, err)
	assert.Equal(t, latest, v)
}

func TestReadUnsavedKindIsMissing(t *testing.T) {
	r := newRepo(t)
	_, err := r.Read(context.Background(), "tasks")
	require.ErrorIs(t, err, store.ErrMissing)
}

func TestWriteReplacesRecords(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	first := []json.RawMessage{json.RawMessage(`{"key":0,"v":"a"}`), json.RawMessage(`{"key":1,"v":"b"}`)}
	require.NoError(t, r.Write(ctx, "tasks", first))
	require.NoError(t, r.Write(ctx, "tasks", first[1:]))

	got, err := r.Read(ctx, "tasks")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"key":1,"v":"b"}`, string(got[0]))

	raw, err := r.Record(ctx, "tasks", "1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":1,"v":"b"}`, string(raw))
	_, err = r.Record(ctx, "tasks", "0")
	require.ErrorIs(t, err, repo.ErrNotFound)

	require.NoError(t, r.Write(ctx, "players", nil))
	counts, err := r.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"tasks": 1, "players": 0}, counts)
}

func TestWriteRejectsRecordWithoutKey(t *testing.T) {
	r := newRepo(t)
	err := r.Write(context.Background(), "tasks", []json.RawMessage{json.RawMessage(`{"v":1}`)})
	require.Error(t, err)
}

func TestStoreOverSQLite(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	open := func() *store.Store[string, *domain.Player] {
		return store.New(store.Options[string, *domain.Player]{
			Kind:    "players",
			Backend: r,
			Codec:   store.JSONCodec[string](func(p *domain.Player) string { return p.ID }),
		})
	}
	s := open()
	require.NoError(t, s.Load(ctx))
	_, created, err := s.FindOrInsert(ctx, "42", func(id string) *domain.Player { return domain.NewPlayer(id, 1) })
	require.NoError(t, err)
	require.True(t, created)

	again := open()
	require.NoError(t, again.Load(ctx))
	assert.True(t, again.Has("42"))
}

func TestEventsJournal(t *testing.T) {
	r := newRepo(t)
	w := events.Writer{Repo: r}
	ctx := events.WithCorrelation(context.Background(), "corr-1")
	require.NoError(t, w.Append(ctx, "task.added", "task", "0", "u1", events.EventPayload{"text": "x"}))
	require.NoError(t, w.Append(ctx, "task.assigned", "task", "0", "u2", nil))
	require.NoError(t, w.Append(ctx, "player.created", "player", "u2", "u2", nil))

	all, err := r.LatestEvents(ctx, repo.EventFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "player.created", all[0].Type)

	tasks, err := r.LatestEvents(ctx, repo.EventFilter{EntityKind: "task", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	older, err := r.LatestEvents(ctx, repo.EventFilter{Cursor: all[0].ID, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, older, 2)

	e, err := r.GetEvent(ctx, all[2].ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"x"}`, e.Payload)
	_, err = r.GetEvent(ctx, 999)
	require.ErrorIs(t, err, repo.ErrNotFound)
}

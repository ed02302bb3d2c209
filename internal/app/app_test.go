package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SeeWhatSticks/task-mistress/internal/app"
	"github.com/SeeWhatSticks/task-mistress/internal/config"
	"github.com/SeeWhatSticks/task-mistress/internal/logger"
	"github.com/SeeWhatSticks/task-mistress/internal/platform/platformtest"
	"github.com/SeeWhatSticks/task-mistress/internal/repo"
	"github.com/SeeWhatSticks/task-mistress/internal/ui"
)

func open(t *testing.T, ws string, opts app.Options) *app.App {
	t.Helper()
	opts.Logger = logger.Discard()
	a, err := app.Open(context.Background(), ws, opts)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestOpenJSONBackend(t *testing.T) {
	ws := t.TempDir()
	a := open(t, ws, app.Options{})
	ctx := context.Background()
	_, err := a.Engine.AddTask(ctx, "1", "hello", "")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(ws, "data", "tasks.json"))
	require.NoError(t, err)

	evts, err := a.Repo.LatestEvents(ctx, repo.EventFilter{Type: "task.added"})
	require.NoError(t, err)
	assert.Len(t, evts, 1)
}

func TestOpenSQLiteBackend(t *testing.T) {
	ws := t.TempDir()
	cfg := config.Default()
	cfg.Storage.Backend = "sqlite"
	a := open(t, ws, app.Options{Config: cfg})
	ctx := context.Background()
	task, err := a.Engine.AddTask(ctx, "1", "hello", "")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b := open(t, ws, app.Options{Config: cfg})
	got, err := b.Engine.Task(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Text)
	_, err = os.Stat(filepath.Join(ws, "data", "tasks.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestCompletePostsVerification(t *testing.T) {
	ws := t.TempDir()
	cfg := config.Default()
	cfg.Bot.InfoChannel = "info"
	fake := platformtest.New()
	a := open(t, ws, app.Options{Config: cfg, Platform: fake})
	ctx := context.Background()
	task, err := a.Engine.AddTask(ctx, "1", "plank", "")
	require.NoError(t, err)
	_, err = a.Engine.AssignTask(ctx, "42", task.ID, "1")
	require.NoError(t, err)

	asg, iface, err := a.Complete(ctx, "42", task.ID)
	require.NoError(t, err)
	assert.True(t, asg.Completed)
	require.NotNil(t, iface)
	assert.Equal(t, ui.KindVerification, iface.Kind())
	assert.Equal(t, "info", fake.Sent()[0].ChannelID)
}

func TestWithoutPlatformPostFails(t *testing.T) {
	a := open(t, t.TempDir(), app.Options{})
	_, err := a.Registry.Post(context.Background(), "c1", ui.NewActions())
	require.ErrorIs(t, err, app.ErrNoPlatform)
}

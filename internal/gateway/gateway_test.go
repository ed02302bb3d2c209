package gateway_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SeeWhatSticks/task-mistress/internal/config"
	"github.com/SeeWhatSticks/task-mistress/internal/engine"
	"github.com/SeeWhatSticks/task-mistress/internal/gateway"
	"github.com/SeeWhatSticks/task-mistress/internal/logger"
	"github.com/SeeWhatSticks/task-mistress/internal/platform"
	"github.com/SeeWhatSticks/task-mistress/internal/platform/platformtest"
	"github.com/SeeWhatSticks/task-mistress/internal/store"
	"github.com/SeeWhatSticks/task-mistress/internal/ui"
)

type fixture struct {
	ctx     context.Context
	engine  engine.Engine
	fake    *platformtest.Fake
	reg     *ui.Registry
	gw      *gateway.Gateway
	buttons config.Buttons
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	cfg := config.Default()
	eng := engine.New(store.FileBackend{Dir: dir}, cfg, nil, logger.Discard())
	require.NoError(t, eng.Load(ctx))
	fake := platformtest.New()
	reg := ui.NewRegistry(store.FileBackend{Dir: dir}, fake, ui.NewEnv(eng, cfg, logger.Discard()))
	require.NoError(t, reg.Load(ctx))
	gw := gateway.New(reg, fake, logger.Discard(), gateway.Options{})
	return fixture{ctx: ctx, engine: eng, fake: fake, reg: reg, gw: gw, buttons: cfg.Interfaces.Buttons}
}

func (f fixture) post(t *testing.T, iface ui.Interface) string {
	t.Helper()
	got, err := f.reg.Post(f.ctx, "c1", iface)
	require.NoError(t, err)
	return got.Bound().MessageID
}

func TestUnregisteredMessageIsIgnored(t *testing.T) {
	f := newFixture(t)
	out := f.gw.Handle(f.ctx, platform.ReactionEvent{MessageID: "elsewhere", ChannelID: "c9", Emoji: "👍", UserID: "42"})
	assert.Equal(t, gateway.Ignored, out)
	assert.Empty(t, f.fake.Sent())
}

func TestBotReactionsAreDropped(t *testing.T) {
	f := newFixture(t)
	id := f.post(t, ui.NewActions())
	out := f.gw.Handle(f.ctx, f.fake.React(id, f.buttons.Available, f.fake.BotUserID))
	assert.Equal(t, gateway.Dropped, out)
	assert.Empty(t, f.engine.AvailablePlayers())
}

func TestUnresolvedActorIsDropped(t *testing.T) {
	f := newFixture(t)
	id := f.post(t, ui.NewActions())
	f.fake.FailKind("fetch_user", platform.KindOther)
	out := f.gw.Handle(f.ctx, f.fake.React(id, f.buttons.Available, "42"))
	assert.Equal(t, gateway.Dropped, out)
}

func TestClickIsHandled(t *testing.T) {
	f := newFixture(t)
	id := f.post(t, ui.NewActions())
	out := f.gw.Handle(f.ctx, f.fake.React(id, f.buttons.Available, "42"))
	assert.Equal(t, gateway.Handled, out)
	require.Len(t, f.engine.AvailablePlayers(), 1)

	f.gw.Handle(f.ctx, f.fake.React(id, f.buttons.Unavailable, "42"))
	assert.Empty(t, f.engine.AvailablePlayers())
	assert.Equal(t, 1, f.fake.Calls("fetch_user"), "actor is cached")
}

func TestHandlerErrorIsReportedToChannel(t *testing.T) {
	f := newFixture(t)
	id := f.post(t, ui.NewActions())
	f.gw.Handle(f.ctx, f.fake.React(id, f.buttons.Available, "42"))

	out := f.gw.Handle(f.ctx, f.fake.React(id, f.buttons.Beg, "42"))
	assert.Equal(t, gateway.Failed, out)
	sent := f.fake.Sent()
	last := sent[len(sent)-1]
	assert.Equal(t, "c1", last.ChannelID)
	assert.Contains(t, last.Content.Description, "no tasks available")
}

func TestStaleInterfaceIsRemovedQuietly(t *testing.T) {
	f := newFixture(t)
	id := f.post(t, ui.NewCategoryInfo())
	ev := f.fake.React(id, f.buttons.Refresh, "42")
	f.fake.Remove(id)

	out := f.gw.Handle(f.ctx, ev)
	assert.Equal(t, gateway.Failed, out)
	assert.Len(t, f.fake.Sent(), 1)
	_, ok := f.reg.Lookup(id)
	assert.False(t, ok)

	assert.Equal(t, gateway.Ignored, f.gw.Handle(f.ctx, ev))
}

func TestConcurrentClicksSerialize(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 30; i++ {
		_, err := f.engine.AddCategory(f.ctx, fmt.Sprintf("c%d", i), fmt.Sprintf("e%d", i), "", "admin")
		require.NoError(t, err)
	}
	id := f.post(t, ui.NewCategoryInfo())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			f.gw.Handle(f.ctx, platform.ReactionEvent{MessageID: id, ChannelID: "c1", Emoji: f.buttons.Next, UserID: user})
		}(fmt.Sprintf("u%d", i))
	}
	wg.Wait()

	iface, ok := f.reg.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, 5, *iface.Bound().Page)
}

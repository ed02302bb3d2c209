// Package gateway routes platform reaction events to the interface bound to
// the reacted message.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/SeeWhatSticks/task-mistress/internal/events"
	"github.com/SeeWhatSticks/task-mistress/internal/platform"
	"github.com/SeeWhatSticks/task-mistress/internal/store"
	"github.com/SeeWhatSticks/task-mistress/internal/ui"
)

type Outcome int

const (
	// Dropped events came from a bot or an actor that could not be resolved.
	Dropped Outcome = iota
	// Ignored events reference a message with no interface.
	Ignored
	Handled
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Dropped:
		return "dropped"
	case Ignored:
		return "ignored"
	case Handled:
		return "handled"
	default:
		return "failed"
	}
}

type Options struct {
	UserCacheSize int
	UserCacheTTL  time.Duration
}

type Gateway struct {
	registry *ui.Registry
	client   platform.Client
	logger   *slog.Logger
	users    *expirable.LRU[string, platform.User]
	guard    *store.Guard[string]
}

func New(registry *ui.Registry, client platform.Client, logger *slog.Logger, opts Options) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.UserCacheSize <= 0 {
		opts.UserCacheSize = 256
	}
	if opts.UserCacheTTL <= 0 {
		opts.UserCacheTTL = 10 * time.Minute
	}
	return &Gateway{
		registry: registry,
		client:   client,
		logger:   logger,
		users:    expirable.NewLRU[string, platform.User](opts.UserCacheSize, nil, opts.UserCacheTTL),
		guard:    &store.Guard[string]{},
	}
}

// Handle dispatches one reaction. Handler failures are logged and reported
// to the event's channel, never returned.
func (g *Gateway) Handle(ctx context.Context, ev platform.ReactionEvent) Outcome {
	dispatchID := uuid.NewString()
	ctx = events.WithCorrelation(ctx, dispatchID)
	log := g.logger.With("dispatch_id", dispatchID, "message_id", ev.MessageID, "user_id", ev.UserID, "emoji", ev.Emoji)

	actor, err := g.user(ctx, ev.UserID)
	if err != nil {
		log.Warn("reaction actor unresolved", "error", err)
		return Dropped
	}
	if actor.Bot {
		log.Debug("bot reaction dropped")
		return Dropped
	}
	if _, ok := g.registry.Lookup(ev.MessageID); !ok {
		log.Debug("no interface for message")
		return Ignored
	}

	unlock := g.guard.Lock(ev.MessageID)
	defer unlock()
	// Re-read under the guard so this click sees the previous click's state.
	iface, ok := g.registry.Lookup(ev.MessageID)
	if !ok {
		log.Debug("interface removed while waiting")
		return Ignored
	}
	eff, err := g.registry.Click(ctx, iface, ui.Click{Emoji: ev.Emoji, ActorID: actor.ID})
	if err != nil {
		g.report(ctx, log, ev, iface, err)
		return Failed
	}
	log.Debug("reaction handled", "kind", iface.Kind(), "moved", eff.Moved, "closed", eff.Close)
	return Handled
}

func (g *Gateway) user(ctx context.Context, id string) (platform.User, error) {
	if u, ok := g.users.Get(id); ok {
		return u, nil
	}
	u, err := g.client.FetchUser(ctx, id)
	if err != nil {
		return platform.User{}, err
	}
	g.users.Add(id, u)
	return u, nil
}

func (g *Gateway) report(ctx context.Context, log *slog.Logger, ev platform.ReactionEvent, iface ui.Interface, err error) {
	if errors.Is(err, ui.ErrStale) {
		log.Info("interface dropped during click", "kind", iface.Kind(), "error", err)
		return
	}
	log.Error("reaction handler failed", "kind", iface.Kind(), "error", err)
	channel := ev.ChannelID
	if channel == "" {
		channel = iface.Bound().ChannelID
	}
	if _, serr := g.client.Send(ctx, channel, platform.Text(err.Error())); serr != nil {
		log.Warn("error report not delivered", "channel_id", channel, "error", serr)
	}
}

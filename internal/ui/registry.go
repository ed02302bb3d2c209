package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SeeWhatSticks/task-mistress/internal/platform"
	"github.com/SeeWhatSticks/task-mistress/internal/store"
)

// ErrStale is returned once an interface's message can no longer be used.
// The interface has already been removed from the registry when it is seen.
var ErrStale = errors.New("interface message is gone")

// Registry keeps every posted interface, keyed by message id.
type Registry struct {
	store  *store.Store[string, Interface]
	client platform.Client
	env    *Env
	logger *slog.Logger
}

func NewRegistry(backend store.Backend, client platform.Client, env *Env) *Registry {
	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store: store.New(store.Options[string, Interface]{
			Kind:    "interfaces",
			Backend: backend,
			Codec:   Codec(),
			Logger:  logger,
		}),
		client: client,
		env:    env,
		logger: logger,
	}
}

func (r *Registry) Env() *Env { return r.env }

func (r *Registry) Load(ctx context.Context) error {
	return r.store.Load(ctx)
}

func (r *Registry) Save(ctx context.Context) error {
	return r.store.Save(ctx)
}

// Lookup returns a private copy of the interface bound to key.
func (r *Registry) Lookup(key string) (Interface, bool) {
	iface, err := r.store.Get(key)
	if err != nil {
		return nil, false
	}
	cp, err := clone(iface)
	if err != nil {
		r.logger.Error("interface copy failed", "message_id", key, "error", err)
		return nil, false
	}
	return cp, true
}

// List returns every registered interface ordered by message id.
func (r *Registry) List() []Interface {
	return r.store.Values()
}

// Post sends iface to channelID, registers it and adds its buttons. The
// message is registered before any button exists so no click can miss it.
func (r *Registry) Post(ctx context.Context, channelID string, iface Interface) (Interface, error) {
	b := iface.Bound()
	if b.Posted() {
		return nil, fmt.Errorf("%s interface is already posted as %s", iface.Kind(), b.MessageID)
	}
	content, err := iface.Render(ctx, r.env)
	if err != nil {
		return nil, err
	}
	id, err := r.client.Send(ctx, channelID, content)
	if err != nil {
		return nil, err
	}
	b.MessageID = id
	b.ChannelID = channelID

	stored, err := clone(iface)
	if err == nil {
		err = r.store.Add(ctx, stored)
	}
	if err != nil {
		if derr := r.client.DeleteMessage(ctx, id); derr != nil {
			r.logger.Warn("orphaned interface message", "message_id", id, "error", derr)
		}
		return nil, err
	}
	r.logger.Info("interface posted", "kind", iface.Kind(), "message_id", id, "channel_id", channelID)
	if err := r.addButtons(ctx, iface); err != nil {
		return iface, err
	}
	return iface, nil
}

func (r *Registry) addButtons(ctx context.Context, iface Interface) error {
	buttons, err := iface.Buttons(ctx, r.env)
	if err != nil {
		return err
	}
	id := iface.Bound().MessageID
	for _, emoji := range buttons {
		if err := r.client.AddReaction(ctx, id, emoji); err != nil {
			return r.fail(ctx, iface, err)
		}
	}
	return nil
}

// fail drops the interface when err shows its message is unusable.
func (r *Registry) fail(ctx context.Context, iface Interface, err error) error {
	if !platform.Stale(err) {
		return err
	}
	id := iface.Bound().MessageID
	r.logger.Info("interface went stale", "kind", iface.Kind(), "message_id", id, "error", err)
	if derr := r.store.Delete(ctx, id); derr != nil {
		return errors.Join(fmt.Errorf("%w: %w", ErrStale, err), derr)
	}
	return fmt.Errorf("%w: %w", ErrStale, err)
}

// Update re-renders iface into its message.
func (r *Registry) Update(ctx context.Context, iface Interface) error {
	content, err := iface.Render(ctx, r.env)
	if err != nil {
		return err
	}
	if err := r.client.EditMessage(ctx, iface.Bound().MessageID, content); err != nil {
		return r.fail(ctx, iface, err)
	}
	return nil
}

// Resync replaces the message's buttons with the current ones.
func (r *Registry) Resync(ctx context.Context, iface Interface) error {
	if err := r.client.ClearReactions(ctx, iface.Bound().MessageID); err != nil {
		return r.fail(ctx, iface, err)
	}
	return r.addButtons(ctx, iface)
}

// Delete removes the message and the registry entry. A message that is
// already gone is not an error.
func (r *Registry) Delete(ctx context.Context, key string) error {
	if err := r.client.DeleteMessage(ctx, key); err != nil && !platform.Stale(err) {
		return err
	}
	return r.store.Delete(ctx, key)
}

// Refresh re-renders every interface. Stale ones are dropped and counted.
func (r *Registry) Refresh(ctx context.Context) (updated, dropped int, err error) {
	var errs []error
	for _, iface := range r.store.Values() {
		cp, cerr := clone(iface)
		if cerr != nil {
			errs = append(errs, cerr)
			continue
		}
		switch uerr := r.Update(ctx, cp); {
		case uerr == nil:
			updated++
		case errors.Is(uerr, ErrStale):
			dropped++
		default:
			errs = append(errs, fmt.Errorf("interface %s: %w", cp.Bound().MessageID, uerr))
		}
	}
	return updated, dropped, errors.Join(errs...)
}

// Click runs a button press through iface and applies its effect. Callers
// serialize clicks per message.
func (r *Registry) Click(ctx context.Context, iface Interface, c Click) (Effect, error) {
	b := iface.Bound()
	eff, err := iface.HandleClick(ctx, r.env, c)
	if err != nil {
		r.release(ctx, iface, c)
		return eff, err
	}
	if eff.Close {
		if err := r.Delete(ctx, b.MessageID); err != nil {
			return eff, err
		}
	} else {
		if eff.Moved {
			if err := r.store.Put(ctx, iface); err != nil {
				return eff, err
			}
		}
		if eff.Refresh {
			if err := r.Update(ctx, iface); err != nil {
				return eff, err
			}
		}
		if eff.Resync {
			if err := r.Resync(ctx, iface); err != nil {
				return eff, err
			}
		}
		r.release(ctx, iface, c)
	}
	if eff.Spawn != nil {
		if _, err := r.Post(ctx, b.ChannelID, eff.Spawn); err != nil {
			return eff, err
		}
	}
	if eff.Reply != "" {
		if _, err := r.client.Send(ctx, b.ChannelID, platform.Text(eff.Reply)); err != nil {
			return eff, err
		}
	}
	return eff, nil
}

// release removes the actor's reaction so the button can be pressed again.
func (r *Registry) release(ctx context.Context, iface Interface, c Click) {
	err := r.client.RemoveReaction(ctx, iface.Bound().MessageID, c.Emoji, c.ActorID)
	if err == nil {
		return
	}
	if ferr := r.fail(ctx, iface, err); !errors.Is(ferr, ErrStale) {
		r.logger.Warn("button press not released", "message_id", iface.Bound().MessageID, "error", err)
	}
}

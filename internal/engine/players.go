package engine

import (
	"context"

	"github.com/SeeWhatSticks/task-mistress/internal/domain"
	"github.com/SeeWhatSticks/task-mistress/internal/events"
)

// Player finds the player or creates it with the starting credits.
func (e Engine) Player(ctx context.Context, id string) (*domain.Player, bool, error) {
	p, created, err := e.Players.FindOrInsert(ctx, id, func(id string) *domain.Player {
		return domain.NewPlayer(id, e.Config.Game.StartingCredits)
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		e.record(ctx, "player.created", "player", id, id, events.EventPayload{"credits": p.Credits})
	}
	return p, created, nil
}

func (e Engine) updatePlayer(ctx context.Context, id string, fn func(*domain.Player) error) (*domain.Player, error) {
	if _, _, err := e.Player(ctx, id); err != nil {
		return nil, err
	}
	return e.Players.Update(ctx, id, fn)
}

func (e Engine) SetAvailable(ctx context.Context, id string, available bool) (*domain.Player, error) {
	p, err := e.updatePlayer(ctx, id, func(p *domain.Player) error {
		p.Available = available
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.record(ctx, "player.availability", "player", id, id, events.EventPayload{"available": available})
	return p, nil
}

func (e Engine) ToggleLimit(ctx context.Context, id, limit string) (*domain.Player, error) {
	p, err := e.updatePlayer(ctx, id, func(p *domain.Player) error {
		p.ToggleLimit(limit)
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.record(ctx, "player.limit_toggled", "player", id, id, events.EventPayload{"limit": limit, "set": p.HasLimit(limit)})
	return p, nil
}

func (e Engine) UnsetLimits(ctx context.Context, id string) (*domain.Player, error) {
	p, err := e.updatePlayer(ctx, id, func(p *domain.Player) error {
		p.UnsetLimits()
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.record(ctx, "player.limits_cleared", "player", id, id, nil)
	return p, nil
}

// GrantCredits adds n credits on behalf of actorID.
func (e Engine) GrantCredits(ctx context.Context, id, actorID string, n int) (*domain.Player, error) {
	p, err := e.updatePlayer(ctx, id, func(p *domain.Player) error {
		return p.AddCredits(n)
	})
	if err != nil {
		return nil, err
	}
	e.record(ctx, "player.credits_granted", "player", id, actorID, events.EventPayload{"amount": n, "credits": p.Credits})
	return p, nil
}

// SpendCredits removes n credits; the balance never drops below zero.
func (e Engine) SpendCredits(ctx context.Context, id string, n int) (*domain.Player, error) {
	p, err := e.updatePlayer(ctx, id, func(p *domain.Player) error {
		return p.SpendCredits(n)
	})
	if err != nil {
		return nil, err
	}
	e.record(ctx, "player.credits_spent", "player", id, id, events.EventPayload{"amount": n, "credits": p.Credits})
	return p, nil
}

func (e Engine) AvailablePlayers() []*domain.Player {
	var out []*domain.Player
	for _, p := range e.Players.Values() {
		if p.Available {
			out = append(out, p)
		}
	}
	return out
}

// ClearAllAssignments empties every player's assignments.
func (e Engine) ClearAllAssignments(ctx context.Context, actorID string) (int, error) {
	n, err := e.Players.UpdateAll(ctx, func(p *domain.Player) (bool, error) {
		if len(p.Assignments) == 0 {
			return false, nil
		}
		p.ClearAssignments()
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	e.record(ctx, "assignments.cleared", "player", "", actorID, events.EventPayload{"players": n})
	return n, nil
}

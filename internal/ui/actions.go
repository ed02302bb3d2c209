package ui

import (
	"context"
	"fmt"

	"github.com/SeeWhatSticks/task-mistress/internal/platform"
)

// Actions offers the one-click game actions.
type Actions struct {
	Binding
}

func (*Actions) sealed()    {}
func (*Actions) Kind() Kind { return KindActions }

func (a *Actions) Render(_ context.Context, env *Env) (platform.Content, error) {
	b := env.buttons()
	return platform.Content{
		Title:       "Actions",
		Description: "React to act.",
		Fields: []platform.Field{
			{Name: b.Available, Value: "Mark yourself available", Inline: true},
			{Name: b.Unavailable, Value: "Mark yourself unavailable", Inline: true},
			{Name: b.UnsetLimits, Value: "Clear all your limits", Inline: true},
			{Name: b.OpenLimits, Value: "Choose your limits", Inline: true},
			{Name: b.Beg, Value: "Beg for a task", Inline: true},
		},
		Footer: env.Printer.Sprintf("%d players available", len(env.Engine.AvailablePlayers())),
	}, nil
}

func (a *Actions) Buttons(_ context.Context, env *Env) ([]string, error) {
	b := env.buttons()
	return []string{b.Available, b.Unavailable, b.UnsetLimits, b.OpenLimits, b.Beg}, nil
}

func (a *Actions) HandleClick(ctx context.Context, env *Env, c Click) (Effect, error) {
	b := env.buttons()
	switch c.Emoji {
	case b.Available, b.Unavailable:
		if _, err := env.Engine.SetAvailable(ctx, c.ActorID, c.Emoji == b.Available); err != nil {
			return Effect{}, err
		}
		return Effect{Refresh: true}, nil
	case b.UnsetLimits:
		if _, err := env.Engine.UnsetLimits(ctx, c.ActorID); err != nil {
			return Effect{}, err
		}
		return Effect{}, nil
	case b.OpenLimits:
		return Effect{Spawn: NewLimits(c.ActorID)}, nil
	case b.Beg:
		t, err := env.Engine.Beg(ctx, c.ActorID)
		if err != nil {
			return Effect{}, err
		}
		return Effect{Reply: fmt.Sprintf("%s begged and was given %s: %s", c.ActorID, t.DisplayName(), t.Text)}, nil
	}
	return Effect{}, nil
}

// Verification asks other players to approve or reject one completed assignment.
type Verification struct {
	Binding
	PlayerID string
	TaskID   int
}

func (*Verification) sealed()    {}
func (*Verification) Kind() Kind { return KindVerification }

func (v *Verification) Render(_ context.Context, env *Env) (platform.Content, error) {
	content := platform.Content{
		Title: env.Printer.Sprintf("Verify task #%d for %s", v.TaskID, v.PlayerID),
	}
	t, err := env.Engine.Task(v.TaskID)
	if err != nil {
		content.Description = "This task no longer exists."
		return content, nil
	}
	content.Description = t.Text
	p, err := env.Engine.Players.Get(v.PlayerID)
	if err != nil {
		content.Fields = emptyRow("No such player.")
		return content, nil
	}
	a, ok := p.Assignment(v.TaskID)
	if !ok {
		content.Fields = emptyRow("The assignment was withdrawn.")
		return content, nil
	}
	required := env.Config.Game.VerificationsRequired
	content.Fields = []platform.Field{
		{Name: "Task", Value: taskLine(env, t)},
		{Name: "Approvals", Value: env.Printer.Sprintf("%d of %d", len(a.RoundVerifiers()), required)},
	}
	b := env.buttons()
	content.Footer = fmt.Sprintf("%s approve · %s reject", b.Approve, b.Reject)
	return content, nil
}

func (v *Verification) Buttons(_ context.Context, env *Env) ([]string, error) {
	return []string{env.buttons().Approve, env.buttons().Reject}, nil
}

func (v *Verification) HandleClick(ctx context.Context, env *Env, c Click) (Effect, error) {
	b := env.buttons()
	if c.Emoji != b.Approve && c.Emoji != b.Reject {
		return Effect{}, nil
	}
	res, err := env.Engine.VerifyAssignment(ctx, v.PlayerID, v.TaskID, c.ActorID, c.Emoji == b.Approve)
	if err != nil {
		return Effect{}, err
	}
	switch {
	case res.Verified:
		return Effect{Close: true, Reply: fmt.Sprintf("Task #%d by %s is verified.", v.TaskID, v.PlayerID)}, nil
	case res.Rejected:
		return Effect{Close: true, Reply: fmt.Sprintf("Task #%d by %s was rejected by %s.", v.TaskID, v.PlayerID, c.ActorID)}, nil
	}
	return Effect{Refresh: true}, nil
}

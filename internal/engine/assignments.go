package engine

import (
	"context"
	"time"

	"github.com/SeeWhatSticks/task-mistress/internal/domain"
	"github.com/SeeWhatSticks/task-mistress/internal/events"
)

// AssignTask gives taskID to playerID. An empty assignerID marks a
// self-selected task.
func (e Engine) AssignTask(ctx context.Context, playerID string, id int, assignerID string) (*domain.Assignment, error) {
	if _, err := e.liveTask(id); err != nil {
		return nil, err
	}
	if assignerID == playerID {
		assignerID = ""
	}
	var a *domain.Assignment
	if _, err := e.updatePlayer(ctx, playerID, func(p *domain.Player) error {
		a = p.AssignTask(id, assignerID, e.now())
		return e.countAssignment(ctx, id)
	}); err != nil {
		return nil, err
	}
	e.record(ctx, "task.assigned", "task", taskID(id), actorOr(assignerID, playerID), events.EventPayload{"player_id": playerID})
	return a, nil
}

// AssignRandomTask assigns one of the tasks eligible for playerID.
func (e Engine) AssignRandomTask(ctx context.Context, playerID, assignerID string) (*domain.Task, *domain.Assignment, error) {
	candidates := e.TasksForPlayer(playerID)
	if len(candidates) == 0 {
		return nil, nil, domain.Invalid("task_id", "no tasks available for player %s", playerID)
	}
	t := candidates[e.pick(len(candidates))]
	a, err := e.AssignTask(ctx, playerID, t.ID, assignerID)
	if err != nil {
		return nil, nil, err
	}
	return t, a, nil
}

// Beg hands an available player a random eligible task, at most once per
// configured cooldown.
func (e Engine) Beg(ctx context.Context, playerID string) (*domain.Task, error) {
	candidates := e.TasksForPlayer(playerID)
	if len(candidates) == 0 {
		return nil, domain.Invalid("task_id", "no tasks available for player %s", playerID)
	}
	t := candidates[e.pick(len(candidates))]
	now := e.now()
	cooldown := e.Config.Game.BegCooldown
	if _, err := e.updatePlayer(ctx, playerID, func(p *domain.Player) error {
		if !p.Available {
			return domain.Invalid("available", "mark yourself available before begging")
		}
		if !p.BegAllowed(now, cooldown) {
			wait := p.LastBegTime.Add(cooldown).Sub(now).Round(time.Second)
			return domain.Invalid("last_beg_time", "begging again is allowed in %s", wait)
		}
		p.AssignTask(t.ID, "", now)
		p.StampBeg(now)
		return e.countAssignment(ctx, t.ID)
	}); err != nil {
		return nil, err
	}
	e.record(ctx, "task.begged", "task", taskID(t.ID), playerID, nil)
	return t, nil
}

// countAssignment runs inside the player update so a failed count leaves the
// assignment unsaved. Player keys are always locked before task keys.
func (e Engine) countAssignment(ctx context.Context, id int) error {
	_, err := e.Tasks.Update(ctx, id, func(t *domain.Task) error {
		if t.Deleted {
			return domain.Invalid("task_id", "task %d was deleted", id)
		}
		t.Assigned()
		return nil
	})
	return err
}

// CompleteAssignment marks the player's assignment for id as completed.
func (e Engine) CompleteAssignment(ctx context.Context, playerID string, id int) (*domain.Assignment, error) {
	var a *domain.Assignment
	_, err := e.updatePlayer(ctx, playerID, func(p *domain.Player) error {
		got, ok := p.Assignment(id)
		if !ok {
			return domain.Invalid("task_id", "player %s has no assignment for task %d", playerID, id)
		}
		got.MarkCompleted(e.now())
		a = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.record(ctx, "assignment.completed", "task", taskID(id), playerID, events.EventPayload{"player_id": playerID})
	return a, nil
}

type VerifyResult struct {
	Assignment *domain.Assignment
	// Verified is set when this call brought the assignment over the threshold.
	Verified bool
	Rejected bool
}

// VerifyAssignment approves or rejects a completed assignment. The first time
// an assignment reaches the required approvals the task's completion counter
// moves and the player earns the completion credits. A verified assignment is
// final: further approvals or rejections are refused.
func (e Engine) VerifyAssignment(ctx context.Context, playerID string, id int, verifierID string, approve bool) (VerifyResult, error) {
	if verifierID == playerID {
		return VerifyResult{}, domain.Invalid("verifier_id", "players cannot verify their own assignments")
	}
	required := e.verificationsRequired()
	var res VerifyResult
	_, err := e.updatePlayer(ctx, playerID, func(p *domain.Player) error {
		a, ok := p.Assignment(id)
		if !ok {
			return domain.Invalid("task_id", "player %s has no assignment for task %d", playerID, id)
		}
		if a.IsVerified(required) {
			return domain.Invalid("verified", "task %d is already verified for player %s", id, playerID)
		}
		if !a.Completed {
			return domain.Invalid("completed", "task %d has not been completed yet", id)
		}
		if !approve {
			a.Reopen()
			res = VerifyResult{Assignment: a, Rejected: true}
			return nil
		}
		a.AddVerifier(verifierID)
		res = VerifyResult{Assignment: a}
		if !a.IsVerified(required) {
			return nil
		}
		res.Verified = true
		a.MarkVerified(e.now())
		if err := p.AddCredits(e.Config.Game.CompletionCredits); err != nil {
			return err
		}
		_, err := e.Tasks.Update(ctx, id, func(t *domain.Task) error { return t.Completed() })
		return err
	})
	if err != nil {
		return VerifyResult{}, err
	}
	evt := "assignment.approved"
	if res.Rejected {
		evt = "assignment.rejected"
	}
	e.record(ctx, evt, "task", taskID(id), verifierID, events.EventPayload{"player_id": playerID, "verified": res.Verified})
	return res, nil
}

func actorOr(actor, fallback string) string {
	if actor != "" {
		return actor
	}
	return fallback
}

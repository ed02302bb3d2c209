package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/SeeWhatSticks/task-mistress/internal/domain"
	"github.com/SeeWhatSticks/task-mistress/internal/events"
	"github.com/SeeWhatSticks/task-mistress/internal/store"
)

// AddTask creates a task authored by creatorID.
func (e Engine) AddTask(ctx context.Context, creatorID, text, name string) (*domain.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.Invalid("task_text", "is required")
	}
	if _, _, err := e.Player(ctx, creatorID); err != nil {
		return nil, err
	}
	t, err := e.Tasks.Insert(ctx, func(id int) (*domain.Task, error) {
		return domain.NewTask(id, creatorID, text, strings.TrimSpace(name), e.now()), nil
	})
	if err != nil {
		return nil, err
	}
	e.record(ctx, "task.added", "task", taskID(t.ID), creatorID, events.EventPayload{"name": t.Name})
	return t, nil
}

func taskID(id int) string {
	return strconv.Itoa(id)
}

// Task returns a task, deleted or not.
func (e Engine) Task(id int) (*domain.Task, error) {
	return e.Tasks.Get(id)
}

// liveTask returns a task that has not been deleted.
func (e Engine) liveTask(id int) (*domain.Task, error) {
	t, err := e.Tasks.Get(id)
	if err != nil {
		return nil, err
	}
	if t.Deleted {
		return nil, domain.Invalid("task_id", "task %d was deleted", id)
	}
	return t, nil
}

func (e Engine) updateOwnTask(ctx context.Context, id int, actorID, action string, fn func(*domain.Task) error) (*domain.Task, error) {
	t, err := e.liveTask(id)
	if err != nil {
		return nil, err
	}
	if t.CreatorID != actorID {
		return nil, ForbiddenError{ActorID: actorID, Action: action}
	}
	return e.Tasks.Update(ctx, id, fn)
}

type TaskEditOptions struct {
	Text *string
	Name *string
}

func (e Engine) EditTask(ctx context.Context, id int, actorID string, opts TaskEditOptions) (*domain.Task, error) {
	if opts.Text != nil && strings.TrimSpace(*opts.Text) == "" {
		return nil, domain.Invalid("task_text", "cannot be empty")
	}
	t, err := e.updateOwnTask(ctx, id, actorID, "edit task "+taskID(id), func(t *domain.Task) error {
		if opts.Text != nil {
			t.Text = strings.TrimSpace(*opts.Text)
		}
		if opts.Name != nil {
			t.Name = strings.TrimSpace(*opts.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.record(ctx, "task.edited", "task", taskID(id), actorID, nil)
	return t, nil
}

// DeleteTask soft-deletes a task. Its key stays reserved until CleanupTasks.
func (e Engine) DeleteTask(ctx context.Context, id int, actorID string) (*domain.Task, error) {
	t, err := e.updateOwnTask(ctx, id, actorID, "delete task "+taskID(id), func(t *domain.Task) error {
		t.MarkDeleted()
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.record(ctx, "task.deleted", "task", taskID(id), actorID, nil)
	return t, nil
}

// CleanupTasks purges deleted tasks. Assignments pointing at them are dropped
// first so a freed key never resolves to a stale assignment.
func (e Engine) CleanupTasks(ctx context.Context, actorID string) ([]int, error) {
	doomed := map[int]bool{}
	for _, t := range e.Tasks.Values() {
		if t.Deleted {
			doomed[t.ID] = true
		}
	}
	if len(doomed) == 0 {
		return nil, nil
	}
	if _, err := e.Players.UpdateAll(ctx, func(p *domain.Player) (bool, error) {
		changed := false
		for id := range doomed {
			if p.RemoveAssignment(id) {
				changed = true
			}
		}
		return changed, nil
	}); err != nil {
		return nil, err
	}
	removed, err := e.Tasks.DeleteWhere(ctx, func(t *domain.Task) bool { return t.Deleted && doomed[t.ID] })
	if err != nil {
		return nil, err
	}
	e.record(ctx, "tasks.cleaned", "task", "", actorID, events.EventPayload{"removed": removed})
	return removed, nil
}

func (e Engine) ToggleTaskCategory(ctx context.Context, id int, actorID string, key int) (*domain.Task, error) {
	if !e.Categories.Has(key) {
		return nil, fmt.Errorf("category %d: %w", key, store.ErrNotFound)
	}
	t, err := e.updateOwnTask(ctx, id, actorID, "categorize task "+taskID(id), func(t *domain.Task) error {
		t.ToggleCategory(key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.record(ctx, "task.category_toggled", "task", taskID(id), actorID, events.EventPayload{"category": key, "set": t.HasCategory(key)})
	return t, nil
}

func (e Engine) UnsetTaskCategories(ctx context.Context, id int, actorID string) (*domain.Task, error) {
	t, err := e.updateOwnTask(ctx, id, actorID, "categorize task "+taskID(id), func(t *domain.Task) error {
		t.UnsetCategories()
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.record(ctx, "task.categories_cleared", "task", taskID(id), actorID, nil)
	return t, nil
}

func (e Engine) RateTask(ctx context.Context, id int, playerID string, rating int) (*domain.Task, error) {
	if _, err := e.liveTask(id); err != nil {
		return nil, err
	}
	t, err := e.Tasks.Update(ctx, id, func(t *domain.Task) error {
		return t.AddRating(playerID, rating)
	})
	if err != nil {
		return nil, err
	}
	e.record(ctx, "task.rated", "task", taskID(id), playerID, events.EventPayload{"rating": rating})
	return t, nil
}

// TasksByPlayer lists live tasks authored by creatorID.
func (e Engine) TasksByPlayer(creatorID string) []*domain.Task {
	var out []*domain.Task
	for _, t := range e.Tasks.Values() {
		if !t.Deleted && t.CreatorID == creatorID {
			out = append(out, t)
		}
	}
	return out
}

// TasksForPlayer lists live tasks the player could be given: not their own,
// not already open for them, and outside their limits.
func (e Engine) TasksForPlayer(playerID string) []*domain.Task {
	var p *domain.Player
	if got, err := e.Players.Get(playerID); err == nil {
		p = got
	}
	var out []*domain.Task
	for _, t := range e.Tasks.Values() {
		if t.Deleted || t.CreatorID == playerID {
			continue
		}
		if p != nil && e.excluded(p, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (e Engine) excluded(p *domain.Player, t *domain.Task) bool {
	if a, ok := p.Assignment(t.ID); ok && !a.IsVerified(e.verificationsRequired()) {
		return true
	}
	for _, c := range t.Categories {
		if p.HasLimit(LimitID(c)) {
			return true
		}
	}
	return false
}

// AssignedTasksForPlayer lists the tasks behind the player's open assignments.
func (e Engine) AssignedTasksForPlayer(playerID string) []*domain.Task {
	p, err := e.Players.Get(playerID)
	if err != nil {
		return nil
	}
	var out []*domain.Task
	for _, a := range p.OpenAssignments(e.verificationsRequired()) {
		if t, err := e.Tasks.Get(a.TaskID); err == nil {
			out = append(out, t)
		}
	}
	return out
}

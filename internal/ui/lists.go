package ui

import (
	"context"
	"fmt"

	"github.com/SeeWhatSticks/task-mistress/internal/domain"
	"github.com/SeeWhatSticks/task-mistress/internal/engine"
	"github.com/SeeWhatSticks/task-mistress/internal/platform"
)

// CategoryInfo pages through every category with its description.
type CategoryInfo struct {
	Binding
}

func (*CategoryInfo) sealed()    {}
func (*CategoryInfo) Kind() Kind { return KindCategoryInfo }

func (ci *CategoryInfo) Render(_ context.Context, env *Env) (platform.Content, error) {
	cats := env.Engine.ListCategories()
	rows := categoryRows(env, pageOf(cats, ci.page(), env.pageSize()), func(*domain.Category) bool { return false })
	if len(rows) == 0 {
		rows = emptyRow("No categories yet.")
	}
	return platform.Content{
		Title:  title("category info"),
		Fields: rows,
		Footer: pageFooter(env, &ci.Binding, len(cats)),
	}, nil
}

func (ci *CategoryInfo) Buttons(_ context.Context, env *Env) ([]string, error) {
	return append(navButtons(env), env.buttons().Refresh), nil
}

func (ci *CategoryInfo) HandleClick(_ context.Context, env *Env, c Click) (Effect, error) {
	if eff, ok := navigate(&ci.Binding, env, c.Emoji, len(env.Engine.ListCategories())); ok {
		return eff, nil
	}
	if c.Emoji == env.buttons().Refresh {
		return Effect{Refresh: true}, nil
	}
	return Effect{}, nil
}

// visibleCategory resolves emoji against the categories shown on page.
func visibleCategory(env *Env, b *Binding, emoji string) (*domain.Category, bool) {
	for _, c := range pageOf(env.Engine.ListCategories(), b.page(), env.pageSize()) {
		if c.Emoji == emoji {
			return c, true
		}
	}
	return nil, false
}

func categoryButtons(env *Env, b *Binding) []string {
	out := navButtons(env)
	for _, c := range pageOf(env.Engine.ListCategories(), b.page(), env.pageSize()) {
		out = append(out, c.Emoji)
	}
	return out
}

func navigateRows(env *Env, b *Binding, emoji string) (Effect, bool) {
	eff, ok := navigate(b, env, emoji, len(env.Engine.ListCategories()))
	if eff.Moved {
		eff.Resync = true
	}
	return eff, ok
}

// Limits lets a player toggle which categories they exclude.
type Limits struct {
	Binding
	PlayerID string
}

func (*Limits) sealed()    {}
func (*Limits) Kind() Kind { return KindLimits }

func (l *Limits) Render(_ context.Context, env *Env) (platform.Content, error) {
	p, err := env.Engine.Players.Get(l.PlayerID)
	if err != nil {
		p = domain.NewPlayer(l.PlayerID, 0)
	}
	cats := env.Engine.ListCategories()
	rows := categoryRows(env, pageOf(cats, l.page(), env.pageSize()), func(c *domain.Category) bool {
		return p.HasLimit(engine.LimitID(c.Key))
	})
	if len(rows) == 0 {
		rows = emptyRow("No categories yet.")
	}
	return platform.Content{
		Title:       fmt.Sprintf("Limits for %s", l.PlayerID),
		Description: "Marked categories are never assigned to you.",
		Fields:      rows,
		Footer:      pageFooter(env, &l.Binding, len(cats)),
	}, nil
}

func (l *Limits) Buttons(_ context.Context, env *Env) ([]string, error) {
	return categoryButtons(env, &l.Binding), nil
}

func (l *Limits) HandleClick(ctx context.Context, env *Env, c Click) (Effect, error) {
	if eff, ok := navigateRows(env, &l.Binding, c.Emoji); ok {
		return eff, nil
	}
	cat, ok := visibleCategory(env, &l.Binding, c.Emoji)
	if !ok {
		return Effect{}, nil
	}
	if c.ActorID != l.PlayerID {
		return Effect{}, engine.ForbiddenError{ActorID: c.ActorID, Action: "change the limits of " + l.PlayerID}
	}
	if _, err := env.Engine.ToggleLimit(ctx, l.PlayerID, engine.LimitID(cat.Key)); err != nil {
		return Effect{}, err
	}
	return Effect{Refresh: true}, nil
}

// Categories lets a task's creator toggle the task's categories.
type Categories struct {
	Binding
	TaskID int
}

func (*Categories) sealed()    {}
func (*Categories) Kind() Kind { return KindCategories }

func (cs *Categories) Render(_ context.Context, env *Env) (platform.Content, error) {
	t, err := env.Engine.Task(cs.TaskID)
	if err != nil || t.Deleted {
		return platform.Content{
			Title:       env.Printer.Sprintf("Categories for task #%d", cs.TaskID),
			Description: "This task no longer exists.",
		}, nil
	}
	cats := env.Engine.ListCategories()
	rows := categoryRows(env, pageOf(cats, cs.page(), env.pageSize()), func(c *domain.Category) bool {
		return t.HasCategory(c.Key)
	})
	if len(rows) == 0 {
		rows = emptyRow("No categories yet.")
	}
	return platform.Content{
		Title:       "Categories for " + t.DisplayName(),
		Description: t.Text,
		Fields:      rows,
		Footer:      pageFooter(env, &cs.Binding, len(cats)),
	}, nil
}

func (cs *Categories) Buttons(_ context.Context, env *Env) ([]string, error) {
	return categoryButtons(env, &cs.Binding), nil
}

func (cs *Categories) HandleClick(ctx context.Context, env *Env, c Click) (Effect, error) {
	if eff, ok := navigateRows(env, &cs.Binding, c.Emoji); ok {
		return eff, nil
	}
	cat, ok := visibleCategory(env, &cs.Binding, c.Emoji)
	if !ok {
		return Effect{}, nil
	}
	if _, err := env.Engine.ToggleTaskCategory(ctx, cs.TaskID, c.ActorID, cat.Key); err != nil {
		return Effect{}, err
	}
	return Effect{Refresh: true}, nil
}

// Assignments pages through a player's open assignments.
type Assignments struct {
	Binding
	PlayerID string
}

func (*Assignments) sealed()    {}
func (*Assignments) Kind() Kind { return KindAssignments }

func (as *Assignments) open(env *Env) []*domain.Assignment {
	p, err := env.Engine.Players.Get(as.PlayerID)
	if err != nil {
		return nil
	}
	return p.OpenAssignments(env.Config.Game.VerificationsRequired)
}

func (as *Assignments) Render(_ context.Context, env *Env) (platform.Content, error) {
	open := as.open(env)
	var rows []platform.Field
	for _, a := range pageOf(open, as.page(), env.pageSize()) {
		name := env.Printer.Sprintf("#%d", a.TaskID)
		if t, err := env.Engine.Task(a.TaskID); err == nil {
			name = taskLine(env, t)
		}
		rows = append(rows, platform.Field{Name: name, Value: assignmentStatus(env, a)})
	}
	if len(rows) == 0 {
		rows = emptyRow("Nothing assigned.")
	}
	return platform.Content{
		Title:  fmt.Sprintf("Assignments for %s", as.PlayerID),
		Fields: rows,
		Footer: pageFooter(env, &as.Binding, len(open)),
	}, nil
}

func assignmentStatus(env *Env, a *domain.Assignment) string {
	from := "self-selected"
	if a.AssignerID != "" {
		from = "from " + a.AssignerID
	}
	if !a.Completed {
		return env.Printer.Sprintf("%s, assigned %s", from, a.AssignmentTime.Format("2006-01-02"))
	}
	return env.Printer.Sprintf("%s, completed, %d of %d approvals", from, len(a.RoundVerifiers()), env.Config.Game.VerificationsRequired)
}

func (as *Assignments) Buttons(_ context.Context, env *Env) ([]string, error) {
	return navButtons(env), nil
}

func (as *Assignments) HandleClick(_ context.Context, env *Env, c Click) (Effect, error) {
	eff, _ := navigate(&as.Binding, env, c.Emoji, len(as.open(env)))
	return eff, nil
}

// Tasks pages through the live tasks a player authored.
type Tasks struct {
	Binding
	PlayerID string
}

func (*Tasks) sealed()    {}
func (*Tasks) Kind() Kind { return KindTasks }

func (ts *Tasks) Render(_ context.Context, env *Env) (platform.Content, error) {
	tasks := env.Engine.TasksByPlayer(ts.PlayerID)
	var rows []platform.Field
	for _, t := range pageOf(tasks, ts.page(), env.pageSize()) {
		value := t.Text
		if rate, err := t.CompletionRate(); err == nil {
			value = env.Printer.Sprintf("%s (%s completed)", value, rate)
		}
		rows = append(rows, platform.Field{Name: taskLine(env, t), Value: value})
	}
	if len(rows) == 0 {
		rows = emptyRow("No tasks yet.")
	}
	return platform.Content{
		Title:  fmt.Sprintf("Tasks by %s", ts.PlayerID),
		Fields: rows,
		Footer: pageFooter(env, &ts.Binding, len(tasks)),
	}, nil
}

func (ts *Tasks) Buttons(_ context.Context, env *Env) ([]string, error) {
	return navButtons(env), nil
}

func (ts *Tasks) HandleClick(_ context.Context, env *Env, c Click) (Effect, error) {
	eff, _ := navigate(&ts.Binding, env, c.Emoji, len(env.Engine.TasksByPlayer(ts.PlayerID)))
	return eff, nil
}

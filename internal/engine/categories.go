package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/SeeWhatSticks/task-mistress/internal/domain"
	"github.com/SeeWhatSticks/task-mistress/internal/events"
	"github.com/SeeWhatSticks/task-mistress/internal/store"
)

// AddCategory creates a category. Names and emoji are unique.
func (e Engine) AddCategory(ctx context.Context, name, emoji, description, actorID string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	emoji = strings.TrimSpace(emoji)
	if name == "" {
		return nil, domain.Invalid("name", "is required")
	}
	if emoji == "" {
		return nil, domain.Invalid("emoji", "is required")
	}
	for _, b := range e.Config.Interfaces.Buttons.All() {
		if b == emoji {
			return nil, domain.Invalid("emoji", "%s is reserved for interface buttons", emoji)
		}
	}
	defer e.lockCategories()()
	for _, c := range e.Categories.Values() {
		if strings.EqualFold(c.Name, name) {
			return nil, domain.Invalid("name", "category %q already exists", name)
		}
		if c.Emoji == emoji {
			return nil, domain.Invalid("emoji", "%s is already used by %s", emoji, c.Name)
		}
	}
	c, err := e.Categories.Insert(ctx, func(key int) (*domain.Category, error) {
		return &domain.Category{Key: key, Name: name, Emoji: emoji, Description: strings.TrimSpace(description)}, nil
	})
	if err != nil {
		return nil, err
	}
	e.record(ctx, "category.added", "category", LimitID(c.Key), actorID, events.EventPayload{"name": name, "emoji": emoji})
	return c, nil
}

func (e Engine) Category(key int) (*domain.Category, error) {
	return e.Categories.Get(key)
}

func (e Engine) CategoryByEmoji(emoji string) (*domain.Category, error) {
	for _, c := range e.Categories.Values() {
		if c.Emoji == emoji {
			return c, nil
		}
	}
	return nil, fmt.Errorf("category with emoji %s: %w", emoji, store.ErrNotFound)
}

// ListCategories returns categories ordered by key.
func (e Engine) ListCategories() []*domain.Category {
	return e.Categories.Values()
}

// RemoveCategory deletes a category and scrubs it from tasks and player limits.
func (e Engine) RemoveCategory(ctx context.Context, key int, actorID string) error {
	defer e.lockCategories()()
	if !e.Categories.Has(key) {
		return fmt.Errorf("category %d: %w", key, store.ErrNotFound)
	}
	if _, err := e.Tasks.UpdateAll(ctx, func(t *domain.Task) (bool, error) {
		if !t.HasCategory(key) {
			return false, nil
		}
		t.ToggleCategory(key)
		return true, nil
	}); err != nil {
		return err
	}
	limit := LimitID(key)
	if _, err := e.Players.UpdateAll(ctx, func(p *domain.Player) (bool, error) {
		if !p.HasLimit(limit) {
			return false, nil
		}
		p.ToggleLimit(limit)
		return true, nil
	}); err != nil {
		return err
	}
	if err := e.Categories.Delete(ctx, key); err != nil {
		return err
	}
	e.record(ctx, "category.removed", "category", limit, actorID, nil)
	return nil
}

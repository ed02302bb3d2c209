// Package ui holds the interactive messages ("interfaces") the bot keeps
// bound to platform messages, and the registry that persists them.
package ui

import (
	"context"
	"log/slog"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/SeeWhatSticks/task-mistress/internal/config"
	"github.com/SeeWhatSticks/task-mistress/internal/engine"
	"github.com/SeeWhatSticks/task-mistress/internal/platform"
)

type Kind string

const (
	KindActions      Kind = "actions"
	KindCategoryInfo Kind = "category_info"
	KindLimits       Kind = "limits"
	KindCategories   Kind = "categories"
	KindAssignments  Kind = "assignments"
	KindTasks        Kind = "tasks"
	KindVerification Kind = "verification"
)

// AllKinds lists every persisted discriminator.
func AllKinds() []Kind {
	return []Kind{KindActions, KindCategoryInfo, KindLimits, KindCategories, KindAssignments, KindTasks, KindVerification}
}

// Paginated reports whether interfaces of kind k carry a page.
func (k Kind) Paginated() bool {
	switch k {
	case KindActions, KindVerification:
		return false
	default:
		return true
	}
}

// Binding ties an interface to the message it is displayed in. MessageID is
// empty until the interface is posted.
type Binding struct {
	MessageID string `json:"key"`
	ChannelID string `json:"channel_id"`
	Page      *int   `json:"page,omitempty"`
}

func (b *Binding) Bound() *Binding { return b }

// Posted reports whether the binding points at a message.
func (b *Binding) Posted() bool { return b.MessageID != "" }

func (b *Binding) page() int {
	if b.Page == nil {
		return 0
	}
	return *b.Page
}

// Click is one button press on a posted interface.
type Click struct {
	Emoji   string
	ActorID string
}

// Effect tells the registry what a click requires besides the state change
// the handler already made through the engine.
type Effect struct {
	// Moved is set when the binding itself changed and must be persisted.
	Moved bool
	// Refresh re-renders the message.
	Refresh bool
	// Resync replaces the buttons, for rows that depend on the page.
	Resync bool
	// Close tears the interface down.
	Close bool
	// Spawn is posted to the same channel.
	Spawn Interface
	// Reply is sent to the channel as plain text.
	Reply string
}

// Interface is one of the variants in this package.
type Interface interface {
	Kind() Kind
	Bound() *Binding
	Render(ctx context.Context, env *Env) (platform.Content, error)
	Buttons(ctx context.Context, env *Env) ([]string, error)
	HandleClick(ctx context.Context, env *Env, c Click) (Effect, error)
	sealed()
}

// Env is what interfaces read from and act on.
type Env struct {
	Engine  engine.Engine
	Config  *config.Config
	Printer *message.Printer
	Logger  *slog.Logger
}

func NewEnv(eng engine.Engine, cfg *config.Config, logger *slog.Logger) *Env {
	if cfg == nil {
		cfg = eng.Config
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Env{
		Engine:  eng,
		Config:  cfg,
		Printer: message.NewPrinter(language.English),
		Logger:  logger,
	}
}

func (e *Env) buttons() config.Buttons {
	return e.Config.Interfaces.Buttons
}

func (e *Env) pageSize() int {
	if n := e.Config.Interfaces.PageSize; n > 0 {
		return n
	}
	return 5
}

func firstPage() *int {
	p := 0
	return &p
}

func NewActions() *Actions { return &Actions{} }

func NewCategoryInfo() *CategoryInfo {
	return &CategoryInfo{Binding: Binding{Page: firstPage()}}
}

func NewLimits(playerID string) *Limits {
	return &Limits{Binding: Binding{Page: firstPage()}, PlayerID: playerID}
}

func NewCategories(taskID int) *Categories {
	return &Categories{Binding: Binding{Page: firstPage()}, TaskID: taskID}
}

func NewAssignments(playerID string) *Assignments {
	return &Assignments{Binding: Binding{Page: firstPage()}, PlayerID: playerID}
}

func NewTasks(playerID string) *Tasks {
	return &Tasks{Binding: Binding{Page: firstPage()}, PlayerID: playerID}
}

func NewVerification(playerID string, taskID int) *Verification {
	return &Verification{PlayerID: playerID, TaskID: taskID}
}

// New builds an unposted interface of kind k. playerID and taskID are used by
// the kinds that need them.
func New(k Kind, playerID string, taskID int) (Interface, error) {
	switch k {
	case KindActions:
		return NewActions(), nil
	case KindCategoryInfo:
		return NewCategoryInfo(), nil
	case KindLimits:
		return NewLimits(playerID), nil
	case KindCategories:
		return NewCategories(taskID), nil
	case KindAssignments:
		return NewAssignments(playerID), nil
	case KindTasks:
		return NewTasks(playerID), nil
	case KindVerification:
		return NewVerification(playerID, taskID), nil
	}
	return nil, unknownKind(k)
}

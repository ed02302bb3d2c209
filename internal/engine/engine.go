package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/SeeWhatSticks/task-mistress/internal/config"
	"github.com/SeeWhatSticks/task-mistress/internal/domain"
	"github.com/SeeWhatSticks/task-mistress/internal/events"
	"github.com/SeeWhatSticks/task-mistress/internal/store"
)

// Engine owns the game stores and every mutation applied to them. New wires
// the stores; an Engine assembled by hand shares one category lock with every
// other such Engine.
type Engine struct {
	Players    *store.Store[string, *domain.Player]
	Tasks      *store.Store[int, *domain.Task]
	Categories *store.Store[int, *domain.Category]
	Events     *events.Writer
	Config     *config.Config
	Now        func() time.Time
	// Pick returns a random index in [0,n).
	Pick   func(n int) int
	Logger *slog.Logger

	catMu *sync.Mutex
}

// ForbiddenError reports an actor attempting an action reserved to someone else.
type ForbiddenError struct {
	ActorID string
	Action  string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("actor %s is not allowed to %s", e.ActorID, e.Action)
}

// New builds an engine whose stores persist through backend.
func New(backend store.Backend, cfg *config.Config, w *events.Writer, logger *slog.Logger) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return Engine{
		Players: store.New(store.Options[string, *domain.Player]{
			Kind:    "players",
			Backend: backend,
			Codec:   store.JSONCodec[string](func(p *domain.Player) string { return p.ID }),
			Logger:  logger,
		}),
		Tasks: store.New(store.Options[int, *domain.Task]{
			Kind:    "tasks",
			Backend: backend,
			Codec:   store.JSONCodec[int](func(t *domain.Task) int { return t.ID }),
			Alloc:   store.SmallestFree,
			Logger:  logger,
		}),
		Categories: store.New(store.Options[int, *domain.Category]{
			Kind:    "categories",
			Backend: backend,
			Codec:   store.JSONCodec[int](func(c *domain.Category) int { return c.Key }),
			Alloc:   store.SmallestFree,
			Logger:  logger,
		}),
		Events: w,
		Config: cfg,
		Now:    time.Now,
		Pick:   rand.IntN,
		Logger: logger,
		catMu:  &sync.Mutex{},
	}
}

// Load reads every store. A failing store does not stop the others.
func (e Engine) Load(ctx context.Context) error {
	return errors.Join(
		e.Players.Load(ctx),
		e.Tasks.Load(ctx),
		e.Categories.Load(ctx),
	)
}

// sharedCatMu serializes category changes of engines not built by New.
var sharedCatMu sync.Mutex

// lockCategories serializes category additions and removals.
func (e Engine) lockCategories() func() {
	mu := e.catMu
	if mu == nil {
		mu = &sharedCatMu
	}
	mu.Lock()
	return mu.Unlock
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) pick(n int) int {
	if e.Pick != nil {
		return e.Pick(n)
	}
	return rand.IntN(n)
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// record appends to the journal. Journal failures are logged, never returned.
func (e Engine) record(ctx context.Context, evtType, entityKind, entityID, actorID string, payload events.EventPayload) {
	if e.Events == nil {
		return
	}
	if err := e.Events.Append(ctx, evtType, entityKind, entityID, actorID, payload); err != nil {
		e.logger().Warn("journal append failed", "type", evtType, "entity_id", entityID, "error", err)
	}
}

func (e Engine) verificationsRequired() int {
	return e.Config.Game.VerificationsRequired
}

// LimitID is the limit a player sets to exclude a category.
func LimitID(categoryKey int) string {
	return strconv.Itoa(categoryKey)
}

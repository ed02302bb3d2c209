// Package app assembles the stores, engine and registry for one workspace.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SeeWhatSticks/task-mistress/internal/config"
	"github.com/SeeWhatSticks/task-mistress/internal/db"
	"github.com/SeeWhatSticks/task-mistress/internal/domain"
	"github.com/SeeWhatSticks/task-mistress/internal/engine"
	"github.com/SeeWhatSticks/task-mistress/internal/events"
	"github.com/SeeWhatSticks/task-mistress/internal/migrate"
	"github.com/SeeWhatSticks/task-mistress/internal/platform"
	"github.com/SeeWhatSticks/task-mistress/internal/repo"
	"github.com/SeeWhatSticks/task-mistress/internal/store"
	"github.com/SeeWhatSticks/task-mistress/internal/ui"
)

// ErrNoPlatform is returned by operations that need a platform client when
// none was configured.
var ErrNoPlatform = errors.New("no platform configured; set TASKMISTRESS_RELAY_URL")

type App struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Repo      repo.Repo
	Engine    engine.Engine
	Registry  *ui.Registry
	Platform  platform.Client
	Logger    *slog.Logger
}

type Options struct {
	// Config overrides the workspace's taskmistress.yml.
	Config   *config.Config
	Platform platform.Client
	Logger   *slog.Logger
}

// Open loads every store of the workspace. Stores that fail to load are
// reported together; the others stay usable.
func Open(ctx context.Context, workspace string, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.LoadOptional(workspace)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	r := repo.Repo{DB: conn}

	var backend store.Backend
	switch cfg.Storage.Backend {
	case "sqlite":
		backend = r
	default:
		backend = store.FileBackend{Dir: cfg.DataDir(workspace)}
	}

	eng := engine.New(backend, cfg, &events.Writer{Repo: r}, logger)
	client := opts.Platform
	if client == nil {
		client = offline{}
	}
	reg := ui.NewRegistry(backend, client, ui.NewEnv(eng, cfg, logger))
	if err := errors.Join(eng.Load(ctx), reg.Load(ctx)); err != nil {
		conn.Close()
		return nil, err
	}
	return &App{
		Workspace: workspace,
		Config:    cfg,
		DB:        conn,
		Repo:      r,
		Engine:    eng,
		Registry:  reg,
		Platform:  opts.Platform,
		Logger:    logger,
	}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// Complete marks an assignment completed and, when an info channel is
// configured, posts a Verification interface for it there.
func (a *App) Complete(ctx context.Context, playerID string, taskID int) (*domain.Assignment, ui.Interface, error) {
	asg, err := a.Engine.CompleteAssignment(ctx, playerID, taskID)
	if err != nil {
		return nil, nil, err
	}
	channel := a.Config.Bot.InfoChannel
	if channel == "" || a.Platform == nil {
		return asg, nil, nil
	}
	iface, err := a.Registry.Post(ctx, channel, ui.NewVerification(playerID, taskID))
	if err != nil {
		return asg, nil, fmt.Errorf("request verification: %w", err)
	}
	return asg, iface, nil
}

// offline fails every platform call.
type offline struct{}

func (offline) FetchMessage(context.Context, string) (platform.Message, error) {
	return platform.Message{}, ErrNoPlatform
}
func (offline) EditMessage(context.Context, string, platform.Content) error { return ErrNoPlatform }
func (offline) DeleteMessage(context.Context, string) error                 { return ErrNoPlatform }
func (offline) AddReaction(context.Context, string, string) error           { return ErrNoPlatform }
func (offline) ClearReactions(context.Context, string) error                { return ErrNoPlatform }
func (offline) RemoveReaction(context.Context, string, string, string) error {
	return ErrNoPlatform
}
func (offline) FetchUser(context.Context, string) (platform.User, error) {
	return platform.User{}, ErrNoPlatform
}
func (offline) Send(context.Context, string, platform.Content) (string, error) {
	return "", ErrNoPlatform
}

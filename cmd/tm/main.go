package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/SeeWhatSticks/task-mistress/internal/app"
	"github.com/SeeWhatSticks/task-mistress/internal/config"
	"github.com/SeeWhatSticks/task-mistress/internal/db"
	"github.com/SeeWhatSticks/task-mistress/internal/domain"
	"github.com/SeeWhatSticks/task-mistress/internal/engine"
	"github.com/SeeWhatSticks/task-mistress/internal/gateway"
	"github.com/SeeWhatSticks/task-mistress/internal/logger"
	"github.com/SeeWhatSticks/task-mistress/internal/platform"
	"github.com/SeeWhatSticks/task-mistress/internal/platform/relay"
	"github.com/SeeWhatSticks/task-mistress/internal/repo"
	"github.com/SeeWhatSticks/task-mistress/internal/server"
	"github.com/SeeWhatSticks/task-mistress/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:   "tm",
	Short: "Task Mistress CLI",
	Long: `Task Mistress runs a chat task game: players write tasks, assign them to each
other, complete them and verify each other's completions.
- Players: anyone who reacts or is assigned; they carry credits, limits and assignments.
- Tasks: text written by a player, tagged with categories, rated 1 to 5.
- Categories: emoji tags; a player's limits exclude tasks of those categories.
- Interfaces: messages the bot posted that react to emoji clicks (tm post, tm interfaces).
- Event log: diary of changes, view with 'tm log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKMISTRESS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "", "acting player id")
	rootCmd.PersistentFlags().String("log-level", "", "log level (overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(postCmd())
	rootCmd.AddCommand(interfacesCmd())
	rootCmd.AddCommand(categoriesCmd())
	rootCmd.AddCommand(tasksCmd())
	rootCmd.AddCommand(playersCmd())
	rootCmd.AddCommand(assignCmd())
	rootCmd.AddCommand(completeCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(logCmd())
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default taskmistress.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func serveCmd() *cobra.Command {
	var allowActorHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and reaction endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			var env config.ServeEnv
			if err := config.ParseEnv(&env); err != nil {
				return err
			}
			if env.JWTSecret == "" {
				return fmt.Errorf("TASKMISTRESS_JWT_SECRET is required for bearer auth")
			}
			client := relayClient(env.Relay)
			if client == nil {
				return fmt.Errorf("TASKMISTRESS_RELAY_URL is required to serve")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withPlatformApp(ctx, client, func(ctx context.Context, a *app.App) error {
				gw := gateway.New(a.Registry, client, a.Logger, gateway.Options{})
				handler, err := server.New(server.Config{
					App:      a,
					Gateway:  gw,
					BasePath: env.BasePath,
					Auth: server.AuthConfig{
						JWTSecret:        env.JWTSecret,
						AllowActorHeader: allowActorHeader,
						Logger:           a.Logger,
					},
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: env.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				g, ctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					a.Logger.Info("serving", "addr", env.Addr, "base_path", env.BasePath, "docs", "/docs")
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
				g.Go(func() error {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				})
				return g.Wait()
			})
		},
	}
	cmd.Flags().BoolVar(&allowActorHeader, "allow-actor-header", false, "trust X-Actor-Id without a token (local use only)")
	return cmd
}

func tokenCmd() *cobra.Command {
	var roles []string
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue an API token signed with TASKMISTRESS_JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var env config.ServeEnv
			if err := config.ParseEnv(&env); err != nil {
				return err
			}
			if env.JWTSecret == "" {
				return fmt.Errorf("TASKMISTRESS_JWT_SECRET is required")
			}
			token, err := server.IssueToken(env.JWTSecret, args[0], roles...)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&roles, "role", nil, "role to grant (admin, relay)")
	return cmd
}

func postCmd() *cobra.Command {
	var channel, player string
	var task int
	cmd := &cobra.Command{
		Use:       "post <kind>",
		Short:     "Post an interface to a channel",
		Args:      cobra.ExactArgs(1),
		ValidArgs: kindNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			iface, err := ui.New(ui.Kind(args[0]), player, task)
			if err != nil {
				return err
			}
			return withRelayApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				posted, err := a.Registry.Post(ctx, channel, iface)
				if err != nil {
					return err
				}
				return printInterfaces([]ui.Interface{posted})
			})
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "channel id")
	cmd.Flags().StringVar(&player, "player", "", "player the interface is about")
	cmd.Flags().IntVar(&task, "task", 0, "task the interface is about")
	_ = cmd.MarkFlagRequired("channel")
	return cmd
}

func interfacesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "interfaces", Short: "Manage posted interfaces"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered interfaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return printInterfaces(a.Registry.List())
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Re-render every interface and drop the ones whose message is gone",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRelayApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				updated, dropped, err := a.Registry.Refresh(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]int{"updated": updated, "dropped": dropped})
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <message-id>",
		Short: "Delete an interface and its message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRelayApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Registry.Delete(ctx, args[0])
			})
		},
	})
	return cmd
}

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "categories", Short: "Manage categories"}
	var description string
	add := &cobra.Command{
		Use:   "add <name> <emoji>",
		Short: "Add a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				c, err := a.Engine.AddCategory(ctx, args[0], args[1], description, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printCategories([]*domain.Category{c})
			})
		},
	}
	add.Flags().StringVar(&description, "description", "", "description")
	cmd.AddCommand(add)
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return printCategories(a.Engine.ListCategories())
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <key>",
		Short: "Remove a category from every task and limit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("category key: %w", err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Engine.RemoveCategory(ctx, key, viper.GetString("actor-id"))
			})
		},
	})
	return cmd
}

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "tasks", Short: "Manage tasks"}
	cmd.AddCommand(taskCreateCmd())
	cmd.AddCommand(taskEditCmd())
	cmd.AddCommand(taskDeleteCmd())
	cmd.AddCommand(taskListCmd())
	cmd.AddCommand(taskRateCmd())
	cmd.AddCommand(taskCategoryCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Purge deleted tasks and scrub them from assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				removed, err := a.Engine.CleanupTasks(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"removed": removed})
			})
		},
	})
	return cmd
}

func taskCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create <text>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := requireActor()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Engine.AddTask(ctx, actor, args[0], name)
				if err != nil {
					return err
				}
				return printTasks([]*domain.Task{t})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "short name")
	return cmd
}

func taskEditCmd() *cobra.Command {
	var text, name string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a task's text or name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("task id: %w", err)
			}
			var opts engine.TaskEditOptions
			if cmd.Flags().Changed("text") {
				opts.Text = &text
			}
			if cmd.Flags().Changed("name") {
				opts.Name = &name
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Engine.EditTask(ctx, id, viper.GetString("actor-id"), opts)
				if err != nil {
					return err
				}
				return printTasks([]*domain.Task{t})
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "task text")
	cmd.Flags().StringVar(&name, "name", "", "short name")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("task id: %w", err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Engine.DeleteTask(ctx, id, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printTasks([]*domain.Task{t})
			})
		},
	}
}

func taskListCmd() *cobra.Command {
	var creator, forPlayer string
	var deleted bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var tasks []*domain.Task
				switch {
				case forPlayer != "":
					tasks = a.Engine.TasksForPlayer(forPlayer)
				case creator != "":
					tasks = a.Engine.TasksByPlayer(creator)
				default:
					for _, t := range a.Engine.Tasks.Values() {
						if deleted || !t.Deleted {
							tasks = append(tasks, t)
						}
					}
				}
				return printTasks(tasks)
			})
		},
	}
	cmd.Flags().StringVar(&creator, "creator", "", "only tasks written by this player")
	cmd.Flags().StringVar(&forPlayer, "for", "", "only tasks assignable to this player")
	cmd.Flags().BoolVar(&deleted, "deleted", false, "include deleted tasks")
	return cmd
}

func taskRateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate <id> <1-5>",
		Short: "Rate a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("task id: %w", err)
			}
			rating, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("rating: %w", err)
			}
			actor, err := requireActor()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Engine.RateTask(ctx, id, actor, rating)
				if err != nil {
					return err
				}
				return printTasks([]*domain.Task{t})
			})
		},
	}
}

func taskCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "category <id> <category-key>",
		Short: "Toggle a category on a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("task id: %w", err)
			}
			key, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("category key: %w", err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Engine.ToggleTaskCategory(ctx, id, viper.GetString("actor-id"), key)
				if err != nil {
					return err
				}
				return printTasks([]*domain.Task{t})
			})
		},
	}
}

func playersCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "players", Short: "Inspect and adjust players"}
	var available bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List players",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				players := a.Engine.Players.Values()
				if available {
					players = a.Engine.AvailablePlayers()
				}
				return printPlayers(players)
			})
		},
	}
	list.Flags().BoolVar(&available, "available", false, "only available players")
	cmd.AddCommand(list)
	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a player and their assignments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Engine.Players.Get(args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p)
				}
				if err := printPlayers([]*domain.Player{p}); err != nil {
					return err
				}
				return printTasks(a.Engine.AssignedTasksForPlayer(p.ID))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "credits <id> <amount>",
		Short: "Grant credits to a player",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("amount: %w", err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Engine.GrantCredits(ctx, args[0], viper.GetString("actor-id"), n)
				if err != nil {
					return err
				}
				return printPlayers([]*domain.Player{p})
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear-assignments",
		Short: "Clear every player's assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				n, err := a.Engine.ClearAllAssignments(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]int{"players": n})
			})
		},
	})
	return cmd
}

func assignCmd() *cobra.Command {
	var task int
	cmd := &cobra.Command{
		Use:   "assign <player>",
		Short: "Assign a task to a player (random when --task is omitted)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor := viper.GetString("actor-id")
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if cmd.Flags().Changed("task") {
					asg, err := a.Engine.AssignTask(ctx, args[0], task, actor)
					if err != nil {
						return err
					}
					return printJSONOrTable(asg)
				}
				t, asg, err := a.Engine.AssignRandomTask(ctx, args[0], actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"task": t, "assignment": asg})
			})
		},
	}
	cmd.Flags().IntVar(&task, "task", 0, "task id")
	return cmd
}

func completeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <player> <task>",
		Short: "Mark an assignment completed and post a verification request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("task id: %w", err)
			}
			return withRelayApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				asg, _, err := a.Complete(ctx, args[0], id)
				if asg == nil {
					return err
				}
				if err != nil {
					a.Logger.Warn("verification interface not posted", "error", err)
				}
				return printJSONOrTable(asg)
			})
		},
	}
}

func verifyCmd() *cobra.Command {
	var reject bool
	cmd := &cobra.Command{
		Use:   "verify <player> <task>",
		Short: "Approve or reject a completed assignment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("task id: %w", err)
			}
			actor, err := requireActor()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Engine.VerifyAssignment(ctx, args[0], id, actor, !reject)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().BoolVar(&reject, "reject", false, "reject instead of approve")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: tasks written, assignments, verifications, and more.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var f repo.EventFilter
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				events, err := a.Repo.LatestEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor", "Payload"})
				for _, e := range events {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.EntityKind + " " + e.EntityID, e.ActorID, e.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&f.Limit, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}

// --- helpers ---

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	return withPlatformApp(ctx, nil, fn)
}

// withRelayApp opens the workspace with the relay from the environment, if any.
func withRelayApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	var env config.RelayEnv
	if err := config.ParseEnv(&env); err != nil {
		return err
	}
	client := relayClient(env)
	if client == nil {
		return withPlatformApp(ctx, nil, fn)
	}
	return withPlatformApp(ctx, client, fn)
}

func withPlatformApp(ctx context.Context, client platform.Client, fn func(context.Context, *app.App) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if l := viper.GetString("log-level"); l != "" {
		level = l
	}
	a, err := app.Open(ctx, workspace, app.Options{
		Config:   cfg,
		Platform: client,
		Logger:   logger.Setup(level, cfg.Log.Format, os.Stderr),
	})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func relayClient(env config.RelayEnv) *relay.Client {
	if env.URL == "" {
		return nil
	}
	return relay.New(env.URL, env.Token, env.Timeout)
}

func requireActor() (string, error) {
	actor := viper.GetString("actor-id")
	if actor == "" {
		return "", fmt.Errorf("--actor-id required")
	}
	return actor, nil
}

func kindNames() []string {
	var names []string
	for _, k := range ui.AllKinds() {
		names = append(names, string(k))
	}
	return names
}

func printTasks(tasks []*domain.Task) error {
	if viper.GetBool("json") {
		return printJSON(tasks)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Name", "Creator", "Severity", "Completion", "Categories", "Deleted"})
	for _, t := range tasks {
		sev, _ := t.Severity()
		rate, _ := t.CompletionRate()
		tw.AppendRow(table.Row{t.ID, t.DisplayName(), t.CreatorID, sev, rate, t.CategoryList(), t.Deleted})
	}
	tw.Render()
	return nil
}

func printPlayers(players []*domain.Player) error {
	if viper.GetBool("json") {
		return printJSON(players)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Available", "Credits", "Limits", "Assignments"})
	for _, p := range players {
		tw.AppendRow(table.Row{p.ID, p.Available, p.Credits, strings.Join(p.LimitList(), ","), len(p.Assignments)})
	}
	tw.Render()
	return nil
}

func printCategories(cats []*domain.Category) error {
	if viper.GetBool("json") {
		return printJSON(cats)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Key", "Emoji", "Name", "Description"})
	for _, c := range cats {
		tw.AppendRow(table.Row{c.Key, c.Emoji, c.Name, c.Description})
	}
	tw.Render()
	return nil
}

func printInterfaces(items []ui.Interface) error {
	type row struct {
		MessageID string `json:"message_id"`
		ChannelID string `json:"channel_id"`
		Kind      string `json:"kind"`
	}
	rows := make([]row, 0, len(items))
	for _, i := range items {
		b := i.Bound()
		rows = append(rows, row{MessageID: b.MessageID, ChannelID: b.ChannelID, Kind: string(i.Kind())})
	}
	if viper.GetBool("json") {
		return printJSON(rows)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Message", "Channel", "Kind"})
	for _, r := range rows {
		tw.AppendRow(table.Row{r.MessageID, r.ChannelID, r.Kind})
	}
	tw.Render()
	return nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

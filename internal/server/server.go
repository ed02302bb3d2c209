package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/SeeWhatSticks/task-mistress/internal/app"
	"github.com/SeeWhatSticks/task-mistress/internal/domain"
	"github.com/SeeWhatSticks/task-mistress/internal/engine"
	"github.com/SeeWhatSticks/task-mistress/internal/gateway"
	"github.com/SeeWhatSticks/task-mistress/internal/platform"
	"github.com/SeeWhatSticks/task-mistress/internal/repo"
	"github.com/SeeWhatSticks/task-mistress/internal/store"
	"github.com/SeeWhatSticks/task-mistress/internal/ui"
)

const (
	RoleAdmin = "admin"
	RoleRelay = "relay"
)

// Config for the HTTP API handler.
type Config struct {
	App      *app.App
	Gateway  *gateway.Gateway
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"tasks 7: not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type out[T any] struct {
	Body T
}

func reply[T any](v T) *out[T] {
	return &out[T]{Body: v}
}

// New returns an HTTP handler exposing the game API.
func New(cfg Config) (http.Handler, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Task Mistress API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	a := cfg.App
	registerDocs(router, basePath)
	registerHealth(group)
	if cfg.Gateway != nil {
		registerReactions(group, cfg.Gateway)
	}
	registerPlayers(group, a)
	registerAssignments(group, a)
	registerTasks(group, a.Engine)
	registerCategories(group, a.Engine)
	registerInterfaces(group, a.Registry)
	registerEvents(group, a.Repo)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var fe engine.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"action": fe.Action})
	}
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), map[string]any{"field": ve.Field})
	case errors.Is(err, store.ErrNotFound), errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, store.ErrDuplicate):
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	case errors.Is(err, ui.ErrUnknownKind):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	case errors.Is(err, ui.ErrStale):
		return newAPIError(http.StatusGone, "stale_interface", err.Error(), nil)
	case errors.Is(err, app.ErrNoPlatform):
		return newAPIError(http.StatusServiceUnavailable, "platform_unavailable", err.Error(), nil)
	case platform.IsPlatform(err):
		return newAPIError(http.StatusBadGateway, "platform_error", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// selfOrAdmin allows the acting player to act on their own record.
func selfOrAdmin(ctx context.Context, playerID string) (string, huma.StatusError) {
	actorID, authErr := actorIDFromContext(ctx)
	if authErr != nil {
		return "", authErr
	}
	if actorID == playerID {
		return actorID, nil
	}
	if err := requireRole(ctx, RoleAdmin); err != nil {
		return "", err
	}
	return actorID, nil
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Patch,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	healthPath := path.Join("/", basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Patch,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Task Mistress API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt;.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*out[map[string]string], error) {
		return reply(map[string]string{"status": "ok"}), nil
	})
}

func registerReactions(api huma.API, gw *gateway.Gateway) {
	huma.Register(api, huma.Operation{
		OperationID:   "dispatch-reaction",
		Method:        http.MethodPost,
		Path:          "/events/reactions",
		Summary:       "Dispatch a reaction added on the platform",
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body ReactionRequest
	}) (*out[ReactionResponse], error) {
		if err := requireRole(ctx, RoleRelay); err != nil {
			return nil, err
		}
		outcome := gw.Handle(ctx, platform.ReactionEvent{
			MessageID: input.Body.MessageID,
			ChannelID: input.Body.ChannelID,
			Emoji:     input.Body.Emoji,
			UserID:    input.Body.UserID,
		})
		return reply(ReactionResponse{Outcome: outcome.String()}), nil
	})
}

func registerPlayers(api huma.API, a *app.App) {
	e := a.Engine
	huma.Register(api, huma.Operation{
		OperationID: "list-players",
		Method:      http.MethodGet,
		Path:        "/players",
		Summary:     "List players",
	}, func(ctx context.Context, input *struct {
		Available bool `query:"available" doc:"Only players marked available"`
	}) (*out[[]PlayerResponse], error) {
		players := e.Players.Values()
		if input.Available {
			players = e.AvailablePlayers()
		}
		res := []PlayerResponse{}
		for _, p := range players {
			res = append(res, playerResponse(p))
		}
		return reply(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-player",
		Method:      http.MethodGet,
		Path:        "/players/{player_id}",
		Summary:     "Get player",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlayerID string `path:"player_id"`
	}) (*out[PlayerResponse], error) {
		p, err := e.Players.Get(input.PlayerID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(playerResponse(p)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-availability",
		Method:      http.MethodPut,
		Path:        "/players/{player_id}/availability",
		Summary:     "Mark a player available or unavailable",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		PlayerID string `path:"player_id"`
		Body     AvailabilityRequest
	}) (*out[PlayerResponse], error) {
		if _, err := selfOrAdmin(ctx, input.PlayerID); err != nil {
			return nil, err
		}
		p, err := e.SetAvailable(ctx, input.PlayerID, input.Body.Available)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(playerResponse(p)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "toggle-limit",
		Method:      http.MethodPost,
		Path:        "/players/{player_id}/limits/{limit}/toggle",
		Summary:     "Toggle one limit",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		PlayerID string `path:"player_id"`
		Limit    string `path:"limit"`
	}) (*out[PlayerResponse], error) {
		if _, err := selfOrAdmin(ctx, input.PlayerID); err != nil {
			return nil, err
		}
		p, err := e.ToggleLimit(ctx, input.PlayerID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(playerResponse(p)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "unset-limits",
		Method:      http.MethodDelete,
		Path:        "/players/{player_id}/limits",
		Summary:     "Clear every limit",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		PlayerID string `path:"player_id"`
	}) (*out[PlayerResponse], error) {
		if _, err := selfOrAdmin(ctx, input.PlayerID); err != nil {
			return nil, err
		}
		p, err := e.UnsetLimits(ctx, input.PlayerID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(playerResponse(p)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "grant-credits",
		Method:      http.MethodPost,
		Path:        "/players/{player_id}/credits",
		Summary:     "Grant credits",
		Errors:      []int{http.StatusForbidden, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		PlayerID string `path:"player_id"`
		Body     struct {
			Amount int `json:"amount" minimum:"1"`
		}
	}) (*out[PlayerResponse], error) {
		if err := requireRole(ctx, RoleAdmin); err != nil {
			return nil, err
		}
		actorID, _ := actorIDFromContext(ctx)
		p, err := e.GrantCredits(ctx, input.PlayerID, actorID, input.Body.Amount)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(playerResponse(p)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "beg",
		Method:      http.MethodPost,
		Path:        "/players/{player_id}/beg",
		Summary:     "Beg for a random eligible task",
		Errors:      []int{http.StatusForbidden, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		PlayerID string `path:"player_id"`
	}) (*out[TaskResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if actorID != input.PlayerID {
			return nil, handleError(engine.ForbiddenError{ActorID: actorID, Action: "beg for " + input.PlayerID})
		}
		t, err := e.Beg(ctx, input.PlayerID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(taskResponse(t)), nil
	})
}

func registerAssignments(api huma.API, a *app.App) {
	e := a.Engine
	huma.Register(api, huma.Operation{
		OperationID:   "assign-task",
		Method:        http.MethodPost,
		Path:          "/assignments",
		Summary:       "Assign a task to a player",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body AssignTaskRequest
	}) (*out[AssignmentResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var asg *domain.Assignment
		var err error
		if input.Body.TaskID != nil {
			asg, err = e.AssignTask(ctx, input.Body.PlayerID, *input.Body.TaskID, actorID)
		} else {
			_, asg, err = e.AssignRandomTask(ctx, input.Body.PlayerID, actorID)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return reply(assignmentResponse(asg)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "clear-assignments",
		Method:      http.MethodDelete,
		Path:        "/assignments",
		Summary:     "Clear every player's assignments",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*out[map[string]int], error) {
		if err := requireRole(ctx, RoleAdmin); err != nil {
			return nil, err
		}
		actorID, _ := actorIDFromContext(ctx)
		n, err := e.ClearAllAssignments(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(map[string]int{"players": n}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-assignment",
		Method:      http.MethodPost,
		Path:        "/players/{player_id}/assignments/{task_id}/complete",
		Summary:     "Mark an assignment completed and request verification",
		Errors:      []int{http.StatusForbidden, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		PlayerID string `path:"player_id"`
		TaskID   int    `path:"task_id"`
	}) (*out[AssignmentResponse], error) {
		if _, err := selfOrAdmin(ctx, input.PlayerID); err != nil {
			return nil, err
		}
		asg, _, err := a.Complete(ctx, input.PlayerID, input.TaskID)
		if asg == nil {
			return nil, handleError(err)
		}
		if err != nil {
			a.Logger.Warn("verification interface not posted", "player_id", input.PlayerID, "task_id", input.TaskID, "error", err)
		}
		return reply(assignmentResponse(asg)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "verify-assignment",
		Method:      http.MethodPost,
		Path:        "/players/{player_id}/assignments/{task_id}/verify",
		Summary:     "Approve or reject a completed assignment",
		Errors:      []int{http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		PlayerID string `path:"player_id"`
		TaskID   int    `path:"task_id"`
		Body     VerifyRequest
	}) (*out[map[string]any], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.VerifyAssignment(ctx, input.PlayerID, input.TaskID, actorID, input.Body.Approve)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(map[string]any{
			"assignment": assignmentResponse(res.Assignment),
			"verified":   res.Verified,
			"rejected":   res.Rejected,
		}), nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest
	}) (*out[TaskResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.AddTask(ctx, actorID, input.Body.Text, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(taskResponse(t)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List live tasks",
	}, func(ctx context.Context, input *struct {
		CreatorID string `query:"creator_id"`
		ForPlayer string `query:"for_player" doc:"Only tasks that could be assigned to this player"`
	}) (*out[[]TaskResponse], error) {
		var tasks []*domain.Task
		switch {
		case input.ForPlayer != "":
			tasks = e.TasksForPlayer(input.ForPlayer)
		case input.CreatorID != "":
			tasks = e.TasksByPlayer(input.CreatorID)
		default:
			for _, t := range e.Tasks.Values() {
				if !t.Deleted {
					tasks = append(tasks, t)
				}
			}
		}
		res := []TaskResponse{}
		for _, t := range tasks {
			res = append(res, taskResponse(t))
		}
		return reply(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID int `path:"task_id"`
	}) (*out[TaskResponse], error) {
		t, err := e.Task(input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(taskResponse(t)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}",
		Summary:     "Edit a task's text or name",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		TaskID int `path:"task_id"`
		Body   UpdateTaskRequest
	}) (*out[TaskResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.EditTask(ctx, input.TaskID, actorID, engine.TaskEditOptions{Text: input.Body.Text, Name: input.Body.Name})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(taskResponse(t)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{task_id}",
		Summary:     "Delete a task",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID int `path:"task_id"`
	}) (*out[TaskResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.DeleteTask(ctx, input.TaskID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(taskResponse(t)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rate-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/ratings",
		Summary:     "Rate a task from 1 to 5",
		Errors:      []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		TaskID int `path:"task_id"`
		Body   RateTaskRequest
	}) (*out[TaskResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.RateTask(ctx, input.TaskID, actorID, input.Body.Rating)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(taskResponse(t)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "toggle-task-category",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/categories/{key}/toggle",
		Summary:     "Toggle a category on a task",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID int `path:"task_id"`
		Key    int `path:"key"`
	}) (*out[TaskResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.ToggleTaskCategory(ctx, input.TaskID, actorID, input.Key)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(taskResponse(t)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cleanup-tasks",
		Method:      http.MethodPost,
		Path:        "/tasks/cleanup",
		Summary:     "Purge deleted tasks",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*out[CleanupResponse], error) {
		if err := requireRole(ctx, RoleAdmin); err != nil {
			return nil, err
		}
		actorID, _ := actorIDFromContext(ctx)
		removed, err := e.CleanupTasks(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(CleanupResponse{Removed: nonNilSlice(removed)}), nil
	})
}

func registerCategories(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-categories",
		Method:      http.MethodGet,
		Path:        "/categories",
		Summary:     "List categories",
	}, func(ctx context.Context, _ *struct{}) (*out[[]CategoryResponse], error) {
		res := []CategoryResponse{}
		for _, c := range e.ListCategories() {
			res = append(res, categoryResponse(c))
		}
		return reply(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-category",
		Method:        http.MethodPost,
		Path:          "/categories",
		Summary:       "Create category",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CreateCategoryRequest
	}) (*out[CategoryResponse], error) {
		if err := requireRole(ctx, RoleAdmin); err != nil {
			return nil, err
		}
		actorID, _ := actorIDFromContext(ctx)
		c, err := e.AddCategory(ctx, input.Body.Name, input.Body.Emoji, input.Body.Description, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(categoryResponse(c)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-category",
		Method:        http.MethodDelete,
		Path:          "/categories/{key}",
		Summary:       "Remove a category from every task and limit",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Key int `path:"key"`
	}) (*struct{}, error) {
		if err := requireRole(ctx, RoleAdmin); err != nil {
			return nil, err
		}
		actorID, _ := actorIDFromContext(ctx)
		if err := e.RemoveCategory(ctx, input.Key, actorID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

func registerInterfaces(api huma.API, reg *ui.Registry) {
	huma.Register(api, huma.Operation{
		OperationID: "list-interfaces",
		Method:      http.MethodGet,
		Path:        "/interfaces",
		Summary:     "List registered interfaces",
	}, func(ctx context.Context, _ *struct{}) (*out[[]InterfaceResponse], error) {
		res := []InterfaceResponse{}
		for _, i := range reg.List() {
			res = append(res, interfaceResponse(i))
		}
		return reply(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "post-interface",
		Method:        http.MethodPost,
		Path:          "/interfaces",
		Summary:       "Post an interface to a channel",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Body PostInterfaceRequest
	}) (*out[InterfaceResponse], error) {
		if err := requireRole(ctx, RoleAdmin); err != nil {
			return nil, err
		}
		iface, err := ui.New(ui.Kind(input.Body.Kind), input.Body.PlayerID, input.Body.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		posted, err := reg.Post(ctx, input.Body.ChannelID, iface)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(interfaceResponse(posted)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh-interfaces",
		Method:      http.MethodPost,
		Path:        "/interfaces/refresh",
		Summary:     "Re-render every interface and drop the stale ones",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*out[map[string]int], error) {
		if err := requireRole(ctx, RoleAdmin); err != nil {
			return nil, err
		}
		updated, dropped, err := reg.Refresh(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(map[string]int{"updated": updated, "dropped": dropped}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-interface",
		Method:        http.MethodDelete,
		Path:          "/interfaces/{message_id}",
		Summary:       "Delete an interface and its message",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		MessageID string `path:"message_id"`
	}) (*struct{}, error) {
		if err := requireRole(ctx, RoleAdmin); err != nil {
			return nil, err
		}
		if err := reg.Delete(ctx, input.MessageID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

func registerEvents(api huma.API, r repo.Repo) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent journal events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*out[paginatedEvents], error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := r.LatestEvents(ctx, repo.EventFilter{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Cursor:     cursorID,
			Limit:      limit + 1,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			items = items[:limit]
			resp.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return reply(resp), nil
	})
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SeeWhatSticks/task-mistress/internal/app"
	"github.com/SeeWhatSticks/task-mistress/internal/config"
	"github.com/SeeWhatSticks/task-mistress/internal/gateway"
	"github.com/SeeWhatSticks/task-mistress/internal/logger"
	"github.com/SeeWhatSticks/task-mistress/internal/platform/platformtest"
)

const testSecret = "test-secret"

type testServer struct {
	*httptest.Server
	app  *app.App
	fake *platformtest.Fake
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Bot.InfoChannel = "info"
	fake := platformtest.New()
	a, err := app.Open(context.Background(), t.TempDir(), app.Options{
		Config:   cfg,
		Platform: fake,
		Logger:   logger.Discard(),
	})
	require.NoError(t, err)
	gw := gateway.New(a.Registry, fake, a.Logger, gateway.Options{})
	handler, err := New(Config{
		App:      a,
		Gateway:  gw,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: testSecret, Logger: a.Logger},
	})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		a.Close()
	})
	return &testServer{Server: srv, app: a, fake: fake}
}

func bearer(t *testing.T, subject string, roles ...string) map[string]string {
	t.Helper()
	token, err := IssueToken(testSecret, subject, roles...)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestHealthIsPublic(t *testing.T) {
	srv := newTestServer(t)
	res, body := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))

	res, body = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks", nil, nil)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode, string(body))
	assert.Equal(t, "unauthorized", decode[apiError](t, body).Body.Code)

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks", nil, map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestAssignCompleteVerifyOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	creator := bearer(t, "1")
	player := bearer(t, "42")

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", CreateTaskRequest{Text: "ten pushups", Name: "Pushups"}, creator)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(body))
	task := decode[TaskResponse](t, body)
	assert.Equal(t, "Pushups", task.Name)

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments", AssignTaskRequest{PlayerID: "42", TaskID: &task.ID}, creator)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(body))
	assert.Equal(t, "1", decode[AssignmentResponse](t, body).AssignerID)

	url := fmt.Sprintf("%s/v0/players/42/assignments/%d", srv.URL, task.ID)
	res, body = doJSON(t, client, http.MethodPost, url+"/complete", nil, creator)
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(body))

	res, body = doJSON(t, client, http.MethodPost, url+"/complete", nil, player)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	assert.True(t, decode[AssignmentResponse](t, body).Completed)
	require.Len(t, srv.fake.Sent(), 1)
	assert.Equal(t, "info", srv.fake.Sent()[0].ChannelID)

	res, body = doJSON(t, client, http.MethodPost, url+"/verify", VerifyRequest{Approve: true}, player)
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode, string(body))

	res, body = doJSON(t, client, http.MethodPost, url+"/verify", VerifyRequest{Approve: true}, creator)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	assert.Equal(t, true, decode[map[string]any](t, body)["verified"])

	res, body = doJSON(t, client, http.MethodGet, fmt.Sprintf("%s/v0/tasks/%d", srv.URL, task.ID), nil, player)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	assert.Equal(t, 1, decode[TaskResponse](t, body).TotalCompletions)

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?type=assignment.completed", nil, player)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	assert.Len(t, decode[paginatedEvents](t, body).Items, 1)
}

func TestOnlyCreatorEditsTask(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", CreateTaskRequest{Text: "plank"}, bearer(t, "1"))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(body))
	task := decode[TaskResponse](t, body)

	text := "longer plank"
	url := fmt.Sprintf("%s/v0/tasks/%d", srv.URL, task.ID)
	res, body = doJSON(t, client, http.MethodPatch, url, UpdateTaskRequest{Text: &text}, bearer(t, "2"))
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(body))
	assert.Equal(t, "forbidden", decode[apiError](t, body).Body.Code)

	res, body = doJSON(t, client, http.MethodPatch, url, UpdateTaskRequest{Text: &text}, bearer(t, "1"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	assert.Equal(t, text, decode[TaskResponse](t, body).Text)

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks/99", nil, bearer(t, "1"))
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestCategoriesRequireAdmin(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	req := CreateCategoryRequest{Name: "fitness", Emoji: "💪"}

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/categories", req, bearer(t, "1"))
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(body))

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/categories", req, bearer(t, "1", RoleAdmin))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(body))
	cat := decode[CategoryResponse](t, body)

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/categories", req, bearer(t, "1", RoleAdmin))
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode, string(body))

	res, body = doJSON(t, client, http.MethodDelete, fmt.Sprintf("%s/v0/categories/%d", srv.URL, cat.Key), nil, bearer(t, "1", RoleAdmin))
	require.Equal(t, http.StatusNoContent, res.StatusCode, string(body))

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/categories", nil, bearer(t, "1"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	assert.Empty(t, decode[[]CategoryResponse](t, body))
}

func TestReactionDispatch(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	admin := bearer(t, "1", RoleAdmin)

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/interfaces", PostInterfaceRequest{Kind: "actions", ChannelID: "c1"}, admin)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(body))
	posted := decode[InterfaceResponse](t, body)
	assert.Equal(t, "c1", posted.ChannelID)

	available := srv.app.Config.Interfaces.Buttons.Available
	reaction := ReactionRequest{MessageID: posted.MessageID, Emoji: available, UserID: "42"}

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/events/reactions", reaction, admin)
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(body))

	relay := bearer(t, "relay", RoleRelay)
	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/events/reactions", reaction, relay)
	require.Equal(t, http.StatusAccepted, res.StatusCode, string(body))
	assert.Equal(t, "handled", decode[ReactionResponse](t, body).Outcome)

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/players/42", nil, admin)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	assert.True(t, decode[PlayerResponse](t, body).Available)

	reaction.UserID = "bot"
	_, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/events/reactions", reaction, relay)
	assert.Equal(t, "dropped", decode[ReactionResponse](t, body).Outcome)

	reaction = ReactionRequest{MessageID: "unknown", Emoji: available, UserID: "42"}
	_, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/events/reactions", reaction, relay)
	assert.Equal(t, "ignored", decode[ReactionResponse](t, body).Outcome)

	res, body = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/interfaces/"+posted.MessageID, nil, admin)
	require.Equal(t, http.StatusNoContent, res.StatusCode, string(body))
	assert.False(t, srv.fake.Exists(posted.MessageID))
}

func TestUnknownInterfaceKind(t *testing.T) {
	srv := newTestServer(t)
	res, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/interfaces",
		PostInterfaceRequest{Kind: "scoreboard", ChannelID: "c1"}, bearer(t, "1", RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, string(body))
}

func TestActorHeaderNeedsOptIn(t *testing.T) {
	srv := newTestServer(t)
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/players", nil, map[string]string{"X-Actor-Id": "1"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

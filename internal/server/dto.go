package server

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/SeeWhatSticks/task-mistress/internal/domain"
	"github.com/SeeWhatSticks/task-mistress/internal/ui"
)

// Request payloads

type ReactionRequest struct {
	MessageID string `json:"message_id" minLength:"1"`
	ChannelID string `json:"channel_id,omitempty"`
	Emoji     string `json:"emoji" minLength:"1"`
	UserID    string `json:"user_id" minLength:"1"`
}

type CreateTaskRequest struct {
	Text string `json:"text" minLength:"1"`
	Name string `json:"name,omitempty"`
}

type UpdateTaskRequest struct {
	Text *string `json:"text,omitempty"`
	Name *string `json:"name,omitempty"`
}

type RateTaskRequest struct {
	Rating int `json:"rating" minimum:"1" maximum:"5"`
}

type AssignTaskRequest struct {
	PlayerID string `json:"player_id" minLength:"1"`
	// TaskID picks a random eligible task when omitted.
	TaskID *int `json:"task_id,omitempty"`
}

type VerifyRequest struct {
	Approve bool `json:"approve"`
}

type AvailabilityRequest struct {
	Available bool `json:"available"`
}

type CreateCategoryRequest struct {
	Name        string `json:"name" minLength:"1"`
	Emoji       string `json:"emoji" minLength:"1"`
	Description string `json:"description,omitempty"`
}

type PostInterfaceRequest struct {
	Kind      string `json:"kind" enum:"actions,category_info,limits,categories,assignments,tasks,verification"`
	ChannelID string `json:"channel_id" minLength:"1"`
	PlayerID  string `json:"player_id,omitempty"`
	TaskID    int    `json:"task_id,omitempty"`
}

// Responses

type ReactionResponse struct {
	Outcome string `json:"outcome" enum:"dropped,ignored,handled,failed"`
}

type AssignmentResponse struct {
	TaskID         int        `json:"task_id"`
	AssignerID     string     `json:"assigner_id,omitempty"`
	AssignmentTime time.Time  `json:"assignment_time"`
	Completed      bool       `json:"completed"`
	CompletionTime *time.Time `json:"completion_time,omitempty"`
	Verifiers      []string   `json:"verifiers"`
	RoundStart     int        `json:"round_start,omitempty"`
	VerifiedAt     *time.Time `json:"verified_at,omitempty"`
}

type PlayerResponse struct {
	ID          string               `json:"id"`
	Available   bool                 `json:"available"`
	Credits     int                  `json:"credits"`
	Limits      []string             `json:"limits"`
	Assignments []AssignmentResponse `json:"assignments"`
	LastBegTime *time.Time           `json:"last_beg_time,omitempty"`
}

type TaskResponse struct {
	ID               int       `json:"id"`
	Name             string    `json:"name"`
	Text             string    `json:"text"`
	CreatorID        string    `json:"creator_id"`
	CreationTime     time.Time `json:"creation_time"`
	Categories       []int     `json:"categories"`
	Severity         string    `json:"severity,omitempty"`
	CompletionRate   string    `json:"completion_rate,omitempty"`
	TotalAssignments int       `json:"total_assignments"`
	TotalCompletions int       `json:"total_completions"`
	Deleted          bool      `json:"deleted"`
}

type CategoryResponse struct {
	Key         int    `json:"key"`
	Name        string `json:"name"`
	Emoji       string `json:"emoji"`
	Description string `json:"description,omitempty"`
}

type InterfaceResponse struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
	Kind      string `json:"kind"`
	Page      *int   `json:"page,omitempty"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type CleanupResponse struct {
	Removed []int `json:"removed"`
}

func assignmentResponse(a *domain.Assignment) AssignmentResponse {
	return AssignmentResponse{
		TaskID:         a.TaskID,
		AssignerID:     a.AssignerID,
		AssignmentTime: a.AssignmentTime,
		Completed:      a.Completed,
		CompletionTime: a.CompletionTime,
		Verifiers:      nonNilSlice(a.Verifiers),
		RoundStart:     a.RoundStart,
		VerifiedAt:     a.VerifiedAt,
	}
}

func playerResponse(p *domain.Player) PlayerResponse {
	res := PlayerResponse{
		ID:          p.ID,
		Available:   p.Available,
		Credits:     p.Credits,
		Limits:      nonNilSlice(p.LimitList()),
		Assignments: []AssignmentResponse{},
		LastBegTime: p.LastBegTime,
	}
	ids := make([]int, 0, len(p.Assignments))
	for id := range p.Assignments {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		res.Assignments = append(res.Assignments, assignmentResponse(p.Assignments[id]))
	}
	return res
}

func taskResponse(t *domain.Task) TaskResponse {
	res := TaskResponse{
		ID:               t.ID,
		Name:             t.DisplayName(),
		Text:             t.Text,
		CreatorID:        t.CreatorID,
		CreationTime:     t.CreationTime,
		Categories:       nonNilSlice(t.CategoryList()),
		TotalAssignments: t.TotalAssignments,
		TotalCompletions: t.TotalCompletions,
		Deleted:          t.Deleted,
	}
	if sev, err := t.Severity(); err == nil {
		res.Severity = sev
	}
	if rate, err := t.CompletionRate(); err == nil {
		res.CompletionRate = rate
	}
	return res
}

func categoryResponse(c *domain.Category) CategoryResponse {
	return CategoryResponse{Key: c.Key, Name: c.Name, Emoji: c.Emoji, Description: c.Description}
}

func interfaceResponse(i ui.Interface) InterfaceResponse {
	b := i.Bound()
	return InterfaceResponse{MessageID: b.MessageID, ChannelID: b.ChannelID, Kind: string(i.Kind()), Page: b.Page}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil
	}
	return obj
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

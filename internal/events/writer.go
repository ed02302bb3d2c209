package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SeeWhatSticks/task-mistress/internal/domain"
	"github.com/SeeWhatSticks/task-mistress/internal/repo"
)

type Writer struct {
	Repo repo.Repo
	Now  func() time.Time
}

type EventPayload map[string]any

type correlationKey struct{}

// WithCorrelation tags every event appended under ctx with id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func Correlation(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

func (w Writer) Append(ctx context.Context, evtType, entityKind, entityID, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = w.Repo.InsertEvent(ctx, domain.Event{
		TS:         w.Now().UTC().Format(time.RFC3339),
		Type:       evtType,
		EntityKind: entityKind,
		EntityID:   entityID,
		ActorID:    actorID,
		Payload:    string(data),
	}, Correlation(ctx))
	return err
}

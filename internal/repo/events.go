package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/SeeWhatSticks/task-mistress/internal/domain"
)

type EventFilter struct {
	Type       string
	EntityKind string
	EntityID   string
	// Cursor returns events with an id below it when positive.
	Cursor int64
	Limit  int
}

func (r Repo) InsertEvent(ctx context.Context, e domain.Event, correlationID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json,correlation_id) VALUES (?,?,?,?,?,?,?)`,
		e.TS, e.Type, e.EntityKind, nullable(e.EntityID), e.ActorID, nullable(e.Payload), nullable(correlationID))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LatestEvents lists events newest first.
func (r Repo) LatestEvents(ctx context.Context, f EventFilter) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.Cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Cursor)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE %s ORDER BY id DESC LIMIT ?`,
		strings.Join(clauses, " AND "))
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) GetEvent(ctx context.Context, id int64) (domain.Event, error) {
	var e domain.Event
	var payload sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE id=?`, id).
		Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &payload)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	if payload.Valid {
		e.Payload = payload.String
	}
	return e, nil
}

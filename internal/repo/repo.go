package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SeeWhatSticks/task-mistress/internal/store"
)

// Repo is the SQLite side of persistence: store records and the event journal.
type Repo struct {
	DB  *sql.DB
	Now func() time.Time
}

var ErrNotFound = errors.New("not found")

var _ store.Backend = Repo{}

func (r Repo) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Read returns the records of kind in saved order. A kind that was never
// saved reports store.ErrMissing.
func (r Repo) Read(ctx context.Context, kind string) ([]json.RawMessage, error) {
	var savedAt string
	err := r.DB.QueryRowContext(ctx, `SELECT saved_at FROM stores WHERE kind=?`, kind).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: kind %s", store.ErrMissing, kind)
	}
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT key,data FROM records WHERE kind=? ORDER BY position`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []json.RawMessage
	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return nil, err
		}
		if !json.Valid([]byte(data)) {
			return nil, fmt.Errorf("%w: %s record %s", store.ErrCorrupt, kind, key)
		}
		out = append(out, json.RawMessage(data))
	}
	return out, rows.Err()
}

// Write replaces every record of kind in one transaction.
func (r Repo) Write(ctx context.Context, kind string, records []json.RawMessage) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE kind=?`, kind); err != nil {
		return fmt.Errorf("clear %s: %w", kind, err)
	}
	for i, raw := range records {
		key, err := recordKey(raw)
		if err != nil {
			return fmt.Errorf("%s record %d: %w", kind, i, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO records(kind,key,position,data) VALUES (?,?,?,?)`,
			kind, key, i, string(raw)); err != nil {
			return fmt.Errorf("insert %s %s: %w", kind, key, err)
		}
	}
	ts := r.now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `INSERT INTO stores(kind,saved_at) VALUES (?,?) ON CONFLICT(kind) DO UPDATE SET saved_at=excluded.saved_at`,
		kind, ts); err != nil {
		return fmt.Errorf("mark %s saved: %w", kind, err)
	}
	return tx.Commit()
}

// Record fetches one raw record by kind and key.
func (r Repo) Record(ctx context.Context, kind, key string) (json.RawMessage, error) {
	var data string
	err := r.DB.QueryRowContext(ctx, `SELECT data FROM records WHERE kind=? AND key=?`, kind, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// CountRecords reports how many records each saved kind holds.
func (r Repo) CountRecords(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT s.kind, COUNT(rec.key) FROM stores s LEFT JOIN records rec ON rec.kind=s.kind GROUP BY s.kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, rows.Err()
}

func recordKey(raw json.RawMessage) (string, error) {
	var head struct {
		Key json.RawMessage `json:"key"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", err
	}
	if len(head.Key) == 0 {
		return "", errors.New("record has no key")
	}
	var k any
	if err := json.Unmarshal(head.Key, &k); err != nil {
		return "", err
	}
	switch v := k.(type) {
	case string:
		return v, nil
	case float64:
		return fmt.Sprintf("%d", int64(v)), nil
	default:
		return "", fmt.Errorf("unsupported key %s", string(head.Key))
	}
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

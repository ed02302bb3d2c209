package ui

import (
	"encoding/json"
	"fmt"

	"github.com/SeeWhatSticks/task-mistress/internal/store"
)

// ErrUnknownKind marks a persisted interface whose type has no variant.
var ErrUnknownKind = fmt.Errorf("%w: unknown interface type", store.ErrCorrupt)

func unknownKind(k Kind) error {
	return fmt.Errorf("%w %q", ErrUnknownKind, k)
}

// record is the persisted form shared by every variant. Type is written on
// every save and decides the variant on load.
type record struct {
	Type Kind `json:"type"`
	Binding
	PlayerID string `json:"player_id,omitempty"`
	TaskID   *int   `json:"task_id,omitempty"`
}

func Encode(iface Interface) (json.RawMessage, error) {
	rec := record{Type: iface.Kind(), Binding: *iface.Bound()}
	switch v := iface.(type) {
	case *Actions, *CategoryInfo:
	case *Limits:
		rec.PlayerID = v.PlayerID
	case *Categories:
		rec.TaskID = &v.TaskID
	case *Assignments:
		rec.PlayerID = v.PlayerID
	case *Tasks:
		rec.PlayerID = v.PlayerID
	case *Verification:
		rec.PlayerID = v.PlayerID
		rec.TaskID = &v.TaskID
	default:
		return nil, unknownKind(iface.Kind())
	}
	return json.Marshal(rec)
}

func Decode(raw json.RawMessage) (Interface, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	if !rec.Type.Paginated() {
		rec.Page = nil
	} else if rec.Page == nil {
		rec.Page = firstPage()
	}
	needPlayer := func() error {
		if rec.PlayerID == "" {
			return fmt.Errorf("%w: %s interface %s without player_id", store.ErrCorrupt, rec.Type, rec.MessageID)
		}
		return nil
	}
	needTask := func() (int, error) {
		if rec.TaskID == nil {
			return 0, fmt.Errorf("%w: %s interface %s without task_id", store.ErrCorrupt, rec.Type, rec.MessageID)
		}
		return *rec.TaskID, nil
	}

	switch rec.Type {
	case KindActions:
		return &Actions{Binding: rec.Binding}, nil
	case KindCategoryInfo:
		return &CategoryInfo{Binding: rec.Binding}, nil
	case KindLimits:
		if err := needPlayer(); err != nil {
			return nil, err
		}
		return &Limits{Binding: rec.Binding, PlayerID: rec.PlayerID}, nil
	case KindCategories:
		id, err := needTask()
		if err != nil {
			return nil, err
		}
		return &Categories{Binding: rec.Binding, TaskID: id}, nil
	case KindAssignments:
		if err := needPlayer(); err != nil {
			return nil, err
		}
		return &Assignments{Binding: rec.Binding, PlayerID: rec.PlayerID}, nil
	case KindTasks:
		if err := needPlayer(); err != nil {
			return nil, err
		}
		return &Tasks{Binding: rec.Binding, PlayerID: rec.PlayerID}, nil
	case KindVerification:
		if err := needPlayer(); err != nil {
			return nil, err
		}
		id, err := needTask()
		if err != nil {
			return nil, err
		}
		return &Verification{Binding: rec.Binding, PlayerID: rec.PlayerID, TaskID: id}, nil
	}
	return nil, unknownKind(rec.Type)
}

// Codec persists interfaces keyed by message id.
func Codec() store.Codec[string, Interface] {
	return store.Codec[string, Interface]{
		Key:    func(i Interface) string { return i.Bound().MessageID },
		Encode: Encode,
		Decode: Decode,
	}
}

func clone(iface Interface) (Interface, error) {
	raw, err := Encode(iface)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

package domain

// Category labels tasks. Players use category keys as limits.
type Category struct {
	Key         int    `json:"key"`
	Name        string `json:"name"`
	Emoji       string `json:"emoji"`
	Description string `json:"description,omitempty"`
}

// Equal compares categories by key.
func (c Category) Equal(o Category) bool {
	return c.Key == o.Key
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json,omitempty"`
}

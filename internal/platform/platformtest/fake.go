// Package platformtest provides an in-memory platform.Client for tests.
package platformtest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/SeeWhatSticks/task-mistress/internal/platform"
)

type Reaction struct {
	Emoji  string
	UserID string
}

type message struct {
	channelID string
	content   platform.Content
	reactions []Reaction
}

// Fake keeps messages in memory. Fail injects an error for an operation name
// ("send", "edit_message", "add_reaction", ...) until cleared.
type Fake struct {
	BotUserID string

	mu       sync.Mutex
	nextID   int
	messages map[string]*message
	users    map[string]platform.User
	failures map[string]error
	calls    map[string]int
	sent     []platform.Message
}

var _ platform.Client = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		BotUserID: "bot",
		messages:  map[string]*message{},
		users:     map[string]platform.User{"bot": {ID: "bot", Name: "bot", Bot: true}},
		failures:  map[string]error{},
		calls:     map[string]int{},
	}
}

// AddUser registers a user; unknown ids resolve to non-bot users.
func (f *Fake) AddUser(u platform.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
}

func (f *Fake) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

// FailKind injects a *platform.Error of the given kind for op.
func (f *Fake) FailKind(op string, kind platform.ErrorKind) {
	f.Fail(op, platform.NewError(kind, op, errors.New("injected")))
}

func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Content returns the current content of a message.
func (f *Fake) Content(id string) (platform.Content, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return platform.Content{}, false
	}
	return m.content, true
}

func (f *Fake) Reactions(id string) []Reaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return nil
	}
	return slices.Clone(m.reactions)
}

func (f *Fake) Exists(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.messages[id]
	return ok
}

// Sent lists every message sent, oldest first.
func (f *Fake) Sent() []platform.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.sent)
}

// Remove deletes a message behind the bot's back.
func (f *Fake) Remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.messages, id)
}

func (f *Fake) enter(op string) error {
	f.calls[op]++
	return f.failures[op]
}

func notFound(op, id string) error {
	return platform.NewError(platform.KindNotFound, op, fmt.Errorf("message %s", id))
}

func (f *Fake) FetchMessage(_ context.Context, id string) (platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("fetch_message"); err != nil {
		return platform.Message{}, err
	}
	m, ok := f.messages[id]
	if !ok {
		return platform.Message{}, notFound("fetch_message", id)
	}
	return platform.Message{ID: id, ChannelID: m.channelID, Content: m.content}, nil
}

func (f *Fake) EditMessage(_ context.Context, id string, content platform.Content) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("edit_message"); err != nil {
		return err
	}
	m, ok := f.messages[id]
	if !ok {
		return notFound("edit_message", id)
	}
	m.content = content
	return nil
}

func (f *Fake) DeleteMessage(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("delete_message"); err != nil {
		return err
	}
	if _, ok := f.messages[id]; !ok {
		return notFound("delete_message", id)
	}
	delete(f.messages, id)
	return nil
}

func (f *Fake) AddReaction(_ context.Context, id, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("add_reaction"); err != nil {
		return err
	}
	m, ok := f.messages[id]
	if !ok {
		return notFound("add_reaction", id)
	}
	m.reactions = append(m.reactions, Reaction{Emoji: emoji, UserID: f.BotUserID})
	return nil
}

func (f *Fake) ClearReactions(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("clear_reactions"); err != nil {
		return err
	}
	m, ok := f.messages[id]
	if !ok {
		return notFound("clear_reactions", id)
	}
	m.reactions = nil
	return nil
}

// React records a user's reaction as the platform would before emitting an event.
func (f *Fake) React(id, emoji, userID string) platform.ReactionEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev := platform.ReactionEvent{MessageID: id, Emoji: emoji, UserID: userID}
	if m, ok := f.messages[id]; ok {
		m.reactions = append(m.reactions, Reaction{Emoji: emoji, UserID: userID})
		ev.ChannelID = m.channelID
	}
	return ev
}

func (f *Fake) RemoveReaction(_ context.Context, id, emoji, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("remove_reaction"); err != nil {
		return err
	}
	m, ok := f.messages[id]
	if !ok {
		return notFound("remove_reaction", id)
	}
	for i, r := range m.reactions {
		if r.Emoji == emoji && r.UserID == userID {
			m.reactions = slices.Delete(m.reactions, i, i+1)
			break
		}
	}
	return nil
}

func (f *Fake) FetchUser(_ context.Context, id string) (platform.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("fetch_user"); err != nil {
		return platform.User{}, err
	}
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return platform.User{ID: id, Name: "user-" + id}, nil
}

func (f *Fake) Send(_ context.Context, channelID string, content platform.Content) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("send"); err != nil {
		return "", err
	}
	f.nextID++
	id := fmt.Sprintf("m%d", f.nextID)
	f.messages[id] = &message{channelID: channelID, content: content}
	f.sent = append(f.sent, platform.Message{ID: id, ChannelID: channelID, Content: content})
	return id, nil
}

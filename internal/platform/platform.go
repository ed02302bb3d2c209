// Package platform describes the chat platform operations the bot relies on.
package platform

import (
	"context"
	"errors"
	"fmt"
)

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Content is the structured body of a bot message.
type Content struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
	Footer      string  `json:"footer,omitempty"`
}

// Text builds plain content.
func Text(s string) Content {
	return Content{Description: s}
}

type Message struct {
	ID        string  `json:"id"`
	ChannelID string  `json:"channel_id"`
	Content   Content `json:"content"`
}

type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Bot  bool   `json:"bot"`
}

// ReactionEvent is one reaction added to a message.
type ReactionEvent struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
	Emoji     string `json:"emoji"`
	UserID    string `json:"user_id"`
}

// Client is every platform call the core makes. All of them can fail.
type Client interface {
	FetchMessage(ctx context.Context, id string) (Message, error)
	EditMessage(ctx context.Context, id string, content Content) error
	DeleteMessage(ctx context.Context, id string) error
	AddReaction(ctx context.Context, id, emoji string) error
	ClearReactions(ctx context.Context, id string) error
	RemoveReaction(ctx context.Context, id, emoji, userID string) error
	FetchUser(ctx context.Context, id string) (User, error)
	Send(ctx context.Context, channelID string, content Content) (string, error)
}

type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindForbidden
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	default:
		return "other"
	}
}

// Error is a failed platform call.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("platform %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("platform %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func kindOf(err error) (ErrorKind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return KindOther, false
}

func IsForbidden(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindForbidden
}

func IsNotFound(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindNotFound
}

// Stale reports whether err means the bound message can no longer be used.
func Stale(err error) bool {
	return IsForbidden(err) || IsNotFound(err)
}

// IsPlatform reports whether err came from a platform call.
func IsPlatform(err error) bool {
	_, ok := kindOf(err)
	return ok
}

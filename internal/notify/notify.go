// Package notify delivers real-time events to connected users. Delivery is
// fire-and-forget: a slow or missing recipient never fails the sender.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NewAnswer        NotificationType = "new_answer"
	AnswerAccepted   NotificationType = "answer_accepted"
	NewComment       NotificationType = "new_comment"
	PostVoted        NotificationType = "post_voted"
	AnswerVoted      NotificationType = "answer_voted"
	CommentVoted     NotificationType = "comment_voted"
	PostModerated    NotificationType = "post_moderated"
	UserMentioned    NotificationType = "user_mentioned"
	SpaceInvitation  NotificationType = "space_invitation"
	ReputationChange NotificationType = "reputation_change"
)

// Socket event names.
const (
	EventNotification  = "notification"
	EventPostUpdate    = "post-update"
	EventAnswerUpdate  = "answer-update"
	EventCommentUpdate = "comment-update"
	EventVoteUpdate    = "vote-update"
	EventTypingStart   = "typing-start"
	EventTypingStop    = "typing-stop"
	EventError         = "error"
)

// Event is one message pushed to a socket.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

type Notification struct {
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	Data      map[string]any   `json:"data,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

func NewNotification(typ NotificationType, message string, data map[string]any) Event {
	return Event{
		Name: EventNotification,
		Data: Notification{Type: typ, Message: message, Data: data, CreatedAt: time.Now().UTC()},
	}
}

// Fanout sends events to a user's sockets or to everyone in a room.
type Fanout interface {
	DeliverToUser(ctx context.Context, userID uuid.UUID, ev Event)
	// DeliverToRoom skips sockets owned by exclude; pass uuid.Nil to reach everyone.
	DeliverToRoom(ctx context.Context, room string, ev Event, exclude uuid.UUID)
}

func UserRoom(id uuid.UUID) string  { return "user:" + id.String() }
func SpaceRoom(id uuid.UUID) string { return "space:" + id.String() }
func PostRoom(id uuid.UUID) string  { return "post:" + id.String() }

// Discard drops every event.
type Discard struct{}

func (Discard) DeliverToUser(context.Context, uuid.UUID, Event)         {}
func (Discard) DeliverToRoom(context.Context, string, Event, uuid.UUID) {}

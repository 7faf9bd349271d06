package testutil

import (
	"context"
	"sync"

	"github.com/Baaaki/agora/internal/notify"
	"github.com/google/uuid"
)

// Delivery is one event captured by RecordingFanout.
type Delivery struct {
	UserID  uuid.UUID // set for user deliveries
	Room    string    // set for room deliveries
	Exclude uuid.UUID
	Event   notify.Event
}

// RecordingFanout is a notify.Fanout that keeps every delivery.
type RecordingFanout struct {
	mu         sync.Mutex
	deliveries []Delivery
}

func (f *RecordingFanout) DeliverToUser(_ context.Context, userID uuid.UUID, ev notify.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, Delivery{UserID: userID, Event: ev})
}

func (f *RecordingFanout) DeliverToRoom(_ context.Context, room string, ev notify.Event, exclude uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, Delivery{Room: room, Exclude: exclude, Event: ev})
}

// Notifications returns the notification types delivered to userID, in order.
func (f *RecordingFanout) Notifications(userID uuid.UUID) []notify.NotificationType {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notify.NotificationType
	for _, d := range f.deliveries {
		if d.UserID != userID || d.Event.Name != notify.EventNotification {
			continue
		}
		if n, ok := d.Event.Data.(notify.Notification); ok {
			out = append(out, n.Type)
		}
	}
	return out
}

// RoomEvents returns the event names delivered to room, in order.
func (f *RecordingFanout) RoomEvents(room string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, d := range f.deliveries {
		if d.Room == room {
			out = append(out, d.Event.Name)
		}
	}
	return out
}

// SentMail is one email captured by RecordingMailer.
type SentMail struct {
	Kind  string // "verification" or "reset"
	To    string
	Token string
	Name  string
}

// RecordingMailer is a mailer.Mailer that keeps the raw tokens it was given.
type RecordingMailer struct {
	mu   sync.Mutex
	Sent []SentMail
	Err  error
}

func (m *RecordingMailer) SendVerificationEmail(_ context.Context, to, token, name string) error {
	return m.record("verification", to, token, name)
}

func (m *RecordingMailer) SendPasswordResetEmail(_ context.Context, to, token, name string) error {
	return m.record("reset", to, token, name)
}

func (m *RecordingMailer) record(kind, to, token, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMail{Kind: kind, To: to, Token: token, Name: name})
	return m.Err
}

// Last returns the most recent email of kind, or false.
func (m *RecordingMailer) Last(kind string) (SentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Sent) - 1; i >= 0; i-- {
		if m.Sent[i].Kind == kind {
			return m.Sent[i], true
		}
	}
	return SentMail{}, false
}

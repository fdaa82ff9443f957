package chat

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hadhyhermawan/apppatrol-admin-console/internal/events"
	"github.com/hadhyhermawan/apppatrol-admin-console/internal/session"
	"github.com/hadhyhermawan/apppatrol-admin-console/internal/transport"
)

// Confirmer asks the operator to approve a destructive action. The console
// binary backs it with a stdin prompt; tests supply fakes.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ModerationEvent is the audit record emitted after a confirmed delete.
type ModerationEvent struct {
	Action     string    `json:"action"` // "delete_message" | "delete_thread"
	Room       string    `json:"room,omitempty"`
	MessageID  int64     `json:"message_id,omitempty"`
	OperatorID string    `json:"operator_id"`
	ClientID   string    `json:"client_id"`
	At         time.Time `json:"at"`
}

// AuditPublisher ships moderation events to an external audit feed.
type AuditPublisher interface {
	PublishModeration(ctx context.Context, ev ModerationEvent) error
}

var ErrNotPermitted = errors.New("chat: operator lacks moderation capability")

// Moderator deletes single messages or whole threads, with confirmation,
// capability gating, and optimistic local removal.
type Moderator struct {
	api       *transport.Client
	sess      session.Session
	directory *Directory
	active    *ActiveThread
	confirm   Confirmer
	audit     AuditPublisher
	bus       *events.Bus
	logger    *zap.SugaredLogger
}

func NewModerator(api *transport.Client, sess session.Session, directory *Directory, active *ActiveThread, confirm Confirmer, audit AuditPublisher, bus *events.Bus, logger *zap.Logger) *Moderator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Moderator{
		api:       api,
		sess:      sess,
		directory: directory,
		active:    active,
		confirm:   confirm,
		audit:     audit,
		bus:       bus,
		logger:    logger.Sugar(),
	}
}

// DeleteMessage removes one message. The local copy is taken out of the
// view immediately and put back if the server call fails. A successful
// delete triggers a silent directory refresh, since the deleted message may
// have been the thread's preview.
func (m *Moderator) DeleteMessage(ctx context.Context, id int64) error {
	if !m.sess.Capabilities.CanDelete {
		return ErrNotPermitted
	}
	if !m.confirm.Confirm("Delete this message permanently?") {
		return nil
	}

	removed, idx, found := m.active.removeMessage(id)
	room := m.active.Room()

	if err := m.api.Delete(ctx, "/chat-management/"+strconv.FormatInt(id, 10), nil); err != nil {
		if found {
			m.active.restoreMessage(removed, idx)
		}
		m.bus.Publish(events.Failure, fmt.Sprintf("delete message %d: %v", id, err))
		return fmt.Errorf("delete message %d: %w", id, err)
	}

	m.bus.Publish(events.MessagesUpdated, room)
	if err := m.directory.Refresh(ctx, true); err != nil {
		m.logger.Warnw("post-delete directory refresh failed", "error", err)
	}
	m.publishAudit(ctx, ModerationEvent{Action: "delete_message", Room: room, MessageID: id})
	return nil
}

// DeleteThread wipes every message in room. The room name itself is not
// reserved afterwards; a new first message recreates the projection.
func (m *Moderator) DeleteThread(ctx context.Context, room string) error {
	if !m.sess.Capabilities.CanModerateThread {
		return ErrNotPermitted
	}
	prompt := fmt.Sprintf("Delete ALL messages in %q? This is irreversible and affects the whole room.", room)
	if !m.confirm.Confirm(prompt) {
		return nil
	}

	if err := m.api.Delete(ctx, "/chat-management/thread/"+url.PathEscape(room), nil); err != nil {
		m.bus.Publish(events.Failure, fmt.Sprintf("delete thread %s: %v", room, err))
		return fmt.Errorf("delete thread %s: %w", room, err)
	}

	if m.active.Room() == room {
		if err := m.active.SetRoom(ctx, ""); err != nil {
			m.logger.Warnw("closing wiped room failed", "room", room, "error", err)
		}
	}
	if err := m.directory.Refresh(ctx, false); err != nil {
		m.logger.Warnw("post-wipe directory refresh failed", "error", err)
	}
	m.publishAudit(ctx, ModerationEvent{Action: "delete_thread", Room: room})
	return nil
}

func (m *Moderator) publishAudit(ctx context.Context, ev ModerationEvent) {
	if m.audit == nil {
		return
	}
	ev.OperatorID = m.sess.OperatorID
	ev.ClientID = m.sess.ClientID
	ev.At = time.Now().UTC()
	if err := m.audit.PublishModeration(ctx, ev); err != nil {
		m.logger.Warnw("audit publish failed", "action", ev.Action, "error", err)
	}
}

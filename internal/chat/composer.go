package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hadhyhermawan/apppatrol-admin-console/internal/events"
	"github.com/hadhyhermawan/apppatrol-admin-console/internal/session"
	"github.com/hadhyhermawan/apppatrol-admin-console/internal/transport"
)

// StagedAttachment is an attachment picked but not yet sent. At most one
// may be staged; staging another replaces it.
type StagedAttachment struct {
	Name string
	Data []byte
}

// Composer builds and sends outgoing messages for the active room,
// embedding the operator identity it was constructed with. Staged state is
// cleared only after the server accepts the message, so a failed send never
// loses the operator's draft.
type Composer struct {
	api       *transport.Client
	sess      session.Session
	directory *Directory
	active    *ActiveThread
	bus       *events.Bus
	logger    *zap.SugaredLogger

	mu         sync.Mutex
	text       string
	attachment *StagedAttachment
}

func NewComposer(api *transport.Client, sess session.Session, directory *Directory, active *ActiveThread, bus *events.Bus, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		api:       api,
		sess:      sess,
		directory: directory,
		active:    active,
		bus:       bus,
		logger:    logger.Sugar(),
	}
}

func (c *Composer) SetText(s string) {
	c.mu.Lock()
	c.text = s
	c.mu.Unlock()
}

func (c *Composer) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

func (c *Composer) StageAttachment(name string, data []byte) {
	c.mu.Lock()
	c.attachment = &StagedAttachment{Name: name, Data: data}
	c.mu.Unlock()
}

func (c *Composer) ClearAttachment() {
	c.mu.Lock()
	c.attachment = nil
	c.mu.Unlock()
}

func (c *Composer) Attachment() *StagedAttachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attachment
}

// Send posts the staged text/attachment to the active room. A call with no
// active room, or with neither trimmed text nor an attachment, is a no-op
// and issues no request. After a successful send the staged state is
// cleared and both synchronizers are refreshed silently so the message and
// its preview appear without waiting for the next tick.
func (c *Composer) Send(ctx context.Context) error {
	room := c.active.Room()

	c.mu.Lock()
	text := strings.TrimSpace(c.text)
	att := c.attachment
	c.mu.Unlock()

	if room == "" || (text == "" && att == nil) {
		return nil
	}

	fields := map[string]string{
		"room":        room,
		"role":        c.sess.Role,
		"sender_id":   c.sess.OperatorID,
		"sender_nama": c.sess.Name,
	}
	if text != "" {
		fields["message"] = text
	}
	var file *transport.File
	if att != nil {
		file = &transport.File{FieldName: "file", Name: att.Name, Data: att.Data}
	}

	if err := c.api.PostMultipart(ctx, "/chat-management/send", fields, file, nil); err != nil {
		c.bus.Publish(events.Failure, fmt.Sprintf("send message: %v", err))
		return fmt.Errorf("send message: %w", err)
	}

	c.mu.Lock()
	c.text = ""
	c.attachment = nil
	c.mu.Unlock()

	if err := c.active.Refresh(ctx, true); err != nil {
		c.logger.Warnw("post-send thread refresh failed", "room", room, "error", err)
	}
	if err := c.directory.Refresh(ctx, true); err != nil {
		c.logger.Warnw("post-send directory refresh failed", "error", err)
	}
	return nil
}

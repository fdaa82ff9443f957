package chat

import (
	"sort"
	"strings"

	"github.com/hadhyhermawan/apppatrol-admin-console/internal/session"
)

// SentinelSenderID marks messages injected by the console itself; they
// always render as the operator's own regardless of session identity.
const SentinelSenderID = "admin"

type RenderMode string

const (
	RenderNone     RenderMode = ""
	RenderImage    RenderMode = "image"
	RenderDocument RenderMode = "document"
)

// RenderRecord is one display-ready message. BuildView is the only
// producer; it is pure, so rendering decisions are testable without any
// network state.
type RenderRecord struct {
	Message       Message
	Own           bool
	Mode          RenderMode
	AttachmentURL string
	TimeLabel     string
	Initials      string

	// IsReply marks messages that quote an earlier message. The quoted
	// sender and text fall back to placeholders when the referent has
	// since been deleted.
	IsReply     bool
	ReplySender string
	ReplyText   string
}

// BuildView deduplicates by id, orders ascending by id, and annotates each
// message for display. storagePrefix resolves relative attachment paths.
func BuildView(msgs []Message, sess session.Session, storagePrefix string) []RenderRecord {
	seen := make(map[int64]bool, len(msgs))
	unique := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		unique = append(unique, m)
	}
	sort.SliceStable(unique, func(i, j int) bool { return unique[i].ID < unique[j].ID })

	out := make([]RenderRecord, 0, len(unique))
	for _, m := range unique {
		rec := RenderRecord{
			Message:   m,
			Own:       m.SenderID == sess.OperatorID || m.SenderID == SentinelSenderID,
			TimeLabel: m.CreatedAt.Local().Format("2 Jan 15:04"),
			Initials:  initials(m.SenderName),
		}
		if m.ReplyTo != nil {
			rec.IsReply = true
			rec.ReplySender = replyFallback(m.ReplySenderName, "Deleted User")
			rec.ReplyText = replyFallback(m.ReplyText, "Deleted Message")
		}
		if m.HasAttachment() {
			if m.AttachmentType != nil && *m.AttachmentType == AttachmentImage {
				rec.Mode = RenderImage
			} else {
				rec.Mode = RenderDocument
			}
			rec.AttachmentURL = strings.TrimRight(storagePrefix, "/") + "/" + strings.TrimLeft(*m.Attachment, "/")
		}
		out = append(out, rec)
	}
	return out
}

func replyFallback(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func initials(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "??"
	}
	r := []rune(name)
	if len(r) == 1 {
		return strings.ToUpper(string(r[0]))
	}
	return strings.ToUpper(string(r[:2]))
}

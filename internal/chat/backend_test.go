package chat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hadhyhermawan/apppatrol-admin-console/internal/transport"
)

// fakeBackend serves the chat REST surface from in-memory state. Messages
// are stored oldest-first and served newest-first, like the real service.
type fakeBackend struct {
	mu     sync.Mutex
	rooms  map[string][]Message
	nextID int64

	directoryHits int
	threadHits    map[string]int
	sendHits      int

	failDeleteMessage bool
	failDeleteThread  bool

	lastSendFields   map[string]string
	lastSendFileName string
	lastSendHasFile  bool

	srv *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		rooms:      make(map[string][]Message),
		threadHits: make(map[string]int),
		nextID:     1,
	}
	b.srv = httptest.NewServer(http.HandlerFunc(b.handle))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) client() *transport.Client {
	return transport.NewClient(b.srv.URL, "test-token", nil)
}

func (b *fakeBackend) seed(room, senderID, senderName, text string) Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := Message{
		ID:         b.nextID,
		Room:       room,
		SenderID:   senderID,
		SenderName: senderName,
		Role:       "danru",
		Text:       text,
		CreatedAt:  time.Now().Add(time.Duration(b.nextID) * time.Second),
	}
	b.nextID++
	b.rooms[room] = append(b.rooms[room], m)
	return m
}

func (b *fakeBackend) messageCount(room string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rooms[room])
}

func (b *fakeBackend) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(r.URL.Path, "/")

	switch {
	case r.Method == http.MethodGet && path == "chat-management":
		b.handleDirectory(w)
	case r.Method == http.MethodPost && path == "chat-management/send":
		b.handleSend(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(path, "chat-management/thread/"):
		b.handleThread(w, strings.TrimPrefix(path, "chat-management/thread/"))
	case r.Method == http.MethodDelete && strings.HasPrefix(path, "chat-management/thread/"):
		b.handleDeleteThread(w, strings.TrimPrefix(path, "chat-management/thread/"))
	case r.Method == http.MethodDelete && strings.HasPrefix(path, "chat-management/"):
		b.handleDeleteMessage(w, strings.TrimPrefix(path, "chat-management/"))
	default:
		http.NotFound(w, r)
	}
}

func (b *fakeBackend) handleDirectory(w http.ResponseWriter) {
	b.mu.Lock()
	b.directoryHits++
	threads := make([]Thread, 0, len(b.rooms))
	totalMsgs := 0
	for room, msgs := range b.rooms {
		t := Thread{Room: room, TotalMessages: len(msgs)}
		if len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			t.LastMessageID = last.ID
			t.LastSenderID = &last.SenderID
			t.LastSenderName = &last.SenderName
			t.LastMessageText = &last.Text
			at := last.CreatedAt
			t.LastMessageAt = &at
		}
		totalMsgs += len(msgs)
		threads = append(threads, t)
	}
	resp := directoryResponse{
		Data:    threads,
		Summary: &DirectorySummary{TotalMessages: totalMsgs, TotalThreads: len(threads)},
		Meta:    &PageMeta{Total: len(threads)},
	}
	b.mu.Unlock()
	writeJSON(w, resp)
}

func (b *fakeBackend) handleThread(w http.ResponseWriter, room string) {
	b.mu.Lock()
	b.threadHits[room]++
	msgs := b.rooms[room]
	desc := make([]Message, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		desc = append(desc, msgs[i])
	}
	counts := map[string]int{}
	order := []string{}
	names := map[string]string{}
	for _, m := range msgs {
		if counts[m.SenderID] == 0 {
			order = append(order, m.SenderID)
			names[m.SenderID] = m.SenderName
		}
		counts[m.SenderID]++
	}
	parts := []Participant{}
	for _, id := range order {
		parts = append(parts, Participant{SenderID: id, SenderName: names[id], MessageCount: counts[id]})
	}
	resp := threadResponse{
		Data:         desc,
		Summary:      &ThreadSummary{TotalMessages: len(msgs), TotalParticipants: len(parts)},
		Participants: parts,
	}
	b.mu.Unlock()
	writeJSON(w, resp)
}

func (b *fakeBackend) handleSend(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	b.sendHits++
	b.lastSendFields = map[string]string{}
	for k, v := range r.MultipartForm.Value {
		if len(v) > 0 {
			b.lastSendFields[k] = v[0]
		}
	}
	b.lastSendHasFile = false
	b.lastSendFileName = ""
	var attachment *string
	var attachmentType *string
	if files := r.MultipartForm.File["file"]; len(files) > 0 {
		b.lastSendHasFile = true
		b.lastSendFileName = files[0].Filename
		path := "chat/" + files[0].Filename
		attachment = &path
		kind := AttachmentDocument
		if strings.HasSuffix(files[0].Filename, ".png") || strings.HasSuffix(files[0].Filename, ".jpg") {
			kind = AttachmentImage
		}
		attachmentType = &kind
	}

	room := b.lastSendFields["room"]
	m := Message{
		ID:             b.nextID,
		Room:           room,
		SenderID:       b.lastSendFields["sender_id"],
		SenderName:     b.lastSendFields["sender_nama"],
		Role:           b.lastSendFields["role"],
		Text:           b.lastSendFields["message"],
		CreatedAt:      time.Now(),
		Attachment:     attachment,
		AttachmentType: attachmentType,
	}
	b.nextID++
	b.rooms[room] = append(b.rooms[room], m)
	b.mu.Unlock()

	writeJSON(w, map[string]any{"status": "ok", "data": m})
}

func (b *fakeBackend) handleDeleteMessage(w http.ResponseWriter, rawID string) {
	if b.failDeleteMessage {
		http.Error(w, "delete rejected", http.StatusInternalServerError)
		return
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	for room, msgs := range b.rooms {
		for i, m := range msgs {
			if m.ID == id {
				b.rooms[room] = append(msgs[:i], msgs[i+1:]...)
			}
		}
	}
	b.mu.Unlock()
	writeJSON(w, map[string]any{"status": "ok"})
}

func (b *fakeBackend) handleDeleteThread(w http.ResponseWriter, room string) {
	if b.failDeleteThread {
		http.Error(w, "delete rejected", http.StatusInternalServerError)
		return
	}
	b.mu.Lock()
	delete(b.rooms, room)
	b.mu.Unlock()
	writeJSON(w, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func eventually(t *testing.T, within time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", within)
}

type allowConfirmer struct{ allow bool }

func (c allowConfirmer) Confirm(string) bool { return c.allow }

package chat

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hadhyhermawan/apppatrol-admin-console/internal/events"
	"github.com/hadhyhermawan/apppatrol-admin-console/internal/transport"
)

// ActiveThread polls the currently open room at a faster cadence than the
// directory. Selecting a room cancels the previous room's poller before the
// new room's initial fetch, so two room pollers never coexist; an epoch
// counter makes results from a room that has since been switched away from
// inert when they finally arrive.
type ActiveThread struct {
	api    *transport.Client
	bus    *events.Bus
	cache  SnapshotCache
	logger *zap.SugaredLogger

	interval time.Duration
	limit    int

	seq     atomic.Uint64
	pollers atomic.Int32

	mu           sync.Mutex
	room         string
	epoch        uint64
	query        string
	messages     []Message
	participants []Participant
	summary      ThreadSummary
	loading      bool
	lastApplied  uint64
	cancel       context.CancelFunc
}

func roomCacheKey(room string) string { return "chat:room:" + room }

type ActiveThreadOptions struct {
	Interval time.Duration
	Limit    int
	Cache    SnapshotCache
}

func NewActiveThread(api *transport.Client, bus *events.Bus, logger *zap.Logger, opts ActiveThreadOptions) *ActiveThread {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	return &ActiveThread{
		api:      api,
		bus:      bus,
		cache:    opts.Cache,
		logger:   logger.Sugar(),
		interval: opts.Interval,
		limit:    opts.Limit,
	}
}

// SetRoom selects room as the active thread, or deselects with "". The
// previous poller is always cancelled first. The initial fetch is
// non-silent; on its failure the synchronizer returns to idle and the error
// is reported to the caller.
func (a *ActiveThread) SetRoom(ctx context.Context, room string) error {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.epoch++
	epoch := a.epoch
	a.room = room
	a.query = ""
	a.messages = nil
	a.participants = nil
	a.summary = ThreadSummary{}
	a.lastApplied = 0
	a.mu.Unlock()

	if room == "" {
		a.bus.Publish(events.RoomClosed, "")
		return nil
	}

	a.warm(ctx, room, epoch)

	if err := a.refresh(ctx, room, epoch, false); err != nil {
		a.mu.Lock()
		if a.epoch == epoch {
			a.room = ""
			a.messages = nil
		}
		a.mu.Unlock()
		return err
	}

	pctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	if a.epoch != epoch {
		// Switched again while the initial fetch was in flight.
		a.mu.Unlock()
		cancel()
		return nil
	}
	a.cancel = cancel
	a.mu.Unlock()

	go a.poll(pctx, room, epoch)
	return nil
}

// warm paints the room from its last-known-good snapshot while the initial
// fetch is in flight. Best-effort; live data replaces it on arrival.
func (a *ActiveThread) warm(ctx context.Context, room string, epoch uint64) {
	if a.cache == nil {
		return
	}
	var msgs []Message
	if err := a.cache.LoadJSON(ctx, roomCacheKey(room), &msgs); err != nil || len(msgs) == 0 {
		return
	}
	a.mu.Lock()
	if a.epoch == epoch && len(a.messages) == 0 {
		a.messages = msgs
	}
	a.mu.Unlock()
}

func (a *ActiveThread) poll(ctx context.Context, room string, epoch uint64) {
	a.pollers.Add(1)
	defer a.pollers.Add(-1)

	t := time.NewTicker(a.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := a.refresh(ctx, room, epoch, true); err != nil {
				a.logger.Warnw("thread refresh failed", "room", room, "error", err)
			}
		}
	}
}

// Refresh re-fetches the active room immediately. No-op when idle.
func (a *ActiveThread) Refresh(ctx context.Context, silent bool) error {
	a.mu.Lock()
	room := a.room
	epoch := a.epoch
	a.mu.Unlock()
	if room == "" {
		return nil
	}
	return a.refresh(ctx, room, epoch, silent)
}

func (a *ActiveThread) refresh(ctx context.Context, room string, epoch uint64, silent bool) error {
	seqNo := a.seq.Add(1)

	a.mu.Lock()
	q := url.Values{}
	q.Set("limit", strconv.Itoa(a.limit))
	if a.query != "" {
		q.Set("q", a.query)
	}
	if !silent {
		a.loading = true
	}
	a.mu.Unlock()

	path := "/chat-management/thread/" + url.PathEscape(room) + "?" + q.Encode()
	var resp threadResponse
	err := a.api.Get(ctx, path, &resp)

	if !silent {
		a.mu.Lock()
		a.loading = false
		a.mu.Unlock()
	}
	if err != nil {
		if !silent {
			a.bus.Publish(events.Failure, fmt.Sprintf("load thread %s: %v", room, err))
		}
		return fmt.Errorf("refresh thread %s: %w", room, err)
	}

	// Server order is newest-first; the view wants oldest-first.
	msgs := make([]Message, 0, len(resp.Data))
	for i := len(resp.Data) - 1; i >= 0; i-- {
		msgs = append(msgs, resp.Data[i])
	}

	a.mu.Lock()
	if a.epoch != epoch || a.room != room {
		a.mu.Unlock()
		a.logger.Debugw("discarding response for stale room", "room", room)
		return nil
	}
	if seqNo < a.lastApplied {
		a.mu.Unlock()
		a.logger.Debugw("discarding stale thread response", "room", room, "seq", seqNo)
		return nil
	}
	a.lastApplied = seqNo
	a.messages = msgs
	a.participants = resp.Participants
	if resp.Summary != nil {
		a.summary = *resp.Summary
	}
	a.mu.Unlock()

	if a.cache != nil {
		if cerr := a.cache.SaveJSON(ctx, roomCacheKey(room), msgs); cerr != nil {
			a.logger.Debugw("snapshot save failed", "room", room, "error", cerr)
		}
	}
	a.bus.Publish(events.MessagesUpdated, room)
	return nil
}

// SetQuery filters the active thread server-side on the next refresh.
func (a *ActiveThread) SetQuery(ctx context.Context, q string) error {
	a.mu.Lock()
	a.query = q
	room := a.room
	epoch := a.epoch
	a.mu.Unlock()
	if room == "" {
		return nil
	}
	return a.refresh(ctx, room, epoch, false)
}

func (a *ActiveThread) Room() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.room
}

func (a *ActiveThread) Messages() []Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Message, len(a.messages))
	copy(out, a.messages)
	return out
}

func (a *ActiveThread) Participants() []Participant {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Participant, len(a.participants))
	copy(out, a.participants)
	return out
}

func (a *ActiveThread) Summary() ThreadSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summary
}

func (a *ActiveThread) Loading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loading
}

// removeMessage takes the message with id out of the local list, returning
// it with its index so a failed delete can put it back.
func (a *ActiveThread) removeMessage(id int64) (Message, int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, m := range a.messages {
		if m.ID == id {
			a.messages = append(a.messages[:i], a.messages[i+1:]...)
			return m, i, true
		}
	}
	return Message{}, 0, false
}

func (a *ActiveThread) restoreMessage(m Message, idx int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if idx < 0 || idx > len(a.messages) {
		idx = len(a.messages)
	}
	a.messages = append(a.messages[:idx], append([]Message{m}, a.messages[idx:]...)...)
}

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

const directoryCacheKey = "chat:threads"

// SnapshotCache persists last-known-good state so a restarted console can
// paint something before its first refresh lands. Both methods are
// best-effort; the synchronizers run fine with a nil cache.
type SnapshotCache interface {
	SaveJSON(ctx context.Context, key string, v any) error
	LoadJSON(ctx context.Context, key string, out any) error
}

// Directory keeps the thread list current. It owns the list exclusively:
// every refresh replaces it wholesale, which keeps the projection cheap and
// immune to merge-ordering bugs.
type Directory struct {
	api    *transport.Client
	bus    *events.Bus
	cache  SnapshotCache
	logger *zap.SugaredLogger

	interval time.Duration
	limit    int

	seq atomic.Uint64

	mu            sync.Mutex
	threads       []Thread
	summary       DirectorySummary
	roomFilter    string
	page          int
	total         int
	loading       bool
	lastRefreshed time.Time
	lastApplied   uint64
	cancel        context.CancelFunc
}

type DirectoryOptions struct {
	Interval time.Duration
	Limit    int
	Cache    SnapshotCache
}

func NewDirectory(api *transport.Client, bus *events.Bus, logger *zap.Logger, opts DirectoryOptions) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Second
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	return &Directory{
		api:      api,
		bus:      bus,
		cache:    opts.Cache,
		logger:   logger.Sugar(),
		interval: opts.Interval,
		limit:    opts.Limit,
		page:     1,
	}
}

// Start warms the list from the snapshot cache, refreshes once eagerly, and
// then polls on the configured interval until ctx is cancelled or Stop is
// called.
func (d *Directory) Start(ctx context.Context) {
	d.warm(ctx)

	ctx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.cancel = cancel
	d.mu.Unlock()

	go d.loop(ctx)
}

func (d *Directory) Stop() {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.mu.Unlock()
}

func (d *Directory) loop(ctx context.Context) {
	if err := d.Refresh(ctx, false); err != nil {
		d.logger.Warnw("initial directory refresh failed", "error", err)
	}

	t := time.NewTicker(d.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			// Refresh runs synchronously here, so one ticker never has
			// two of its own refreshes in flight at once.
			if err := d.Refresh(ctx, true); err != nil {
				d.logger.Warnw("directory refresh failed", "error", err)
			}
		}
	}
}

// Refresh fetches the thread directory and replaces the in-memory list.
// silent suppresses the loading indicator so background ticks do not make
// the UI flicker. Responses are sequence-fenced: a fetch dispatched earlier
// than the last applied one is discarded on arrival.
func (d *Directory) Refresh(ctx context.Context, silent bool) error {
	seqNo := d.seq.Add(1)

	d.mu.Lock()
	q := url.Values{}
	q.Set("limit", strconv.Itoa(d.limit))
	q.Set("page", strconv.Itoa(d.page))
	if d.roomFilter != "" {
		q.Set("room", d.roomFilter)
	}
	if !silent {
		d.loading = true
	}
	d.mu.Unlock()

	var resp directoryResponse
	err := d.api.Get(ctx, "/chat-management?"+q.Encode(), &resp)

	if !silent {
		d.mu.Lock()
		d.loading = false
		d.mu.Unlock()
	}
	if err != nil {
		if !silent {
			d.bus.Publish(events.Failure, fmt.Sprintf("refresh threads: %v", err))
		}
		return fmt.Errorf("refresh threads: %w", err)
	}

	d.mu.Lock()
	if seqNo < d.lastApplied {
		d.mu.Unlock()
		d.logger.Debugw("discarding stale directory response", "seq", seqNo)
		return nil
	}
	d.lastApplied = seqNo
	d.threads = resp.Data
	if resp.Summary != nil {
		d.summary = *resp.Summary
	}
	if resp.Meta != nil {
		d.total = resp.Meta.Total
	}
	d.lastRefreshed = time.Now()
	d.mu.Unlock()

	if d.cache != nil {
		if cerr := d.cache.SaveJSON(ctx, directoryCacheKey, resp.Data); cerr != nil {
			d.logger.Debugw("snapshot save failed", "error", cerr)
		}
	}
	d.bus.Publish(events.ThreadsUpdated, len(resp.Data))
	return nil
}

func (d *Directory) warm(ctx context.Context) {
	if d.cache == nil {
		return
	}
	var threads []Thread
	if err := d.cache.LoadJSON(ctx, directoryCacheKey, &threads); err != nil || len(threads) == 0 {
		return
	}
	d.mu.Lock()
	if len(d.threads) == 0 {
		d.threads = threads
	}
	d.mu.Unlock()
}

// SetRoomFilter narrows the directory to rooms matching term and resets
// paging. Takes effect on the next refresh.
func (d *Directory) SetRoomFilter(term string) {
	d.mu.Lock()
	d.roomFilter = term
	d.page = 1
	d.mu.Unlock()
}

func (d *Directory) SetPage(n int) {
	if n < 1 {
		n = 1
	}
	d.mu.Lock()
	d.page = n
	d.mu.Unlock()
}

func (d *Directory) Threads() []Thread {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Thread, len(d.threads))
	copy(out, d.threads)
	return out
}

func (d *Directory) Summary() DirectorySummary {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.summary
}

func (d *Directory) Loading() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loading
}

// LastRefreshed is a diagnostics-only marker of the last applied refresh.
func (d *Directory) LastRefreshed() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastRefreshed
}

func (d *Directory) TotalPages() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.total <= 0 || d.limit <= 0 {
		return 1
	}
	pages := (d.total + d.limit - 1) / d.limit
	if pages < 1 {
		pages = 1
	}
	return pages
}

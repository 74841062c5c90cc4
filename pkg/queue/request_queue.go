// Package queue schedules URL work items under global and per-host
// concurrency limits with a per-host start delay.
package queue

import (
	"container/heap"
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/link-crawler/pkg/auth"
	"github.com/Sriram-PR/link-crawler/pkg/utils"
)

// Item is one unit of queued work
type Item struct {
	ID   string
	URL  *url.URL
	Data any
}

// Options limits how items are started
type Options struct {
	MaxSockets        int           // Items active at once across all hosts; <= 0 means 1
	MaxSocketsPerHost int           // Items active at once per host; <= 0 means unlimited
	RateLimit         time.Duration // Minimum time between successive item starts
	RateLimitPerHost  bool          // Apply RateLimit per host instead of across the queue
}

// Handlers receive queue events. A nil handler is a no-op.
type Handlers struct {
	// Item processes one item and must eventually call done. done is safe to
	// call more than once.
	Item func(ctx context.Context, item Item, done func())
	// End fires each time the queue drains after having started work
	End func()
}

// --- Pending heap ---

// pqItem is a pending Item ordered by insertion sequence
type pqItem struct {
	item  Item
	seq   uint64
	index int // The index of the item in the heap (required by heap interface)
}

// pendingHeap implements heap.Interface; the lowest sequence pops first
type pendingHeap []*pqItem

func (h pendingHeap) Len() int { return len(h) }

func (h pendingHeap) Less(i, j int) bool { return h[i].seq < h[j].seq }

func (h pendingHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *pendingHeap) Push(x any) {
	item := x.(*pqItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.index = -1 // no longer pending
	*h = old[0 : n-1]
	return item
}

// --- RequestQueue ---

// RequestQueue runs items through Handlers.Item in FIFO order while
// respecting Options.
type RequestQueue struct {
	opts     Options
	handlers Handlers

	mu      sync.Mutex
	pending pendingHeap
	byID    map[string]*pqItem // Pending items only
	seq     uint64
	active  int
	paused  bool
	started bool // Work has started since the last drain
	closed  bool

	hosts   *hostSlots // nil when per-host sockets are unlimited
	limiter *RateLimiter

	ctx    context.Context
	cancel context.CancelFunc
	log    *logrus.Entry
}

// NewRequestQueue creates a running queue. Close releases its resources.
func NewRequestQueue(opts Options, handlers Handlers, log *logrus.Entry) *RequestQueue {
	if opts.MaxSockets <= 0 {
		opts.MaxSockets = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	q := &RequestQueue{
		opts:     opts,
		handlers: handlers,
		byID:     make(map[string]*pqItem),
		limiter:  NewRateLimiter(opts.RateLimit, log),
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
	}
	if opts.MaxSocketsPerHost > 0 {
		q.hosts = newHostSlots(opts.MaxSocketsPerHost, log)
	}
	heap.Init(&q.pending)
	return q
}

// Enqueue adds u to the end of the queue and returns its id
func (q *RequestQueue) Enqueue(u *url.URL, data any) (string, error) {
	if u == nil {
		return "", utils.ErrInvalidURL
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", utils.ErrQueueClosed
	}
	q.seq++
	entry := &pqItem{
		item: Item{ID: uuid.NewString(), URL: u, Data: data},
		seq:  q.seq,
	}
	heap.Push(&q.pending, entry)
	q.byID[entry.item.ID] = entry
	q.mu.Unlock()

	q.log.WithFields(logrus.Fields{"id": entry.item.ID, "url": auth.Redact(u)}).Debug("Item enqueued")
	q.schedule()
	return entry.item.ID, nil
}

// Dequeue removes a pending item. Items already started cannot be removed.
func (q *RequestQueue) Dequeue(id string) bool {
	q.mu.Lock()
	entry, ok := q.byID[id]
	if !ok {
		q.mu.Unlock()
		return false
	}
	heap.Remove(&q.pending, entry.index)
	delete(q.byID, id)
	drained := q.checkDrainedLocked()
	q.mu.Unlock()

	q.log.WithField("id", id).Debug("Item dequeued")
	if drained {
		q.fireEnd()
	}
	return true
}

// Pause stops new items from starting. Active items are unaffected.
func (q *RequestQueue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
}

// Resume lets pending items start again
func (q *RequestQueue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()
	q.schedule()
}

// IsPaused reports whether the queue is paused
func (q *RequestQueue) IsPaused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// Length returns the number of pending items
func (q *RequestQueue) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// NumActive returns the number of started, unfinished items
func (q *RequestQueue) NumActive() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Close drops pending items, cancels the context handed to active items and
// rejects further Enqueue calls.
func (q *RequestQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.pending = nil
	q.byID = make(map[string]*pqItem)
	q.mu.Unlock()

	q.cancel()
}

// schedule starts pending items while capacity allows
func (q *RequestQueue) schedule() {
	for {
		q.mu.Lock()
		if q.closed || q.paused || q.active >= q.opts.MaxSockets || len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		entry := heap.Pop(&q.pending).(*pqItem)
		delete(q.byID, entry.item.ID)
		q.active++
		q.started = true
		q.mu.Unlock()

		go q.run(entry.item)
	}
}

func (q *RequestQueue) run(item Item) {
	host := item.URL.Host
	itemLog := q.log.WithFields(logrus.Fields{"id": item.ID, "host": host})

	if q.hosts != nil {
		if err := q.hosts.acquire(q.ctx, host); err != nil {
			itemLog.Debugf("Host slot not acquired: %v", err)
			q.finish()
			return
		}
	}
	limitKey := q.rateLimitKey(host)
	if err := q.limiter.ApplyDelay(q.ctx, limitKey, q.opts.RateLimit); err != nil {
		itemLog.Debugf("Rate limit wait aborted: %v", err)
		if q.hosts != nil {
			q.hosts.release(host)
		}
		q.finish()
		return
	}
	q.limiter.UpdateLastRequestTime(limitKey)

	var once sync.Once
	done := func() {
		once.Do(func() {
			if q.hosts != nil {
				q.hosts.release(host)
			}
			q.finish()
		})
	}

	if q.handlers.Item == nil {
		done()
		return
	}
	itemLog.Debug("Item started")
	q.handlers.Item(q.ctx, item, done)
}

// rateLimitKey is the limiter bucket for an item on host; one shared bucket
// unless the limit is per host
func (q *RequestQueue) rateLimitKey(host string) string {
	if q.opts.RateLimitPerHost {
		return host
	}
	return ""
}

// finish marks one active item complete and schedules more work
func (q *RequestQueue) finish() {
	q.mu.Lock()
	q.active--
	drained := q.checkDrainedLocked()
	q.mu.Unlock()

	if drained {
		q.fireEnd()
		return
	}
	q.schedule()
}

// checkDrainedLocked reports a transition to drained and resets the started
// flag. A closed queue never reports drained. Caller holds q.mu.
func (q *RequestQueue) checkDrainedLocked() bool {
	if q.closed || !q.started || q.active > 0 || len(q.pending) > 0 {
		return false
	}
	q.started = false
	return true
}

func (q *RequestQueue) fireEnd() {
	q.log.Debug("Queue drained")
	if q.handlers.End != nil {
		q.handlers.End()
	}
}

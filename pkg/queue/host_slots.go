package queue

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// hostSlot is one host's semaphore plus the number of items holding or
// waiting for it
type hostSlot struct {
	sem  *semaphore.Weighted
	refs int
}

// hostSlots bounds how many items run at once against each host. A host's
// slot exists only while some item holds or waits on it.
type hostSlots struct {
	mu    sync.Mutex
	slots map[string]*hostSlot
	limit int64
	log   *logrus.Entry
}

func newHostSlots(limit int, log *logrus.Entry) *hostSlots {
	if limit <= 0 {
		log.Warnf("max_sockets_per_host invalid or zero, defaulting to 1")
		limit = 1
	}
	return &hostSlots{
		slots: make(map[string]*hostSlot),
		limit: int64(limit),
		log:   log,
	}
}

// acquire blocks until host has a free slot or ctx is done
func (h *hostSlots) acquire(ctx context.Context, host string) error {
	h.mu.Lock()
	slot, ok := h.slots[host]
	if !ok {
		slot = &hostSlot{sem: semaphore.NewWeighted(h.limit)}
		h.slots[host] = slot
	}
	slot.refs++
	h.mu.Unlock()

	if err := slot.sem.Acquire(ctx, 1); err != nil {
		h.unref(host, slot)
		return err
	}
	return nil
}

// release frees a slot taken by acquire
func (h *hostSlots) release(host string) {
	h.mu.Lock()
	slot, ok := h.slots[host]
	h.mu.Unlock()
	if !ok {
		h.log.Errorf("Host slot released for unknown host: %s", host)
		return
	}
	slot.sem.Release(1)
	h.unref(host, slot)
}

func (h *hostSlots) unref(host string, slot *hostSlot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(h.slots, host)
	}
}

// len returns the number of hosts with items holding or awaiting a slot
func (h *hostSlots) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.slots)
}

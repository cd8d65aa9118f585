package engine

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"poemharvest/internal/types"
)

// Frontier is the thread-safe work queue of the crawl. Admission and
// dedup are a single atomic step: a page identity enters the queue at
// most once over the whole run, counting both queued and
// already-completed work. Items submitted before their ID is known
// dedup on canonical title instead.
//
// The frontier tracks in-flight work. Once Seal is called and every
// submitted item has been matched by a Done call, the frontier closes
// and blocked Drain calls return.
type Frontier struct {
	mu         sync.Mutex
	queue      []types.WorkItem
	seenIDs    map[int64]struct{}
	seenTitles map[string]struct{}
	processed  map[int64]struct{}
	pending    int
	sealed     bool
	closed     bool
}

func NewFrontier() *Frontier {
	return &Frontier{
		queue:      make([]types.WorkItem, 0, 1024),
		seenIDs:    make(map[int64]struct{}, 4096),
		seenTitles: make(map[string]struct{}, 4096),
		processed:  make(map[int64]struct{}, 4096),
	}
}

// SubmitIfNew enqueues the item unless its page identity or title was
// already submitted at any point in the run, including identities
// preloaded from a previous run. The check and the enqueue happen
// under one lock, so two workers racing on the same page admit
// exactly one.
//
// Returns ErrDuplicate for repeats and ErrFrontierClosed after close.
func (f *Frontier) SubmitIfNew(item types.WorkItem) error {
	key := canonicalTitle(item.Page.Title)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return types.ErrFrontierClosed
	}
	if item.Page.ID != 0 {
		if _, ok := f.seenIDs[item.Page.ID]; ok {
			return types.ErrDuplicate
		}
	}
	if _, ok := f.seenTitles[key]; ok {
		return types.ErrDuplicate
	}

	if item.Page.ID != 0 {
		f.seenIDs[item.Page.ID] = struct{}{}
	}
	f.seenTitles[key] = struct{}{}
	f.queue = append(f.queue, item)
	f.pending++
	return nil
}

// Drain removes and returns the oldest queued item, blocking until work
// arrives, the frontier closes, or the context is cancelled. The second
// return is false only when no more work will ever come.
func (f *Frontier) Drain(ctx context.Context) (types.WorkItem, bool) {
	for {
		f.mu.Lock()
		if len(f.queue) > 0 {
			item := f.queue[0]
			f.queue = f.queue[1:]
			f.mu.Unlock()
			return item, true
		}
		if f.closed {
			f.mu.Unlock()
			return types.WorkItem{}, false
		}
		f.mu.Unlock()

		// Poll with context support, no goroutine leak.
		select {
		case <-ctx.Done():
			return types.WorkItem{}, false
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Done records that one drained item has been fully handled, including
// any child submissions it made. The caller must invoke it exactly once
// per successful Drain.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending > 0 {
		f.pending--
	}
	f.maybeClose()
}

// Seal marks the end of external seeding. Workers may still submit
// children for items already in flight; the frontier closes when those
// drain out.
func (f *Frontier) Seal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sealed = true
	f.maybeClose()
}

func (f *Frontier) maybeClose() {
	if f.sealed && f.pending == 0 && len(f.queue) == 0 {
		f.closed = true
	}
}

// Close shuts the frontier immediately, discarding queued work.
// Blocked Drain calls return on their next poll.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.queue = nil
}

// MarkProcessed records a page identity as terminally handled without
// queueing it. Later submissions of the same identity are rejected.
func (f *Frontier) MarkProcessed(pageID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed[pageID] = struct{}{}
	f.seenIDs[pageID] = struct{}{}
}

// IsProcessed reports whether a page identity was persisted, either in
// this run or preloaded from a previous one.
func (f *Frontier) IsProcessed(pageID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.processed[pageID]
	return ok
}

// PreloadProcessed seeds the scheduled set from the durable index so a
// resumed run never re-fetches pages it already extracted.
func (f *Frontier) PreloadProcessed(ids []int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.processed[id] = struct{}{}
		f.seenIDs[id] = struct{}{}
	}
}

// Len returns the number of queued items.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// SeenCount returns the number of distinct titles ever admitted.
func (f *Frontier) SeenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seenTitles)
}

// canonicalTitle normalizes a page title the way the wiki does: spaces
// for underscores, collapsed whitespace, first letter uppercased.
func canonicalTitle(title string) string {
	t := strings.Join(strings.Fields(strings.ReplaceAll(title, "_", " ")), " ")
	if t == "" {
		return t
	}
	r, size := utf8.DecodeRuneInString(t)
	return string(unicode.ToUpper(r)) + t[size:]
}

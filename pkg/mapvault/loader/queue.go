package loader

import (
	"sort"
	"time"
)

type item struct {
	id      string
	visible bool
	touched time.Time
	seq     uint64 // breaks timestamp ties, later touches win
}

// queue holds at most one item per id. Visible items come first, then the
// most recently touched. Ordering is only restored where the scheduler asks
// for it, so a refreshed timestamp without a visibility change takes effect
// at the next sort.
type queue struct {
	items []*item
	index map[string]*item
	seq   uint64
}

func newQueue() *queue {
	return &queue{index: make(map[string]*item)}
}

func (q *queue) len() int { return len(q.items) }

func (q *queue) has(id string) bool {
	_, ok := q.index[id]
	return ok
}

func (q *queue) touch(it *item, now time.Time) {
	q.seq++
	it.touched = now
	it.seq = q.seq
}

// upsert inserts id or merges visibility into the existing entry. It reports
// whether the queue needs a sort: a new visible item or a hidden item that
// just became visible.
func (q *queue) upsert(id string, visible bool, now time.Time) (needSort bool) {
	if it, ok := q.index[id]; ok {
		flipped := visible && !it.visible
		it.visible = it.visible || visible
		q.touch(it, now)
		return flipped
	}

	it := &item{id: id, visible: visible}
	q.touch(it, now)
	q.index[id] = it
	if visible {
		q.items = append(q.items, it)
		return true
	}
	// newest hidden item goes to the head of the hidden partition
	at := q.hiddenStart()
	q.items = append(q.items, nil)
	copy(q.items[at+1:], q.items[at:])
	q.items[at] = it
	return false
}

func (q *queue) hiddenStart() int {
	for i, it := range q.items {
		if !it.visible {
			return i
		}
	}
	return len(q.items)
}

// setVisibility recomputes every item against the visible set without sorting.
func (q *queue) setVisibility(visible map[string]bool) {
	for _, it := range q.items {
		it.visible = visible[it.id]
	}
}

func (q *queue) sort() {
	sort.SliceStable(q.items, func(i, j int) bool {
		a, b := q.items[i], q.items[j]
		if a.visible != b.visible {
			return a.visible
		}
		if !a.touched.Equal(b.touched) {
			return a.touched.After(b.touched)
		}
		return a.seq > b.seq
	})
}

func (q *queue) pop() (*item, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	it := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	delete(q.index, it.id)
	return it, true
}

func (q *queue) ids() []string {
	out := make([]string, len(q.items))
	for i, it := range q.items {
		out[i] = it.id
	}
	return out
}

func (q *queue) clear() {
	q.items = nil
	q.index = make(map[string]*item)
}

// Package tracker keeps, per event class, the top-K most frequently sampled
// pages in a bounded min-heap keyed by hit count. The heap never evicts on a
// schedule, only on insert pressure, so once it is full it deliberately
// favors pages it has already seen over newcomers.
package tracker

import (
	"fmt"
	"math"
	"sync"

	"github.com/tieredmem/thermostat/generics"
	"github.com/tieredmem/thermostat/logger"
	"github.com/tieredmem/thermostat/metrics"
	"github.com/tieredmem/thermostat/stats"
	"github.com/tieredmem/thermostat/types"
)

var trackerMetrics = []metrics.Metadata{
	{Name: "tracker_size", Type: metrics.Gauge, Unit: metrics.Dimensionless, Description: "The number of pages resident in a tracker"},
	{Name: "tracker_discarded", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "The number of new pages discarded because a tracker was full"},
	{Name: "tracker_invalidated", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "The number of pages dropped from trackers after reclamation"},
}

type entry struct {
	page types.PageID
	// stats is a handle into the page store; the tracker never owns page
	// lifetime, it only indexes it
	stats *stats.PageStats
	hits  uint32
}

// EntryView is one tracked page as seen by a Snapshot.
type EntryView struct {
	Page     types.PageID
	HitCount uint32
	Stats    stats.Snapshot
}

// Snapshot is a consistent copy of a tracker's contents for scoring.
type Snapshot struct {
	Class    types.EventClass
	Capacity int
	Entries  []EntryView
}

// Tracker is the bounded top-K structure for one event class. All mutation
// runs under a single per-tracker lock; it is not safe for uncoordinated
// concurrent use of the internal slices.
type Tracker struct {
	Metrics metrics.Metrics
	Logger  logger.Logger

	class    types.EventClass
	capacity int
	// evictionFloor is the admission policy for a full heap: a new page may
	// replace the root only while the root's hit count is below the floor.
	// The default floor of 1 keeps the historical behavior where a full
	// heap never churns, since every resident page has at least one hit.
	evictionFloor uint32

	mut         sync.Mutex
	entries     []entry
	index       map[types.PageID]int
	invalidated generics.Set[types.PageID]
}

// NewTracker builds an empty tracker for class.
func NewTracker(class types.EventClass, capacity int, evictionFloor uint32, met metrics.Metrics, lgr logger.Logger) (*Tracker, error) {
	if !class.IsValid() {
		return nil, fmt.Errorf("invalid event class %d", int(class))
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("tracker capacity must be positive, got %d", capacity)
	}

	for _, metadata := range trackerMetrics {
		met.Register(metadata)
	}

	return &Tracker{
		Metrics:       met,
		Logger:        lgr,
		class:         class,
		capacity:      capacity,
		evictionFloor: evictionFloor,
		entries:       make([]entry, 0, capacity),
		index:         make(map[types.PageID]int, capacity),
		invalidated:   generics.NewSet[types.PageID](),
	}, nil
}

func (t *Tracker) Class() types.EventClass { return t.class }
func (t *Tracker) Capacity() int           { return t.capacity }

func (t *Tracker) Len() int {
	t.mut.Lock()
	defer t.mut.Unlock()
	return len(t.entries)
}

// AdmitOrBump records one sample of page. A resident page gets its hit count
// bumped; a new page is appended while there is room. When the tracker is
// full the page is admitted only if the current minimum is colder than the
// eviction floor, otherwise it is discarded.
func (t *Tracker) AdmitOrBump(page types.PageID, ps *stats.PageStats) {
	t.mut.Lock()
	defer t.mut.Unlock()

	if t.invalidated.Contains(page) {
		// the handle was reclaimed and reused; restart it cold
		t.purgeLocked(page)
	}

	if i, ok := t.index[page]; ok {
		if t.entries[i].hits < math.MaxUint32 {
			t.entries[i].hits++
		}
		// a grown key can only violate the min property downward; the root
		// must stay the true minimum or the admission check below compares
		// against the wrong entry
		t.siftDown(i)
		return
	}

	if len(t.entries) < t.capacity {
		t.entries = append(t.entries, entry{page: page, stats: ps, hits: 1})
		i := len(t.entries) - 1
		t.index[page] = i
		t.siftUp(i)
		return
	}

	if t.entries[0].hits < t.evictionFloor {
		delete(t.index, t.entries[0].page)
		t.entries[0] = entry{page: page, stats: ps, hits: 1}
		t.index[page] = 0
		t.siftDown(0)
		return
	}

	t.Metrics.Increment("tracker_discarded")
}

// Invalidate marks page for lazy removal. The page lifecycle is external;
// this is how reclamation keeps a heap entry from dangling. The entry is
// physically dropped on the next Snapshot scan. The mark is recorded even
// when the page is not resident yet: reclamation can race an in-flight
// admission, and the mark must outlive that window.
func (t *Tracker) Invalidate(page types.PageID) {
	t.mut.Lock()
	defer t.mut.Unlock()
	t.invalidated.Add(page)
}

// Snapshot compacts out invalidated entries and returns a consistent copy of
// the tracker for scoring. The critical section is bounded by the capacity.
func (t *Tracker) Snapshot() Snapshot {
	t.mut.Lock()
	defer t.mut.Unlock()

	for _, page := range t.invalidated.Members() {
		if t.purgeLocked(page) {
			t.Metrics.Increment("tracker_invalidated")
		}
	}
	t.invalidated.Clear()

	entries := make([]EntryView, len(t.entries))
	for i, e := range t.entries {
		entries[i] = EntryView{
			Page:     e.page,
			HitCount: e.hits,
			Stats:    e.stats.Snapshot(),
		}
	}
	t.Metrics.Gauge("tracker_size", len(entries))

	return Snapshot{
		Class:    t.class,
		Capacity: t.capacity,
		Entries:  entries,
	}
}

// purgeLocked removes page's entry, restoring heap order. It reports whether
// an entry was actually resident; a mark for a never-admitted page is just
// consumed.
func (t *Tracker) purgeLocked(page types.PageID) bool {
	i, ok := t.index[page]
	if !ok {
		t.invalidated.Remove(page)
		return false
	}
	delete(t.index, page)
	t.invalidated.Remove(page)

	last := len(t.entries) - 1
	if i != last {
		t.entries[i] = t.entries[last]
		t.index[t.entries[i].page] = i
	}
	t.entries = t.entries[:last]

	if i < len(t.entries) {
		// the relocated entry may violate the min property in either
		// direction
		t.siftDown(i)
		t.siftUp(i)
	}
	return true
}

func (t *Tracker) swap(i, j int) {
	t.entries[i], t.entries[j] = t.entries[j], t.entries[i]
	t.index[t.entries[i].page] = i
	t.index[t.entries[j].page] = j
}

func (t *Tracker) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if t.entries[i].hits >= t.entries[parent].hits {
			break
		}
		t.swap(i, parent)
		i = parent
	}
}

func (t *Tracker) siftDown(i int) {
	for {
		child := 2*i + 1
		if child >= len(t.entries) {
			break
		}
		if right := child + 1; right < len(t.entries) && t.entries[right].hits < t.entries[child].hits {
			child = right
		}
		if t.entries[i].hits <= t.entries[child].hits {
			break
		}
		t.swap(i, child)
		i = child
	}
}

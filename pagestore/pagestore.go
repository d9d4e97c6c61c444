// Package pagestore holds the statistics slot for every page the sampler
// currently knows about. The memory subsystem owns page lifetime; this store
// is only a bounded index from page handle to its statistics, and it tells
// its listeners whenever a handle stops being valid so no tracker is left
// pointing at a reclaimed page.
package pagestore

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tieredmem/thermostat/logger"
	"github.com/tieredmem/thermostat/metrics"
	"github.com/tieredmem/thermostat/stats"
	"github.com/tieredmem/thermostat/types"
)

var storeMetrics = []metrics.Metadata{
	{Name: "pagestore_pages", Type: metrics.Gauge, Unit: metrics.Dimensionless, Description: "The number of pages with live statistics"},
	{Name: "pagestore_evictions", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "The number of pages evicted by capacity pressure"},
}

// Store is a bounded PageID -> PageStats registry. Statistics slots are
// created lazily on first sample and dropped either when the external page
// lifecycle reclaims the page (Remove) or when capacity pressure evicts the
// least recently sampled page.
type Store struct {
	Metrics metrics.Metrics
	Logger  logger.Logger

	pages *lru.Cache[types.PageID, *stats.PageStats]

	mut   sync.Mutex
	hooks []func(types.PageID)
}

// NewStore returns a Store bounded to capacity pages.
func NewStore(capacity int, met metrics.Metrics, lgr logger.Logger) (*Store, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("pagestore capacity must be positive, got %d", capacity)
	}

	for _, metadata := range storeMetrics {
		met.Register(metadata)
	}

	s := &Store{
		Metrics: met,
		Logger:  lgr,
	}
	cache, err := lru.NewWithEvict(capacity, s.onEvict)
	if err != nil {
		return nil, err
	}
	s.pages = cache
	return s, nil
}

// OnInvalidate registers fn to be called whenever a page's statistics slot
// goes away, whether by eviction or explicit removal. Hooks must not call
// back into the Store.
func (s *Store) OnInvalidate(fn func(types.PageID)) {
	s.mut.Lock()
	defer s.mut.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Upsert returns the statistics slot for page, creating it on first sample.
func (s *Store) Upsert(page types.PageID) *stats.PageStats {
	// the lock makes lookup-or-create atomic so concurrent first samples of
	// the same page can't produce two slots
	s.mut.Lock()
	defer s.mut.Unlock()

	if ps, ok := s.pages.Get(page); ok {
		return ps
	}
	ps := &stats.PageStats{}
	s.pages.Add(page, ps)
	return ps
}

// Lookup returns the statistics slot for page without creating one.
func (s *Store) Lookup(page types.PageID) (*stats.PageStats, bool) {
	s.mut.Lock()
	defer s.mut.Unlock()
	return s.pages.Peek(page)
}

// Remove drops a page's slot. The external page lifecycle calls this when a
// page is reclaimed or untracked; listeners are notified via the same path
// as eviction.
func (s *Store) Remove(page types.PageID) {
	s.mut.Lock()
	defer s.mut.Unlock()
	s.pages.Remove(page)
}

// Len returns the number of live statistics slots.
func (s *Store) Len() int {
	s.mut.Lock()
	defer s.mut.Unlock()
	n := s.pages.Len()
	s.Metrics.Gauge("pagestore_pages", n)
	return n
}

// onEvict runs for both capacity eviction and explicit removal; the lru
// invokes it synchronously, so the store lock is already held by the caller.
func (s *Store) onEvict(page types.PageID, _ *stats.PageStats) {
	s.Metrics.Increment("pagestore_evictions")
	for _, fn := range s.hooks {
		fn(page)
	}
}

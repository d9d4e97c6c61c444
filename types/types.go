// Package types holds the identifiers shared across the sampling pipeline.
package types

import "fmt"

// EventClass identifies one hardware event stream being sampled. The values
// index fixed-size per-class arrays throughout the pipeline, so they must
// stay dense and zero-based.
type EventClass int

const (
	L1Hit EventClass = iota
	L1Miss
	L2Hit
	L2Miss
	L3Hit
	L3Miss
	DRAMRead
	SlowTierRead
	MemWrite

	NumEventClasses = 9
)

var eventClassNames = [NumEventClasses]string{
	"l1_hit",
	"l1_miss",
	"l2_hit",
	"l2_miss",
	"l3_hit",
	"l3_miss",
	"dram_read",
	"slowtier_read",
	"mem_write",
}

func (c EventClass) IsValid() bool {
	return c >= 0 && c < NumEventClasses
}

func (c EventClass) String() string {
	if !c.IsValid() {
		return fmt.Sprintf("event_class(%d)", int(c))
	}
	return eventClassNames[c]
}

// ParseEventClass resolves a class by its configuration name.
func ParseEventClass(name string) (EventClass, error) {
	for i, n := range eventClassNames {
		if n == name {
			return EventClass(i), nil
		}
	}
	return 0, fmt.Errorf("unknown event class %q", name)
}

// AllEventClasses returns every class in index order.
func AllEventClasses() []EventClass {
	out := make([]EventClass, NumEventClasses)
	for i := range out {
		out[i] = EventClass(i)
	}
	return out
}

// PageID is the opaque handle the memory subsystem uses for a page. The
// pipeline never dereferences it; page lifetime is owned externally.
type PageID uint64

// Sample is one hardware sample as delivered to the ingestion path.
type Sample struct {
	Class     EventClass
	Page      PageID
	Timestamp uint64
}

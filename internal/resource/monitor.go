// Package resource implements the shared concurrency/resource guard
// described in §5: a global in-flight operation cap and a memory-pressure
// threshold, consulted by the C8 tool handlers before starting work.
package resource

import (
	"runtime"
	"sync/atomic"

	"github.com/kimjune01/slunk/internal/metrics"
	"github.com/kimjune01/slunk/internal/slunkerr"
)

// Monitor tracks in-flight operations and memory pressure. One instance
// is shared process-wide.
type Monitor struct {
	inFlight     int64
	maxInFlight  int64
	maxHeapBytes uint64
}

// Options configures Monitor construction.
type Options struct {
	MaxInFlight  int
	MaxHeapBytes uint64 // 0 disables the memory-pressure check
}

// New constructs a Monitor. A zero MaxInFlight defaults to 50, the
// specification's literal default.
func New(opt Options) *Monitor {
	if opt.MaxInFlight <= 0 {
		opt.MaxInFlight = 50
	}
	return &Monitor{maxInFlight: int64(opt.MaxInFlight), maxHeapBytes: opt.MaxHeapBytes}
}

// Acquire reserves a slot for one operation, returning a Busy error if the
// in-flight cap or memory-pressure threshold is exceeded. Callers must
// call the returned release func exactly once on every path.
func (m *Monitor) Acquire() (release func(), err error) {
	if m.maxHeapBytes > 0 {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		if ms.HeapAlloc > m.maxHeapBytes {
			return func() {}, slunkerr.New(slunkerr.KindBusy,
				"memory pressure threshold exceeded",
				"retry shortly", "reduce concurrent query/ingest load")
		}
	}

	n := atomic.AddInt64(&m.inFlight, 1)
	metrics.InFlightOperations.Set(float64(n))
	if n > m.maxInFlight {
		atomic.AddInt64(&m.inFlight, -1)
		metrics.InFlightOperations.Set(float64(atomic.LoadInt64(&m.inFlight)))
		return func() {}, slunkerr.New(slunkerr.KindBusy,
			"too many operations in flight",
			"retry shortly")
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		n := atomic.AddInt64(&m.inFlight, -1)
		metrics.InFlightOperations.Set(float64(n))
	}, nil
}

// InFlight reports the current in-flight operation count.
func (m *Monitor) InFlight() int {
	return int(atomic.LoadInt64(&m.inFlight))
}

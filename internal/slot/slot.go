// Package slot defines PerThreadSlot, the cache-line-isolated accounting
// record owned by one worker thread. The hot path (begin/end/
// storeCustomValue) touches only the caller's own slot plus the shared
// "started" flag; the Consolidator touches a slot's Consolidated field
// only while that slot's Consolidate flag is observed cleared.
package slot

import (
	"sync/atomic"

	"github.com/bc-dunia/nanotick/internal/sample"
)

// cacheLineSize is the assumed L1 line size used to pad PerThreadSlot so
// that no field of two slots shares a line. 64 bytes covers every
// mainstream x86-64 and arm64 part this library targets.
const cacheLineSize = 64

// PerThreadSlot is the per-worker-index accounting record described in
// spec.md §3. Every field except the consolidate flag is owned
// exclusively by the worker thread that indexes this slot; Consolidated
// is the sole exception, readable by the Consolidator only after it
// observes consolidate cleared.
type PerThreadSlot struct {
	// Live is the working Sample being accumulated by the owning thread.
	Live sample.Sample

	// Consolidated is the last finished Sample the worker is allowed to
	// publish. Transitions fresh->stale only by the worker (when it
	// copies Live into it and clears Consolidate); stale->fresh only by
	// the Consolidator (when it reads and zeroes it).
	Consolidated sample.Sample

	// RcvStart is the timestamp of the most recent end.
	RcvStart int64

	// ComputeStart is the timestamp of the most recent recorded begin.
	ComputeStart int64

	// IdleTime is accumulated idle nanoseconds in the current window.
	IdleTime float64

	// FirstBegin and LastEnd bound this thread's global wall-clock
	// window once it has produced any samples.
	FirstBegin int64
	LastEnd    int64

	// SampleStartTime is the start of the current sampling window. Zero
	// means the owning thread has not begun yet, so a first Begin at
	// clock reading 0 is not recorded as having begun.
	SampleStartTime int64

	// TotalTasks is the cumulative task count across all windows. Only
	// the owning worker writes it; terminate() reads it after every
	// worker has left its instrumented region, so no synchronization is
	// required on this field.
	TotalTasks uint64

	// SamplingLength is the current stride: iterations per recorded
	// measurement, always >= 1.
	SamplingLength uint64

	// CurrentSample is the stride counter, 0 <= CurrentSample <
	// SamplingLength except during the one-tick stride transitions in
	// spec.md §4.2.
	CurrentSample uint64

	// InCompute records whether a begin has recorded ComputeStart without
	// a matching end observing it yet; used to detect the usage error of
	// two consecutive begins.
	InCompute bool

	// consolidate is the single bit of cross-thread synchronization: the
	// Consolidator sets it (release) to request a publish, the worker
	// clears it (release) once it has copied Live into Consolidated; the
	// worker reads it with acquire on the hot path, the Consolidator
	// reads it with acquire while polling.
	consolidate atomic.Bool

	// pad isolates this slot from its neighbors in a []PerThreadSlot so
	// that no worker's hot-path writes and no other worker's (or the
	// Consolidator's) polling reads fall in the same cache line. It
	// pads only the logical payload above; slots are not aligned to a
	// line boundary.
	_ [padding]byte
}

// padding is a fixed one-line gap after each slot's payload. The slot
// size is not rounded to a multiple of cacheLineSize, but with 64 bytes
// between the last field of one slot and the first field of the next,
// no 64-byte line can hold fields of two slots.
const padding = 64 // conservative: one extra line regardless of Sample's exact size.

// ConsolidateRequested reports whether the Consolidator has requested a
// publish (acquire semantics).
func (p *PerThreadSlot) ConsolidateRequested() bool {
	return p.consolidate.Load()
}

// RequestConsolidate sets the consolidate flag (release semantics),
// called by the Consolidator.
func (p *PerThreadSlot) RequestConsolidate() {
	p.consolidate.Store(true)
}

// ClearConsolidate clears the consolidate flag (release semantics),
// called by the owning worker after copying Live into Consolidated.
func (p *PerThreadSlot) ClearConsolidate() {
	p.consolidate.Store(false)
}

// Slots owns a fixed-size, cache-line-isolated array of PerThreadSlot,
// one per worker index in [0, N).
type Slots struct {
	items []PerThreadSlot
	n     int
}

// New allocates N slots, each initialized to its zero value with
// SamplingLength defaulted to 1 (the "every iteration recorded" stride).
func New(n int) *Slots {
	// Over-allocate by one element and hand back the sub-slice after it,
	// so the first slot in use is preceded by an unused slot rather than
	// by unrelated heap data. This costs one wasted slot's worth of
	// memory; it does not align the slots to a cache-line boundary.
	items := make([]PerThreadSlot, n+1)
	s := &Slots{items: items[1:], n: n}
	for i := range s.items {
		s.items[i].SamplingLength = 1
	}
	return s
}

// N returns the number of slots.
func (s *Slots) N() int {
	return s.n
}

// At returns a pointer to the slot for threadId. Callers must have
// already validated threadId < N(); At itself does not bounds-check so
// it stays allocation-free and branch-minimal on the hot path.
func (s *Slots) At(threadID int) *PerThreadSlot {
	return &s.items[threadID]
}

// Valid reports whether threadID is in [0, N). spec.md §9 notes that
// several threadId checks in the original source used > where >= was
// intended; nanotick always uses >=.
func (s *Slots) Valid(threadID int) bool {
	return threadID >= 0 && threadID < s.n
}

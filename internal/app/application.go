// Package app implements the Application side of nanotick: the object
// linked into the instrumented workload that owns the per-thread slots,
// the hot-path begin/end/storeCustomValue contract, the background
// Consolidator, and the START/STOP handshake with the Monitor.
package app

import (
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"github.com/bc-dunia/nanotick/internal/aggregator"
	"github.com/bc-dunia/nanotick/internal/apperr"
	"github.com/bc-dunia/nanotick/internal/channel"
	"github.com/bc-dunia/nanotick/internal/clock"
	"github.com/bc-dunia/nanotick/internal/config"
	"github.com/bc-dunia/nanotick/internal/consolidator"
	"github.com/bc-dunia/nanotick/internal/nanolog"
	"github.com/bc-dunia/nanotick/internal/sample"
	"github.com/bc-dunia/nanotick/internal/sampler"
	"github.com/bc-dunia/nanotick/internal/slot"
)

// Application is the library's central object. One Application owns one
// channel connection, one set of PerThreadSlots, and one Consolidator.
type Application struct {
	slots  *slot.Slots
	config *config.Configuration
	clock  clock.Clock
	conn   channel.Conn
	logger *nanolog.Logger

	aggMu sync.RWMutex
	agg   aggregator.Aggregator

	stateMu sync.Mutex
	state   State

	started   atomic.Bool
	startOnce sync.Mutex

	metaMu       sync.RWMutex
	phaseID      uint32
	totalThreads uint32

	markInconsistent atomic.Bool
	supportStop      atomic.Bool
	consolidatorDone chan struct{}

	execMu         sync.RWMutex
	executionTime  float64
	totalTasksSeen uint64

	healthMu   sync.RWMutex
	lastHealth consolidator.QueueHealth
}

// New constructs an Application that connects to channelURI as the
// client endpoint (the "owned socket" constructor in spec.md §9's
// ownership design note).
func New(channelURI string, numThreads int) (*Application, error) {
	conn, err := channel.Connect(channelURI)
	if err != nil {
		return nil, fmt.Errorf("app: connect to %q: %w", channelURI, err)
	}
	a := newWithConn(conn, numThreads)
	return a, nil
}

// NewWithConn constructs an Application over a pre-connected channel
// (the "borrowed socket" constructor in spec.md §9's ownership design
// note), for callers that manage the underlying transport themselves.
func NewWithConn(conn channel.Conn, numThreads int) *Application {
	return newWithConn(conn, numThreads)
}

func newWithConn(conn channel.Conn, numThreads int) *Application {
	return &Application{
		slots:  slot.New(numThreads),
		config: config.DefaultConfiguration(),
		clock:  clock.NewSystem(),
		conn:   conn,
		logger: nanolog.New("nanotick"),
		agg:    aggregator.Default(),
		state:  StatePreStart,
	}
}

// SetConfiguration installs cfg. It must be called before any Begin; a
// later call is a usage error since the Sampler has already started
// making decisions under the previous configuration.
func (a *Application) SetConfiguration(cfg *config.Configuration) error {
	if a.started.Load() {
		return apperr.NewUsageError("SetConfiguration", "must be called before the first Begin")
	}
	a.stateMu.Lock()
	a.config = cfg
	a.stateMu.Unlock()
	return nil
}

// SetAggregator installs the custom-field reducer used by the
// Consolidator.
func (a *Application) SetAggregator(agg aggregator.Aggregator) {
	a.aggMu.Lock()
	a.agg = agg
	a.aggMu.Unlock()
}

// SetClock overrides the monotonic time source, for tests.
func (a *Application) SetClock(c clock.Clock) {
	a.clock = c
}

// SetPhaseID sets the opaque phase identifier propagated into every
// subsequent SAMPLE_RES, and optionally the logical thread count.
func (a *Application) SetPhaseID(id uint32, totalThreads uint32) {
	a.metaMu.Lock()
	a.phaseID = id
	if totalThreads > 0 {
		a.totalThreads = totalThreads
	}
	a.metaMu.Unlock()
	a.logger.SetPhaseID(id)
}

// SetTotalThreads sets the logical thread count propagated into every
// subsequent SAMPLE_RES, independent of SetPhaseID.
func (a *Application) SetTotalThreads(n uint32) {
	a.metaMu.Lock()
	a.totalThreads = n
	a.metaMu.Unlock()
}

// MarkInconsistentSamples forces every subsequent SAMPLE_RES to carry
// Inconsistent=true regardless of measured skew, per spec.md §4.4 step 6
// and scenario S6.
func (a *Application) MarkInconsistentSamples() {
	a.markInconsistent.Store(true)
}

// Begin marks the start of the compute portion of one iteration on
// threadID. See spec.md §4.1/§4.2 for the full stride/window contract.
func (a *Application) Begin(threadID int) error {
	if !a.started.Load() {
		if err := a.emitStart(); err != nil {
			return err
		}
	}
	if !a.slots.Valid(threadID) {
		return apperr.NewUsageError("Begin", fmt.Sprintf("threadId %d is out of range", threadID))
	}
	s := a.slots.At(threadID)
	if s.InCompute {
		return apperr.NewUsageError("Begin", "two begin calls without an intervening end")
	}

	now := a.clock.NowNanos()
	s.CurrentSample = (s.CurrentSample + 1) % s.SamplingLength
	qualifying := s.CurrentSample == 1 || s.SamplingLength == 1

	if qualifying {
		if s.SampleStartTime == 0 {
			// First begin for this thread: there is no prior window to
			// close, just arm the clock.
			s.FirstBegin = now
			s.SampleStartTime = now
			s.RcvStart = now
		} else {
			a.closeWindow(s, now, threadID)
		}
	}

	s.ComputeStart = now
	s.InCompute = true
	return nil
}

// closeWindow runs the window-close computation spec.md §4.2 describes
// for the qualifying begin: idle-time extrapolation, throughput/load
// percentage, optional consolidation, and the adaptive stride update.
func (a *Application) closeWindow(s *slot.PerThreadSlot, now int64, threadID int) {
	s.IdleTime += float64(now-s.RcvStart) * float64(s.SamplingLength)

	sampleTime := float64(now - s.SampleStartTime)
	sampleTimeEstimated := s.Live.Latency + s.IdleTime
	windowNumTasks := s.Live.NumTasks

	if sampleTime != 0 {
		s.Live.Throughput = windowNumTasks / (sampleTime / 1e9)
		s.Live.LoadPercentage = (s.Live.Latency / sampleTime) * 100
	}

	if s.ConsolidateRequested() {
		s.Consolidated = s.Live
		if sampleTime != 0 {
			skew := math.Abs(sampleTime-sampleTimeEstimated) / sampleTime * 100
			if skew > a.consistencyThreshold() {
				s.Consolidated.Inconsistent = true
				a.logger.LogInconsistentSample(uint32(threadID), skew)
			}
		}
		s.Live = sample.Zero()
		s.IdleTime = 0
		s.SampleStartTime = now
		s.ClearConsolidate()
	}

	oldStride := s.SamplingLength
	newStride := sampler.ComputeStride(a.samplingLengthMs(), sampleTime, windowNumTasks)
	s.CurrentSample = sampler.AdjustCurrentSampleForStrideChange(oldStride, newStride, s.CurrentSample)
	s.SamplingLength = newStride
}

func (a *Application) samplingLengthMs() float64 {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.config.SamplingLengthMs
}

func (a *Application) consistencyThreshold() float64 {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.config.ConsistencyThreshold
}

// End marks the end of the compute portion of one iteration on
// threadID.
func (a *Application) End(threadID int) error {
	if !a.slots.Valid(threadID) {
		return apperr.NewUsageError("End", fmt.Sprintf("threadId %d is out of range", threadID))
	}
	s := a.slots.At(threadID)
	if !s.InCompute {
		return apperr.NewUsageError("End", "end called without a matching begin")
	}

	qualifying := s.CurrentSample == 0 || s.SamplingLength == 1
	if qualifying {
		now := a.clock.NowNanos()
		s.RcvStart = now
		s.Live.Latency += float64(now-s.ComputeStart) * float64(s.SamplingLength)
		s.Live.NumTasks += float64(s.SamplingLength)
		s.TotalTasks += s.SamplingLength
		s.LastEnd = now
	}
	s.InCompute = false
	return nil
}

// StoreCustomValue writes customFields[index] of threadID's working
// sample. It is always recorded, independent of the sampling stride, so
// application-defined counters never lose data to a skipped iteration.
func (a *Application) StoreCustomValue(index int, value float64, threadID int) error {
	if index < 0 || index >= sample.NumCustomFields {
		return apperr.NewUsageError("StoreCustomValue", fmt.Sprintf("index %d is out of range", index))
	}
	if !a.slots.Valid(threadID) {
		return apperr.NewUsageError("StoreCustomValue", fmt.Sprintf("threadId %d is out of range", threadID))
	}
	a.slots.At(threadID).Live.CustomFields[index] = value
	return nil
}

// emitStart sends the single START message for this Application's
// lifetime, using double-checked locking so every subsequent Begin only
// pays the cost of one atomic load.
func (a *Application) emitStart() error {
	a.startOnce.Lock()
	defer a.startOnce.Unlock()
	if a.started.Load() {
		return nil
	}

	a.stateMu.Lock()
	if !CanTransition(a.state, StateRunning) {
		a.stateMu.Unlock()
		return apperr.NewUsageError("Begin", "application is not in pre_start")
	}
	a.state = StateRunning
	a.stateMu.Unlock()
	a.logger.LogStateTransition(string(StatePreStart), string(StateRunning))

	pid := uint32(os.Getpid())
	if err := a.conn.Send(channel.NewStart(pid)); err != nil {
		return apperr.NewProtocolError("Begin", "failed to send START", err)
	}
	a.logger.LogStart(pid)

	a.consolidatorDone = make(chan struct{})
	go a.runConsolidator()

	a.started.Store(true)
	return nil
}

// GetExecutionTime returns the execution time in milliseconds computed
// at Terminate.
func (a *Application) GetExecutionTime() float64 {
	a.execMu.RLock()
	defer a.execMu.RUnlock()
	return a.executionTime
}

// GetTotalTasks returns the grand total task count computed at
// Terminate.
func (a *Application) GetTotalTasks() uint64 {
	a.execMu.RLock()
	defer a.execMu.RUnlock()
	return a.totalTasksSeen
}

// GetLastHealth returns a diagnostic snapshot of the most recently
// completed consolidation cycle. It is never sent over the channel;
// callers in the same process (e.g. internal/otelbridge) use it purely
// for local observability.
func (a *Application) GetLastHealth() consolidator.QueueHealth {
	a.healthMu.RLock()
	defer a.healthMu.RUnlock()
	return a.lastHealth
}

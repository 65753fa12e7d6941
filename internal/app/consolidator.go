package app

import (
	"time"

	"github.com/bc-dunia/nanotick/internal/aggregator"
	"github.com/bc-dunia/nanotick/internal/apperr"
	"github.com/bc-dunia/nanotick/internal/channel"
	"github.com/bc-dunia/nanotick/internal/consolidator"
	"github.com/bc-dunia/nanotick/internal/sample"
)

// runConsolidator is the single background task described in spec.md
// §4.4: it owns the channel's receive side for the lifetime of the
// running state, answering SAMPLE_REQ with SAMPLE_RES.
// consolidatorPollInterval bounds how long the Consolidator can be
// blocked in Recv before it wakes to check supportStop.
const consolidatorPollInterval = 200 * time.Millisecond

func (a *Application) runConsolidator() {
	defer close(a.consolidatorDone)
	for {
		if a.supportStop.Load() {
			return
		}
		_ = a.conn.SetRecvDeadline(time.Now().Add(consolidatorPollInterval))
		frame, err := a.conn.Recv()
		if err != nil {
			if channel.IsTimeout(err) {
				continue
			}
			if a.supportStop.Load() {
				return
			}
			a.logger.LogProtocolError("Recv", err)
			return
		}
		if frame.Type != channel.SampleReq {
			a.logger.LogProtocolError("Recv", apperr.NewProtocolError("consolidator", "unexpected frame type "+frame.Type.String(), nil))
			return
		}

		reply, dropped := a.consolidate()
		if dropped {
			a.logger.LogSampleReplyDropped()
			continue
		}

		a.metaMu.RLock()
		phaseID, totalThreads := a.phaseID, a.totalThreads
		a.metaMu.RUnlock()

		if err := a.conn.Send(channel.NewSampleRes(reply, phaseID, totalThreads)); err != nil {
			a.logger.LogProtocolError("Send", err)
			return
		}
	}
}

// consolidate implements spec.md §4.4 steps 2-6: request every active
// slot to publish, wait for each to clear its flag, then fold the
// results. Slots that have never issued a single Begin are excluded
// without waiting — there is nothing for them to publish, and a flag
// set on a slot no thread ever touches would never clear.
func (a *Application) consolidate() (sample.Sample, bool) {
	if a.supportStop.Load() {
		return sample.Sample{}, true
	}

	n := a.slots.N()
	active := make([]int, 0, n)
	for i := 0; i < n; i++ {
		s := a.slots.At(i)
		if s.SampleStartTime == 0 {
			continue
		}
		s.RequestConsolidate()
		active = append(active, i)
	}

	consolidationTimestamp := a.clock.NowNanos()
	samplingLengthMs := a.samplingLengthMs()
	pollFloor := a.config.ConsolidatorPollFloor
	if pollFloor <= 0 {
		pollFloor = time.Millisecond
	}

	contributed := make([]sample.Sample, 0, len(active))
	for _, i := range active {
		s := a.slots.At(i)
		for s.ConsolidateRequested() {
			if a.supportStop.Load() {
				return sample.Sample{}, true
			}
			elapsedMs := float64(a.clock.NowNanos()-consolidationTimestamp) / 1e6
			var wait time.Duration
			if elapsedMs > samplingLengthMs {
				wait = pollFloor
			} else {
				wait = time.Duration((samplingLengthMs - elapsedMs) * float64(time.Millisecond))
				if wait < pollFloor {
					wait = pollFloor
				}
			}
			time.Sleep(wait)
		}
		contributed = append(contributed, s.Consolidated)
		s.Consolidated = sample.Zero()
	}

	health := consolidator.Snapshot(n, len(active), contributed, a.clock.NowNanos()-consolidationTimestamp)
	a.healthMu.Lock()
	a.lastHealth = health
	a.healthMu.Unlock()

	result := consolidator.Aggregate(contributed, n, a.config.AdjustThroughput, a.currentAggregator())
	if a.markInconsistent.Load() {
		result.Inconsistent = true
	}
	return result, false
}

func (a *Application) currentAggregator() aggregator.Aggregator {
	a.aggMu.RLock()
	defer a.aggMu.RUnlock()
	return a.agg
}

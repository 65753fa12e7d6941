package app

import (
	"time"

	"github.com/bc-dunia/nanotick/internal/apperr"
	"github.com/bc-dunia/nanotick/internal/channel"
)

// Terminate implements spec.md §4.6. It must be called once, from the
// driver thread, after every worker has left its instrumented region.
func (a *Application) Terminate() error {
	a.stateMu.Lock()
	if !CanTransition(a.state, StateStopping) {
		a.stateMu.Unlock()
		return apperr.NewUsageError("Terminate", "application is not running")
	}
	a.state = StateStopping
	a.stateMu.Unlock()
	a.logger.LogStateTransition(string(StateRunning), string(StateStopping))

	n := a.slots.N()
	var grandTotal uint64
	var minFirstBegin, maxLastEnd int64
	for i := 0; i < n; i++ {
		s := a.slots.At(i)
		s.TotalTasks += s.CurrentSample // recover the spurious tail, per spec.md §9.
		grandTotal += s.TotalTasks
		if s.FirstBegin != 0 && (minFirstBegin == 0 || s.FirstBegin < minFirstBegin) {
			minFirstBegin = s.FirstBegin
		}
		if s.LastEnd > maxLastEnd {
			maxLastEnd = s.LastEnd
		}
	}

	executionTimeMs := float64(maxLastEnd-minFirstBegin) / 1e6

	a.execMu.Lock()
	a.executionTime = executionTimeMs
	a.totalTasksSeen = grandTotal
	a.execMu.Unlock()

	a.supportStop.Store(true)
	if a.consolidatorDone != nil {
		<-a.consolidatorDone
	}

	if err := a.conn.Send(channel.NewStop(uint64(executionTimeMs), grandTotal)); err != nil {
		return apperr.NewProtocolError("Terminate", "failed to send STOP", err)
	}

	// Clear the deadline the Consolidator left behind so the wait for
	// STOPACK blocks instead of timing out.
	_ = a.conn.SetRecvDeadline(time.Time{})
	ack, err := a.conn.Recv()
	if err != nil {
		return apperr.NewProtocolError("Terminate", "failed to receive STOPACK", err)
	}
	if ack.Type != channel.StopAck {
		return apperr.NewProtocolError("Terminate", "expected STOPACK, got "+ack.Type.String(), nil)
	}

	a.stateMu.Lock()
	a.state = StateTerminated
	a.stateMu.Unlock()
	a.logger.LogStateTransition(string(StateStopping), string(StateTerminated))
	a.logger.LogTerminate(executionTimeMs, grandTotal)

	return a.conn.Close()
}

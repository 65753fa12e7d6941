package consolidator

import "github.com/bc-dunia/nanotick/internal/sample"

// QueueHealth is a point-in-time diagnostic snapshot of one
// consolidation cycle: how many slots were asked to publish, how many
// actually did, and how many of those were marked inconsistent.
// It never crosses the wire — Sample's fixed frame layout has no room
// for it — it is purely a same-process diagnostic, generalized from the
// teacher's per-worker WorkerHealth snapshot to a per-cycle one.
type QueueHealth struct {
	SlotsTotal        int
	SlotsRequested    int
	SlotsContributed  int
	SlotsInconsistent int
	WaitNanos         int64
}

// Snapshot builds a QueueHealth from one cycle's inputs: the slots that
// were asked to publish, the slots that actually contributed, and how
// long the cycle spent waiting for them.
func Snapshot(slotsTotal, slotsRequested int, contributed []sample.Sample, waitNanos int64) QueueHealth {
	h := QueueHealth{
		SlotsTotal:       slotsTotal,
		SlotsRequested:   slotsRequested,
		SlotsContributed: len(contributed),
		WaitNanos:        waitNanos,
	}
	for _, s := range contributed {
		if s.Inconsistent {
			h.SlotsInconsistent++
		}
	}
	return h
}

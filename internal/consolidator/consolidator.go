// Package consolidator implements the pure cross-thread aggregation math
// from spec.md §4.4 step 6: folding the per-slot Samples a Consolidator
// collected during one request into the single Sample shipped back to
// the Monitor. It has no knowledge of slots, channels, or goroutines so
// it can be exercised directly by tests.
package consolidator

import (
	"github.com/bc-dunia/nanotick/internal/aggregator"
	"github.com/bc-dunia/nanotick/internal/sample"
)

// Aggregate combines the Samples contributed by the slots that
// published this round (contributed, one entry per contributing slot,
// in slot index order) into the reply Sample. totalSlots is the
// Application's configured thread count, used to extrapolate
// throughput when fewer than totalSlots slots contributed.
func Aggregate(contributed []sample.Sample, totalSlots int, adjustThroughput bool, agg aggregator.Aggregator) sample.Sample {
	var result sample.Sample
	if len(contributed) == 0 {
		return result
	}

	consistentCount := 0
	for _, s := range contributed {
		result.Throughput += s.Throughput
		result.NumTasks += s.NumTasks
		if !s.Inconsistent {
			result.LoadPercentage += s.LoadPercentage
			result.Latency += s.Latency
			consistentCount++
		}
	}

	if consistentCount > 0 {
		result.LoadPercentage /= float64(consistentCount)
		result.Latency /= float64(consistentCount)
	} else {
		result.Inconsistent = true
	}

	n := len(contributed)
	if adjustThroughput && n < totalSlots && n > 0 {
		result.Throughput += (result.Throughput / float64(n)) * float64(totalSlots-n)
	}

	for idx := 0; idx < sample.NumCustomFields; idx++ {
		values := make([]float64, 0, n)
		for _, s := range contributed {
			values = append(values, s.CustomFields[idx])
		}
		result.CustomFields[idx] = agg.Aggregate(idx, values)
	}

	return result
}

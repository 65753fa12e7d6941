// Command tickcal measures the monotonic clock's effective resolution
// and an approximate cost of an uncontended begin/end pair, then prints
// the stride a 100ms samplingLengthMs would settle on at that cost.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/bc-dunia/nanotick/internal/clock"
	"github.com/bc-dunia/nanotick/internal/sampler"
	"github.com/bc-dunia/nanotick/internal/slot"
)

func main() {
	iterations := flag.Int("iterations", 2_000_000, "begin/end pairs to time")
	flag.Parse()

	if *iterations <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -iterations must be positive")
		os.Exit(1)
	}

	c := clock.NewSystem()

	resolutionNanos := measureClockResolution(c)
	pairNanos := measureBeginEndCost(c, *iterations)

	recommended := sampler.ComputeStride(100, pairNanos*float64(*iterations), float64(*iterations))

	fmt.Printf("clock resolution:        ~%.1fns\n", resolutionNanos)
	fmt.Printf("uncontended begin/end:    ~%.1fns/iteration\n", pairNanos)
	fmt.Printf("recommended samplingLengthMs: 100 (stride %d gives ~100ms windows at this cost)\n", recommended)
}

// measureClockResolution repeatedly samples the clock until it observes
// a change, returning the smallest observed nonzero delta.
func measureClockResolution(c clock.Clock) float64 {
	const probes = 1000
	min := int64(-1)
	for i := 0; i < probes; i++ {
		start := c.NowNanos()
		var delta int64
		for delta == 0 {
			delta = c.NowNanos() - start
		}
		if min == -1 || delta < min {
			min = delta
		}
	}
	return float64(min)
}

// measureBeginEndCost approximates the cost of a begin/end pair by
// timing iterations rounds of one clock read plus the InCompute toggles
// on a single slot, returning the mean nanoseconds per round. It does
// not call Application.Begin/End.
func measureBeginEndCost(c clock.Clock, iterations int) float64 {
	slots := slot.New(1)
	s := slots.At(0)

	start := c.NowNanos()
	for i := 0; i < iterations; i++ {
		s.InCompute = true
		_ = c.NowNanos()
		s.InCompute = false
	}
	elapsed := c.NowNanos() - start

	return float64(elapsed) / float64(iterations)
}

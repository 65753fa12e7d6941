// Package config holds the tunables that shape the Sampler and
// Consolidator, mirroring the teacher's small Config-struct-plus-
// Default-constructor pattern used throughout internal/telemetry.
package config

import "time"

// Configuration holds the runtime tunables described in spec.md §4.
type Configuration struct {
	// SamplingLengthMs is the target window length the adaptive stride
	// converges towards. Zero disables adaptation; every end() then
	// records.
	SamplingLengthMs float64

	// AdjustThroughput enables extrapolating the contribution of a
	// thread that has produced no sample in a window, using the mean
	// throughput of the slots that did contribute, when the Consolidator
	// aggregates across slots.
	AdjustThroughput bool

	// ConsistencyThreshold is the maximum percentage deviation between a
	// slot's actual sample time and its estimated sample time before
	// that slot's consolidated sample is marked Inconsistent.
	ConsistencyThreshold float64

	// ConsolidatorPollFloor is the minimum time the Consolidator waits
	// between polls of a not-yet-published slot, regardless of
	// SamplingLengthMs; spec.md §4.4 sets this to 1ms.
	ConsolidatorPollFloor time.Duration

	// ChannelURI addresses the IPC channel, e.g. "ipc:///tmp/nanotick.sock"
	// or "tcp://127.0.0.1:9000".
	ChannelURI string
}

// DefaultConfiguration returns the configuration spec.md's worked
// examples assume: a 100ms sampling window, throughput extrapolation
// enabled, a 10% consistency threshold, and the 1ms poll floor.
func DefaultConfiguration() *Configuration {
	return &Configuration{
		SamplingLengthMs:      100,
		AdjustThroughput:      true,
		ConsistencyThreshold:  10,
		ConsolidatorPollFloor: time.Millisecond,
		ChannelURI:            "ipc:///tmp/nanotick.sock",
	}
}

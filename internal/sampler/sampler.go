// Package sampler implements the adaptive sampling-stride formula
// described in spec.md §4.3 and the stride-transition corrections from
// §4.2. It is pure and allocation-free so it can sit on the hot path's
// window-closing branch.
package sampler

import "math"

// DefaultStride is the stride used when adaptation is disabled
// (samplingLengthMs == 0) or when the just-measured window had zero
// tasks (meanLatencyMs would be undefined).
const DefaultStride uint64 = 1

// ComputeStride implements spec.md §4.3: given the target window
// samplingLengthMs, and the numTasks/sampleTimeNs measured in the window
// that just closed, returns the new stride. A samplingLengthMs of 0
// disables adaptation and ComputeStride returns DefaultStride.
func ComputeStride(samplingLengthMs float64, sampleTimeNs float64, numTasks float64) uint64 {
	if samplingLengthMs == 0 {
		return DefaultStride
	}
	if numTasks == 0 {
		return DefaultStride
	}
	meanLatencyMs := (sampleTimeNs / numTasks) / 1e6
	if meanLatencyMs == 0 {
		return DefaultStride
	}
	stride := math.Ceil(samplingLengthMs / meanLatencyMs)
	if stride < 1 {
		stride = 1
	}
	return uint64(stride)
}

// AdjustCurrentSampleForStrideChange implements the stride-transition
// corrections in spec.md §4.2:
//
//   - raising stride from 1 to >1: force currentSample = 1 so the
//     current iteration starts the first group of the new stride; the
//     group's last end (currentSample back at 0) records all newStride
//     iterations, and the following begin closes the window.
//   - lowering stride to 1: force currentSample = 0 so recording resumes
//     immediately.
//   - any other change: currentSample is left at its post-increment
//     value, which the caller has already wrapped modulo the old stride.
func AdjustCurrentSampleForStrideChange(oldStride, newStride, currentSample uint64) uint64 {
	switch {
	case oldStride == 1 && newStride > 1:
		return 1
	case newStride == 1:
		return 0
	default:
		return currentSample
	}
}

package sampler

import "testing"

func TestComputeStrideDisabledAdaptation(t *testing.T) {
	if got := ComputeStride(0, 12345, 10); got != DefaultStride {
		t.Fatalf("ComputeStride with samplingLengthMs=0 = %d, want %d", got, DefaultStride)
	}
}

func TestComputeStrideTargetsWindow(t *testing.T) {
	// 30ns/iteration, want a 100ms window => ~3.33M iterations.
	sampleTimeNs := 30.0 * 1000 // 1000 tasks took 30us
	stride := ComputeStride(100, sampleTimeNs, 1000)
	meanLatencyMs := (sampleTimeNs / 1000) / 1e6
	want := uint64(1)
	for float64(want)*meanLatencyMs < 100 {
		want++
	}
	if stride < want-1 || stride > want+1 {
		t.Fatalf("ComputeStride = %d, want approximately %d", stride, want)
	}
}

func TestComputeStrideZeroTasksFallsBackToDefault(t *testing.T) {
	if got := ComputeStride(100, 12345, 0); got != DefaultStride {
		t.Fatalf("ComputeStride with numTasks=0 = %d, want %d", got, DefaultStride)
	}
}

func TestAdjustCurrentSampleForStrideChange(t *testing.T) {
	cases := []struct {
		old, new, cur, want uint64
	}{
		{old: 1, new: 5, cur: 0, want: 1},
		{old: 5, new: 1, cur: 3, want: 0},
		{old: 5, new: 8, cur: 2, want: 2},
		{old: 1, new: 1, cur: 0, want: 0},
	}
	for _, c := range cases {
		if got := AdjustCurrentSampleForStrideChange(c.old, c.new, c.cur); got != c.want {
			t.Errorf("AdjustCurrentSampleForStrideChange(%d,%d,%d) = %d, want %d", c.old, c.new, c.cur, got, c.want)
		}
	}
}

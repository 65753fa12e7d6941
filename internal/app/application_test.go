package app

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/bc-dunia/nanotick/internal/apperr"
	"github.com/bc-dunia/nanotick/internal/channel"
	"github.com/bc-dunia/nanotick/internal/clock"
	"github.com/bc-dunia/nanotick/internal/config"
)

func newTestPair(t *testing.T, numThreads int) (*Application, channel.Conn) {
	t.Helper()
	uri := "ipc://" + filepath.Join(t.TempDir(), "nanotick.sock")

	server, err := channel.Bind(uri)
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	t.Cleanup(func() { server.Close() })

	a, err := New(uri, numThreads)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return a, server
}

func TestStartEmittedExactlyOnce(t *testing.T) {
	a, server := newTestPair(t, 4)

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func(threadID int) {
			a.Begin(threadID)
			a.End(threadID)
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	frame, err := server.Recv()
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if frame.Type != channel.Start {
		t.Fatalf("got frame type %s, want START", frame.Type)
	}

	if err := server.SetRecvDeadline(time.Now().Add(50 * time.Millisecond)); err != nil {
		t.Fatalf("SetRecvDeadline failed: %v", err)
	}
	if _, err := server.Recv(); !channel.IsTimeout(err) {
		t.Fatalf("expected no second START within 50ms, got err=%v", err)
	}
}

func TestTerminateHandshake(t *testing.T) {
	a, server := newTestPair(t, 1)

	if err := a.Begin(0); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if _, err := server.Recv(); err != nil { // START
		t.Fatalf("Recv START failed: %v", err)
	}
	if err := a.End(0); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	termErr := make(chan error, 1)
	go func() { termErr <- a.Terminate() }()

	frame, err := server.Recv()
	if err != nil {
		t.Fatalf("Recv STOP failed: %v", err)
	}
	if frame.Type != channel.Stop {
		t.Fatalf("got frame type %s, want STOP", frame.Type)
	}
	if err := server.Send(channel.NewStopAck()); err != nil {
		t.Fatalf("Send STOPACK failed: %v", err)
	}

	if err := <-termErr; err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}
	if a.GetTotalTasks() != 1 {
		t.Fatalf("GetTotalTasks = %d, want 1", a.GetTotalTasks())
	}
}

func TestBeginEndWindowMath(t *testing.T) {
	a, _ := newTestPair(t, 1)
	mc := clock.NewManual(1) // nonzero: a zero SampleStartTime marks a slot that has not begun
	a.SetClock(mc)
	if err := a.SetConfiguration(&config.Configuration{
		SamplingLengthMs:      0, // disable adaptation: stride stays 1
		AdjustThroughput:      true,
		ConsistencyThreshold:  5,
		ConsolidatorPollFloor: time.Millisecond,
	}); err != nil {
		t.Fatalf("SetConfiguration failed: %v", err)
	}

	if err := a.Begin(0); err != nil {
		t.Fatalf("Begin#1 failed: %v", err)
	}
	mc.Advance(3_000_000) // 3ms compute
	if err := a.End(0); err != nil {
		t.Fatalf("End#1 failed: %v", err)
	}
	mc.Advance(1_000_000) // 1ms idle

	s := a.slots.At(0)
	s.RequestConsolidate()

	if err := a.Begin(0); err != nil {
		t.Fatalf("Begin#2 failed: %v", err)
	}

	got := s.Consolidated
	if got.Latency != 3_000_000 {
		t.Fatalf("Latency = %v, want 3000000", got.Latency)
	}
	if math.Abs(got.LoadPercentage-75) > 0.01 {
		t.Fatalf("LoadPercentage = %v, want ~75", got.LoadPercentage)
	}
	if got.Throughput != 250 {
		t.Fatalf("Throughput = %v, want 250", got.Throughput)
	}
	if got.Inconsistent {
		t.Fatal("sample should be consistent")
	}
	if s.ConsolidateRequested() {
		t.Fatal("consolidate flag should have been cleared")
	}
}

// TestBeginEndWindowMathWithStride exercises a stride>1 group: the
// qualifying begin (currentSample==1, opens/closes windows) and the
// qualifying end (currentSample==0, records into Live) fall on
// different, stride-adjacent iterations. Every iteration in the group
// has the same compute/idle cost, so the single recorded iteration,
// extrapolated by SamplingLength, should estimate the group's total
// elapsed time exactly, leaving skew at zero and the sample consistent
// (invariant 3, spec.md §8).
func TestBeginEndWindowMathWithStride(t *testing.T) {
	a, _ := newTestPair(t, 1)
	mc := clock.NewManual(1) // nonzero: a zero SampleStartTime marks a slot that has not begun
	a.SetClock(mc)
	if err := a.SetConfiguration(&config.Configuration{
		SamplingLengthMs:      0, // don't let adaptation touch the stride mid-group
		AdjustThroughput:      true,
		ConsistencyThreshold:  5,
		ConsolidatorPollFloor: time.Millisecond,
	}); err != nil {
		t.Fatalf("SetConfiguration failed: %v", err)
	}

	const stride = 3
	const compute = 3_000_000 // 3ms
	const idle = 1_000_000    // 1ms

	s := a.slots.At(0)
	s.SamplingLength = stride

	for i := 0; i < stride; i++ {
		if err := a.Begin(0); err != nil {
			t.Fatalf("Begin#%d failed: %v", i+1, err)
		}
		mc.Advance(compute)
		if err := a.End(0); err != nil {
			t.Fatalf("End#%d failed: %v", i+1, err)
		}
		mc.Advance(idle)
	}

	s.RequestConsolidate()

	if err := a.Begin(0); err != nil {
		t.Fatalf("Begin (window close) failed: %v", err)
	}

	got := s.Consolidated
	if got.Inconsistent {
		t.Fatal("sample should be consistent: skew should be zero when every iteration in the group costs the same")
	}
	if got.Latency != compute*stride {
		t.Fatalf("Latency = %v, want %v", got.Latency, compute*stride)
	}
	if math.Abs(got.LoadPercentage-75) > 0.01 {
		t.Fatalf("LoadPercentage = %v, want ~75", got.LoadPercentage)
	}
	if got.Throughput != 250 {
		t.Fatalf("Throughput = %v, want 250", got.Throughput)
	}
}

func TestTwoConsecutiveBeginsIsUsageError(t *testing.T) {
	a, _ := newTestPair(t, 1)
	if err := a.Begin(0); err != nil {
		t.Fatalf("Begin#1 failed: %v", err)
	}
	err := a.Begin(0)
	if !apperr.IsKind(err, apperr.KindUsage) {
		t.Fatalf("Begin#2 error = %v, want usage error", err)
	}
}

func TestEndWithoutBeginIsUsageError(t *testing.T) {
	a, _ := newTestPair(t, 1)
	err := a.End(0)
	if !apperr.IsKind(err, apperr.KindUsage) {
		t.Fatalf("End error = %v, want usage error", err)
	}
}

func TestOutOfRangeThreadIDIsUsageError(t *testing.T) {
	a, _ := newTestPair(t, 2)
	if err := a.Begin(5); !apperr.IsKind(err, apperr.KindUsage) {
		t.Fatalf("Begin(5) error = %v, want usage error", err)
	}
	if err := a.StoreCustomValue(0, 1, 5); !apperr.IsKind(err, apperr.KindUsage) {
		t.Fatalf("StoreCustomValue bad threadId error = %v, want usage error", err)
	}
	if err := a.StoreCustomValue(99, 1, 0); !apperr.IsKind(err, apperr.KindUsage) {
		t.Fatalf("StoreCustomValue bad index error = %v, want usage error", err)
	}
}

func TestTerminateRecoversSpuriousTail(t *testing.T) {
	a, server := newTestPair(t, 1)

	if err := a.Begin(0); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if _, err := server.Recv(); err != nil {
		t.Fatalf("Recv START failed: %v", err)
	}
	if err := a.End(0); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	s := a.slots.At(0)
	s.TotalTasks = 100
	s.CurrentSample = 7

	termErr := make(chan error, 1)
	go func() { termErr <- a.Terminate() }()

	frame, err := server.Recv()
	if err != nil {
		t.Fatalf("Recv STOP failed: %v", err)
	}
	if frame.StopTotalTasks != 107 {
		t.Fatalf("StopTotalTasks = %d, want 107", frame.StopTotalTasks)
	}
	server.Send(channel.NewStopAck())
	<-termErr

	if a.GetTotalTasks() != 107 {
		t.Fatalf("GetTotalTasks = %d, want 107", a.GetTotalTasks())
	}
}

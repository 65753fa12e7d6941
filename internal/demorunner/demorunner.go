// Package demorunner holds the worker/poll loops used by the demo CLIs:
// cmd/demo uses RunApplication, cmd/nanotick-demo uses both.
// cmd/monitor runs its own poll loop.
package demorunner

import (
	"context"
	"math"
	"sync"

	"github.com/bc-dunia/nanotick/internal/app"
	"github.com/bc-dunia/nanotick/internal/monitor"
	"github.com/bc-dunia/nanotick/internal/sample"
)

// RunApplication drives numThreads worker goroutines through
// Begin/StoreCustomValue/End for iterations each (x = sin(x) with no
// added pacing, storing x in custom field 0), then calls
// Terminate. It returns early, after terminating, if ctx is canceled.
func RunApplication(ctx context.Context, a *app.Application, numThreads int, iterations uint64) error {
	var wg sync.WaitGroup
	for t := 0; t < numThreads; t++ {
		wg.Add(1)
		go func(threadID int) {
			defer wg.Done()
			x := 0.5
			for i := uint64(0); i < iterations; i++ {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if err := a.Begin(threadID); err != nil {
					return
				}
				x = math.Sin(x)
				_ = a.StoreCustomValue(0, x, threadID)
				if err := a.End(threadID); err != nil {
					return
				}
			}
		}(t)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		<-done
	}

	return a.Terminate()
}

// SampleHandler is called for every SAMPLE_RES (ok=true) and once more
// with ok=false when the Application has terminated.
type SampleHandler func(s sample.Sample, ok bool)

// RunMonitor polls GetSample on every tick from ticks until either the
// Application terminates or ctx is canceled, invoking handle for each
// result. Callers call m.WaitStart themselves first, since that result
// (the Application's pid) is usually needed before polling starts.
func RunMonitor(ctx context.Context, m *monitor.Monitor, ticks <-chan struct{}, handle SampleHandler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticks:
		}

		s, ok, err := m.GetSample()
		if err != nil {
			return err
		}
		handle(s, ok)
		if !ok {
			return nil
		}
	}
}

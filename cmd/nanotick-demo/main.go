// Command nanotick-demo is the 0/1 compatibility wrapper spec.md §6
// describes: "Demo/driver binaries accept one argument: 0 → run as
// Monitor, 1 → run as Application." It dispatches to the
// internal/demorunner loops (the Application loop is the one cmd/demo
// uses), with a fixed two-thread, 500,000-iteration x = sin(x) workload
// rather than cmd/demo's richer flags.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bc-dunia/nanotick/internal/app"
	"github.com/bc-dunia/nanotick/internal/config"
	"github.com/bc-dunia/nanotick/internal/demorunner"
	"github.com/bc-dunia/nanotick/internal/monitor"
	"github.com/bc-dunia/nanotick/internal/sample"
)

const (
	defaultChannelURI = "ipc:///tmp/nanotick-demo.sock"
	defaultThreads    = 2
	defaultIterations = 500_000
	pollInterval      = 500 * time.Millisecond
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Error: usage: nanotick-demo <0|1>  (0 = Monitor, 1 = Application)")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	switch os.Args[1] {
	case "0":
		runMonitor(ctx)
	case "1":
		runApplication(ctx)
	default:
		fmt.Fprintln(os.Stderr, "Error: argument must be 0 (Monitor) or 1 (Application)")
		os.Exit(1)
	}
}

func runApplication(ctx context.Context) {
	a, err := app.New(defaultChannelURI, defaultThreads)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: connect to %s: %v\n", defaultChannelURI, err)
		os.Exit(1)
	}

	cfg := config.DefaultConfiguration()
	cfg.ChannelURI = defaultChannelURI
	if err := a.SetConfiguration(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: configure: %v\n", err)
		os.Exit(1)
	}

	if err := demorunner.RunApplication(ctx, a, defaultThreads, defaultIterations); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("execution time: %.2fms, total tasks: %d\n", a.GetExecutionTime(), a.GetTotalTasks())
}

func runMonitor(ctx context.Context) {
	m, err := monitor.New(defaultChannelURI)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: bind %s: %v\n", defaultChannelURI, err)
		os.Exit(1)
	}
	defer m.Close()

	pid, err := m.WaitStart()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: wait for start: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("application started, pid=%d\n", pid)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	ticks := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				select {
				case ticks <- struct{}{}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	err = demorunner.RunMonitor(ctx, m, ticks, func(s sample.Sample, ok bool) {
		if !ok {
			fmt.Printf("application terminated: execution_time_ms=%.2f total_tasks=%d\n",
				m.GetExecutionTime(), m.GetTotalTasks())
			return
		}
		line, marshalErr := json.Marshal(s)
		if marshalErr != nil {
			fmt.Fprintf(os.Stderr, "Error: marshal sample: %v\n", marshalErr)
			return
		}
		fmt.Printf("phase=%d threads=%d %s\n", m.GetPhaseID(), m.GetTotalThreads(), line)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

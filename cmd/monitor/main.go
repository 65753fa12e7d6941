// Command monitor binds a nanotick channel, waits for an Application to
// start, and prints one consolidated sample per poll interval until the
// Application terminates.
package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/bc-dunia/nanotick/internal/monitor"
	"github.com/bc-dunia/nanotick/internal/sample"
)

const csvBufferSize = 64 * 1024

func main() {
	channelURI := flag.String("channel", "ipc:///tmp/nanotick-demo.sock", "channel URI to bind")
	pollInterval := flag.Duration("poll-interval", 500*time.Millisecond, "delay between SAMPLE_REQ calls")
	reconnect := flag.Bool("reconnect", false, "keep binding successive runs on the same channel after each one terminates")
	csvPath := flag.String("csv", "", "append every received sample to this CSV file")
	verbose := flag.Bool("verbose", false, "print round-trip latency for each SAMPLE_REQ/SAMPLE_RES")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	var rec *csvRecorder
	if *csvPath != "" {
		r, err := newCSVRecorder(*csvPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: open csv %s: %v\n", *csvPath, err)
			os.Exit(1)
		}
		defer r.Close()
		rec = r
	}

	for {
		if err := runOnce(ctx, *channelURI, *pollInterval, rec, *verbose); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if ctx.Err() != nil || !*reconnect {
			return
		}
	}
}

func runOnce(ctx context.Context, channelURI string, pollInterval time.Duration, rec *csvRecorder, verbose bool) error {
	m, err := monitor.New(channelURI)
	if err != nil {
		return fmt.Errorf("bind %s: %w", channelURI, err)
	}
	defer m.Close()

	pid, err := m.WaitStart()
	if err != nil {
		return fmt.Errorf("wait for start: %w", err)
	}
	fmt.Printf("application started, pid=%d\n", pid)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		start := time.Now()
		s, ok, err := m.GetSample()
		roundTrip := time.Since(start)
		if err != nil {
			return fmt.Errorf("get sample: %w", err)
		}
		if !ok {
			fmt.Printf("application terminated: execution_time_ms=%.2f total_tasks=%d\n",
				m.GetExecutionTime(), m.GetTotalTasks())
			return nil
		}

		if verbose {
			fmt.Printf("round_trip=%s\n", roundTrip)
		}
		if rec != nil {
			if err := rec.Write(time.Now(), s); err != nil {
				return fmt.Errorf("write csv: %w", err)
			}
		}

		line, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshal sample: %w", err)
		}
		fmt.Printf("phase=%d threads=%d %s\n", m.GetPhaseID(), m.GetTotalThreads(), line)
	}
}

// csvRecorder appends received samples to a buffered CSV file, grounded
// on the teacher's bufio-buffered, append-mode file emitter.
type csvRecorder struct {
	f *os.File
	w *csv.Writer
}

func newCSVRecorder(path string) (*csvRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(bufio.NewWriterSize(f, csvBufferSize))
	if stat, statErr := f.Stat(); statErr == nil && stat.Size() == 0 {
		_ = w.Write([]string{"timestamp", "inconsistent", "load_percentage", "throughput", "latency", "num_tasks", "custom_fields"})
	}
	return &csvRecorder{f: f, w: w}, nil
}

func (r *csvRecorder) Write(ts time.Time, s sample.Sample) error {
	custom := ""
	for i, v := range s.CustomFields {
		if i > 0 {
			custom += ";"
		}
		custom += strconv.FormatFloat(v, 'f', -1, 64)
	}
	row := []string{
		ts.Format(time.RFC3339Nano),
		strconv.FormatBool(s.Inconsistent),
		strconv.FormatFloat(s.LoadPercentage, 'f', -1, 64),
		strconv.FormatFloat(s.Throughput, 'f', -1, 64),
		strconv.FormatFloat(s.Latency, 'f', -1, 64),
		strconv.FormatFloat(s.NumTasks, 'f', -1, 64),
		custom,
	}
	if err := r.w.Write(row); err != nil {
		return err
	}
	r.w.Flush()
	return r.w.Error()
}

func (r *csvRecorder) Close() error {
	r.w.Flush()
	return r.f.Close()
}

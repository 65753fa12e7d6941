// Command demo is a stress-test Application driver: it spins up N
// worker goroutines racing x = sin(x) through Begin/End, terminates on
// SIGINT/SIGTERM or once every worker has run its iteration count, and
// prints the execution time and total task count.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bc-dunia/nanotick/internal/app"
	"github.com/bc-dunia/nanotick/internal/config"
	"github.com/bc-dunia/nanotick/internal/demorunner"
	"github.com/bc-dunia/nanotick/internal/otelbridge"
)

func main() {
	channelURI := flag.String("channel", "ipc:///tmp/nanotick-demo.sock", "channel URI to connect to")
	numThreads := flag.Int("threads", 2, "number of worker threads")
	iterations := flag.Uint64("iterations", 1_000_000, "iterations per worker")
	samplingLengthMs := flag.Float64("sampling-length-ms", 100, "target sampling window in ms, 0 disables adaptation")
	otelEnabled := flag.Bool("otel", false, "export consolidation health as OpenTelemetry metrics")
	otelExporter := flag.String("otel-exporter", "stdout", "otel exporter: stdout, otlp-grpc, otlp-http")
	flag.Parse()

	if *numThreads <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -threads must be positive")
		os.Exit(1)
	}

	a, err := app.New(*channelURI, *numThreads)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: connect to %s: %v\n", *channelURI, err)
		os.Exit(1)
	}

	cfg := config.DefaultConfiguration()
	cfg.SamplingLengthMs = *samplingLengthMs
	cfg.ChannelURI = *channelURI
	if err := a.SetConfiguration(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: configure: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	otelCfg := otelbridge.DefaultConfig()
	otelCfg.Enabled = *otelEnabled
	otelCfg.ServiceName = "nanotick-demo"
	otelCfg.ExporterType = otelbridge.ExporterType(*otelExporter)
	bridge, err := otelbridge.New(ctx, otelCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: otel bridge: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = bridge.Shutdown(context.Background()) }()

	if *otelEnabled {
		go publishHealthLoop(ctx, a, bridge)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	if err := demorunner.RunApplication(ctx, a, *numThreads, *iterations); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("execution time: %.2fms, total tasks: %d\n", a.GetExecutionTime(), a.GetTotalTasks())
}

func publishHealthLoop(ctx context.Context, a *app.Application, bridge *otelbridge.Bridge) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			bridge.PublishHealth(ctx, a.GetLastHealth())
		}
	}
}

package otelbridge

import (
	"context"
	"testing"

	"github.com/bc-dunia/nanotick/internal/consolidator"
	"github.com/bc-dunia/nanotick/internal/sample"
)

func TestDisabledBridgePublishIsNoop(t *testing.T) {
	b, err := New(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	b.Publish(context.Background(), sample.Sample{Throughput: 1, Latency: 2, LoadPercentage: 3, NumTasks: 4})
	b.PublishHealth(context.Background(), consolidator.QueueHealth{SlotsTotal: 2, SlotsRequested: 2, SlotsContributed: 1})
	if err := b.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestStdoutExporterBuilds(t *testing.T) {
	cfg := &Config{Enabled: true, ServiceName: "nanotick-test", ExporterType: ExporterStdout}
	b, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	b.Publish(context.Background(), sample.Sample{Throughput: 5})
	if err := b.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

package consolidator

import (
	"testing"

	"github.com/bc-dunia/nanotick/internal/aggregator"
	"github.com/bc-dunia/nanotick/internal/sample"
)

func TestAggregateAveragesConsistentContributors(t *testing.T) {
	contributed := []sample.Sample{
		{LoadPercentage: 60, Latency: 1000, Throughput: 10, NumTasks: 5},
		{LoadPercentage: 80, Latency: 2000, Throughput: 20, NumTasks: 5},
	}
	got := Aggregate(contributed, 2, false, aggregator.Sum{})
	if got.LoadPercentage != 70 {
		t.Fatalf("LoadPercentage = %v, want 70", got.LoadPercentage)
	}
	if got.Latency != 1500 {
		t.Fatalf("Latency = %v, want 1500", got.Latency)
	}
	if got.Throughput != 30 {
		t.Fatalf("Throughput = %v, want 30", got.Throughput)
	}
	if got.NumTasks != 10 {
		t.Fatalf("NumTasks = %v, want 10", got.NumTasks)
	}
	if got.Inconsistent {
		t.Fatal("result should be consistent")
	}
}

func TestAggregateExcludesInconsistentFromLatencyAndLoad(t *testing.T) {
	contributed := []sample.Sample{
		{LoadPercentage: 60, Latency: 1000, Throughput: 10, NumTasks: 5},
		{LoadPercentage: 999, Latency: 999999, Throughput: 20, NumTasks: 5, Inconsistent: true},
	}
	got := Aggregate(contributed, 2, false, aggregator.Sum{})
	if got.LoadPercentage != 60 || got.Latency != 1000 {
		t.Fatalf("got %+v, want inconsistent contributor excluded from load/latency", got)
	}
	if got.Throughput != 30 {
		t.Fatalf("Throughput should still mix unconditionally, got %v", got.Throughput)
	}
	if got.Inconsistent {
		t.Fatal("result should stay consistent when at least one contributor is consistent")
	}
}

func TestAggregateAllInconsistentMarksResultInconsistent(t *testing.T) {
	contributed := []sample.Sample{
		{Throughput: 10, NumTasks: 5, Inconsistent: true},
		{Throughput: 20, NumTasks: 5, Inconsistent: true},
	}
	got := Aggregate(contributed, 2, false, aggregator.Sum{})
	if !got.Inconsistent {
		t.Fatal("result should be inconsistent when every contributor is inconsistent")
	}
}

func TestAggregateExtrapolatesThroughputForMissingContributors(t *testing.T) {
	contributed := []sample.Sample{
		{Throughput: 100, NumTasks: 5},
	}
	got := Aggregate(contributed, 4, true, aggregator.Sum{})
	want := 100.0 + (100.0/1)*3
	if got.Throughput != want {
		t.Fatalf("Throughput = %v, want %v", got.Throughput, want)
	}
}

func TestAggregateCustomFieldsUseAggregator(t *testing.T) {
	contributed := []sample.Sample{
		{CustomFields: [sample.NumCustomFields]float64{2, 5, 0, 0}},
		{CustomFields: [sample.NumCustomFields]float64{2, 5, 0, 0}},
	}
	got := Aggregate(contributed, 2, false, aggregator.Sum{})
	if got.CustomFields[0] != 4 || got.CustomFields[1] != 10 {
		t.Fatalf("CustomFields = %+v, want [4 10 0 0]", got.CustomFields)
	}
}

func TestAggregateNoContributors(t *testing.T) {
	got := Aggregate(nil, 4, true, aggregator.Sum{})
	if got != (sample.Sample{}) {
		t.Fatalf("got %+v, want zero value", got)
	}
}

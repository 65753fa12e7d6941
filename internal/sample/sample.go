// Package sample defines the Sample value type published by the
// Consolidator and consumed by the Monitor: a record of doubles covering
// one window across all threads, plus componentwise arithmetic and
// textual serialization. The binary wire form lives in internal/channel.
package sample

import (
	"fmt"
	"strconv"
	"strings"
)

// NumCustomFields is K in spec.md §3: the number of user-defined custom
// counter slots. Both peers of the channel must agree on this value.
const NumCustomFields = 4

// Sample is the aggregate record published to the Monitor covering one
// window across all threads.
type Sample struct {
	Inconsistent   bool
	LoadPercentage float64
	Throughput     float64
	Latency        float64
	NumTasks       float64
	CustomFields   [NumCustomFields]float64
}

// Zero returns the zero-value Sample (all fields zero, not inconsistent).
func Zero() Sample {
	return Sample{}
}

// Add returns the componentwise sum of s and o. If either operand is
// Inconsistent, the result is Inconsistent.
func (s Sample) Add(o Sample) Sample {
	r := Sample{
		Inconsistent:   s.Inconsistent || o.Inconsistent,
		LoadPercentage: s.LoadPercentage + o.LoadPercentage,
		Throughput:     s.Throughput + o.Throughput,
		Latency:        s.Latency + o.Latency,
		NumTasks:       s.NumTasks + o.NumTasks,
	}
	for i := range r.CustomFields {
		r.CustomFields[i] = s.CustomFields[i] + o.CustomFields[i]
	}
	return r
}

// Sub returns the componentwise difference s - o.
func (s Sample) Sub(o Sample) Sample {
	r := Sample{
		Inconsistent:   s.Inconsistent || o.Inconsistent,
		LoadPercentage: s.LoadPercentage - o.LoadPercentage,
		Throughput:     s.Throughput - o.Throughput,
		Latency:        s.Latency - o.Latency,
		NumTasks:       s.NumTasks - o.NumTasks,
	}
	for i := range r.CustomFields {
		r.CustomFields[i] = s.CustomFields[i] - o.CustomFields[i]
	}
	return r
}

// Mul returns the componentwise product s * o.
func (s Sample) Mul(o Sample) Sample {
	r := Sample{
		Inconsistent:   s.Inconsistent || o.Inconsistent,
		LoadPercentage: s.LoadPercentage * o.LoadPercentage,
		Throughput:     s.Throughput * o.Throughput,
		Latency:        s.Latency * o.Latency,
		NumTasks:       s.NumTasks * o.NumTasks,
	}
	for i := range r.CustomFields {
		r.CustomFields[i] = s.CustomFields[i] * o.CustomFields[i]
	}
	return r
}

// Div returns the componentwise quotient s / o.
func (s Sample) Div(o Sample) Sample {
	r := Sample{
		Inconsistent:   s.Inconsistent || o.Inconsistent,
		LoadPercentage: s.LoadPercentage / o.LoadPercentage,
		Throughput:     s.Throughput / o.Throughput,
		Latency:        s.Latency / o.Latency,
		NumTasks:       s.NumTasks / o.NumTasks,
	}
	for i := range r.CustomFields {
		r.CustomFields[i] = s.CustomFields[i] / o.CustomFields[i]
	}
	return r
}

// Scale returns every field of s multiplied by k. The Inconsistent flag
// is preserved, not cleared.
func (s Sample) Scale(k float64) Sample {
	r := Sample{
		Inconsistent:   s.Inconsistent,
		LoadPercentage: s.LoadPercentage * k,
		Throughput:     s.Throughput * k,
		Latency:        s.Latency * k,
		NumTasks:       s.NumTasks * k,
	}
	for i := range r.CustomFields {
		r.CustomFields[i] = s.CustomFields[i] * k
	}
	return r
}

// ScaleDiv returns every field of s divided by k.
func (s Sample) ScaleDiv(k float64) Sample {
	return s.Scale(1 / k)
}

// String renders the Sample in the labeled textual form documented in
// spec.md §3: "[Inconsistent: b Load: x Throughput: x Latency: x
// NumTasks: x CustomField0: x ... CustomFieldK-1: x]".
func (s Sample) String() string {
	var b strings.Builder
	b.WriteByte('[')
	fmt.Fprintf(&b, "Inconsistent: %t Load: %v Throughput: %v Latency: %v NumTasks: %v",
		s.Inconsistent, s.LoadPercentage, s.Throughput, s.Latency, s.NumTasks)
	for i, v := range s.CustomFields {
		fmt.Fprintf(&b, " CustomField%d: %v", i, v)
	}
	b.WriteByte(']')
	return b.String()
}

// Parse reads the textual form produced by String back into a Sample.
// It reads each labeled value in order between '[' and ']', so the
// round-trip property parse(format(s)) == s holds for every field
// including the Inconsistent flag.
func Parse(s string) (Sample, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return Sample{}, fmt.Errorf("sample: malformed text %q: missing brackets", s)
	}
	inner := s[1 : len(s)-1]
	fields := strings.Fields(inner)

	labels := []string{"Inconsistent:", "Load:", "Throughput:", "Latency:", "NumTasks:"}
	for i := 0; i < NumCustomFields; i++ {
		labels = append(labels, fmt.Sprintf("CustomField%d:", i))
	}

	values := make([]string, 0, len(labels))
	idx := 0
	for i := 0; i+1 < len(fields); i += 2 {
		if idx >= len(labels) {
			break
		}
		if fields[i] != labels[idx] {
			return Sample{}, fmt.Errorf("sample: malformed text %q: expected label %q, got %q", s, labels[idx], fields[i])
		}
		values = append(values, fields[i+1])
		idx++
	}
	if len(values) != len(labels) {
		return Sample{}, fmt.Errorf("sample: malformed text %q: expected %d fields, got %d", s, len(labels), len(values))
	}

	var out Sample
	inc, err := strconv.ParseBool(values[0])
	if err != nil {
		return Sample{}, fmt.Errorf("sample: parsing Inconsistent: %w", err)
	}
	out.Inconsistent = inc

	floats := make([]float64, len(values)-1)
	for i, v := range values[1:] {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Sample{}, fmt.Errorf("sample: parsing field %d: %w", i, err)
		}
		floats[i] = f
	}
	out.LoadPercentage = floats[0]
	out.Throughput = floats[1]
	out.Latency = floats[2]
	out.NumTasks = floats[3]
	copy(out.CustomFields[:], floats[4:])
	return out, nil
}

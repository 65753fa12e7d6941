// Package channel implements the bidirectional, connectionless,
// message-framed transport described in spec.md §6: a paired socket
// addressed by a URI, where one side binds (Monitor) and the other
// connects (Application), and each logical operation sends exactly one
// fixed-size frame.
package channel

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/bc-dunia/nanotick/internal/sample"
)

// Type enumerates the five message kinds in spec.md §6.
type Type uint32

const (
	Start Type = iota
	SampleReq
	SampleRes
	Stop
	StopAck
)

func (t Type) String() string {
	switch t {
	case Start:
		return "START"
	case SampleReq:
		return "SAMPLE_REQ"
	case SampleRes:
		return "SAMPLE_RES"
	case Stop:
		return "STOP"
	case StopAck:
		return "STOPACK"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint32(t))
	}
}

// wireSample mirrors sample.Sample field-for-field; kept as a distinct
// type (rather than embedding sample.Sample) so the wire layout is
// insulated from any future change to the sample package's own method
// set or field order.
type wireSample struct {
	Inconsistent   bool
	LoadPercentage float64
	Throughput     float64
	Latency        float64
	NumTasks       float64
	CustomFields   [sample.NumCustomFields]float64
}

func fromSample(s sample.Sample) wireSample {
	return wireSample{
		Inconsistent:   s.Inconsistent,
		LoadPercentage: s.LoadPercentage,
		Throughput:     s.Throughput,
		Latency:        s.Latency,
		NumTasks:       s.NumTasks,
		CustomFields:   s.CustomFields,
	}
}

func (w wireSample) toSample() sample.Sample {
	return sample.Sample{
		Inconsistent:   w.Inconsistent,
		LoadPercentage: w.LoadPercentage,
		Throughput:     w.Throughput,
		Latency:        w.Latency,
		NumTasks:       w.NumTasks,
		CustomFields:   w.CustomFields,
	}
}

// Frame is the fixed-size struct wire-compatible with spec.md §6: the
// payload is a raw union of fields of different widths, selected by
// Type. Every variant encodes to the same frame size since every field
// is always present on the wire, just ignored when Type doesn't select
// it — this is simpler than a tagged union and keeps both peers' framing
// code identical regardless of message kind, at the cost of a few spare
// bytes per frame (irrelevant at one frame per sample request).
type Frame struct {
	Type Type

	// PhaseID and TotalThreads are valid on SAMPLE_RES.
	PhaseID      uint32
	TotalThreads uint32

	// StartPID is the Application's process identifier, valid on START.
	StartPID uint32

	// SampleReqFromAllThreads is valid on SAMPLE_REQ.
	SampleReqFromAllThreads bool

	// StopExecutionTimeMs and StopTotalTasks are valid on STOP.
	StopExecutionTimeMs uint64
	StopTotalTasks      uint64

	// ResSample is valid on SAMPLE_RES.
	ResSample wireSample
}

// NewStart builds a START frame.
func NewStart(pid uint32) Frame {
	return Frame{Type: Start, StartPID: pid}
}

// NewSampleReq builds a SAMPLE_REQ frame.
func NewSampleReq(fromAllThreads bool) Frame {
	return Frame{Type: SampleReq, SampleReqFromAllThreads: fromAllThreads}
}

// NewSampleRes builds a SAMPLE_RES frame.
func NewSampleRes(s sample.Sample, phaseID, totalThreads uint32) Frame {
	return Frame{Type: SampleRes, PhaseID: phaseID, TotalThreads: totalThreads, ResSample: fromSample(s)}
}

// NewStop builds a STOP frame.
func NewStop(executionTimeMs, totalTasks uint64) Frame {
	return Frame{Type: Stop, StopExecutionTimeMs: executionTimeMs, StopTotalTasks: totalTasks}
}

// NewStopAck builds a STOPACK frame.
func NewStopAck() Frame {
	return Frame{Type: StopAck}
}

// Sample extracts the Sample from a SAMPLE_RES frame.
func (f Frame) Sample() sample.Sample {
	return f.ResSample.toSample()
}

// frameSize is computed once from a zero-value Frame's encoding so the
// transports can validate short reads/writes without hand-maintaining a
// constant.
var frameSize = func() int {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.NativeEndian, Frame{}); err != nil {
		panic("channel: frame is not fixed-size binary encodable: " + err.Error())
	}
	return buf.Len()
}()

// FrameSize returns the fixed number of bytes every encoded Frame
// occupies on the wire.
func FrameSize() int {
	return frameSize
}

// Encode writes f to its fixed-size, host-endian binary wire form.
func Encode(f Frame) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(frameSize)
	if err := binary.Write(&buf, binary.NativeEndian, f); err != nil {
		return nil, fmt.Errorf("channel: encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a fixed-size, host-endian binary frame. It returns an
// error if b is not exactly FrameSize() bytes — a short read/write is a
// protocol violation per spec.md §7.
func Decode(b []byte) (Frame, error) {
	if len(b) != frameSize {
		return Frame{}, fmt.Errorf("channel: short frame: got %d bytes, want %d", len(b), frameSize)
	}
	var f Frame
	if err := binary.Read(bytes.NewReader(b), binary.NativeEndian, &f); err != nil {
		return Frame{}, fmt.Errorf("channel: decode frame: %w", err)
	}
	return f, nil
}

// Package monitor implements the Monitor side of nanotick: the process
// that binds the channel, waits for the Application's START, and drives
// the sample-request loop described in spec.md §4.5.
package monitor

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bc-dunia/nanotick/internal/apperr"
	"github.com/bc-dunia/nanotick/internal/channel"
	"github.com/bc-dunia/nanotick/internal/nanolog"
	"github.com/bc-dunia/nanotick/internal/sample"
)

// Monitor is the server endpoint of the channel: it binds, per spec.md
// §4.5, while the Application connects.
type Monitor struct {
	conn   channel.Conn
	logger *nanolog.Logger

	phaseID      uint32
	totalThreads uint32

	executionTimeMs float64
	totalTasks      uint64
}

// New binds channelURI and returns a Monitor ready for WaitStart.
func New(channelURI string) (*Monitor, error) {
	conn, err := channel.Bind(channelURI)
	if err != nil {
		return nil, err
	}
	return &Monitor{conn: conn, logger: nanolog.New(channelURI)}, nil
}

// NewWithConn wraps a pre-bound connection.
func NewWithConn(conn channel.Conn) *Monitor {
	return &Monitor{conn: conn, logger: nanolog.New("borrowed")}
}

// WaitStart blocks for the Application's one-time START message and
// returns its process identifier.
func (m *Monitor) WaitStart() (uint32, error) {
	frame, err := m.conn.Recv()
	if err != nil {
		return 0, apperr.NewProtocolError("WaitStart", "failed to receive START", err)
	}
	if frame.Type != channel.Start {
		return 0, apperr.NewProtocolError("WaitStart", "expected START, got "+frame.Type.String(), nil)
	}
	return frame.StartPID, nil
}

// GetSample requests one sample. It returns (sample, true, nil) on a
// normal SAMPLE_RES, or (zero, false, nil) once the Application has
// sent STOP — at which point GetExecutionTime/GetTotalTasks become
// valid and the Monitor has replied with STOPACK. Any other frame type
// is a protocol violation.
func (m *Monitor) GetSample() (sample.Sample, bool, error) {
	if err := m.conn.Send(channel.NewSampleReq(true)); err != nil {
		return sample.Sample{}, false, apperr.NewProtocolError("GetSample", "failed to send SAMPLE_REQ", err)
	}

	frame, err := m.conn.Recv()
	if err != nil {
		return sample.Sample{}, false, apperr.NewProtocolError("GetSample", "failed to receive reply", err)
	}

	switch frame.Type {
	case channel.SampleRes:
		m.phaseID = frame.PhaseID
		m.totalThreads = frame.TotalThreads
		return frame.Sample(), true, nil
	case channel.Stop:
		m.executionTimeMs = float64(frame.StopExecutionTimeMs)
		m.totalTasks = frame.StopTotalTasks
		if err := m.conn.Send(channel.NewStopAck()); err != nil {
			return sample.Sample{}, false, apperr.NewProtocolError("GetSample", "failed to send STOPACK", err)
		}
		m.logger.LogTerminate(m.executionTimeMs, m.totalTasks)
		return sample.Sample{}, false, nil
	default:
		return sample.Sample{}, false, apperr.NewProtocolError("GetSample", "unexpected frame type "+frame.Type.String(), nil)
	}
}

// GetExecutionTime returns the execution time in milliseconds reported
// by STOP. Valid only after GetSample has returned ok=false.
func (m *Monitor) GetExecutionTime() float64 {
	return m.executionTimeMs
}

// GetTotalTasks returns the total task count reported by STOP. Valid
// only after GetSample has returned ok=false.
func (m *Monitor) GetTotalTasks() uint64 {
	return m.totalTasks
}

// GetPhaseID returns the phase identifier from the most recent
// SAMPLE_RES.
func (m *Monitor) GetPhaseID() uint32 {
	return m.phaseID
}

// GetTotalThreads returns the logical thread count from the most recent
// SAMPLE_RES.
func (m *Monitor) GetTotalThreads() uint32 {
	return m.totalThreads
}

// Close tears down the underlying channel.
func (m *Monitor) Close() error {
	return m.conn.Close()
}

// Reconnect rebinds channelURI with exponential backoff, for long-lived
// Monitor processes that outlive a single Application's lifetime (e.g.
// a dashboard that attaches to successive runs on the same URI).
func Reconnect(ctx context.Context, channelURI string) (*Monitor, error) {
	var m *Monitor
	op := func() error {
		bound, err := New(channelURI)
		if err != nil {
			return err
		}
		m = bound
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, apperr.NewProtocolError("Reconnect", "failed to bind "+channelURI, err)
	}
	return m, nil
}

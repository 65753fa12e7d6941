// Package nanolog provides structured logging for nanotick's ambient
// concerns (state transitions, dropped replies, transport errors). The
// hot path calls into it only from begin: once for the START emission,
// and when a slot's consolidated sample is marked inconsistent.
package nanolog

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// Logger wraps slog with a fixed set of base attributes, matching the
// shape of an event logger that tags every line with the identifiers
// that let a reader correlate log lines across a run.
type Logger struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	channel string
	phaseID uint32
}

// New creates a Logger with JSON output to stdout.
func New(channelURI string) *Logger {
	return NewWithWriter(channelURI, os.Stdout)
}

// NewWithWriter creates a Logger with JSON output to an arbitrary writer,
// useful for tests.
func NewWithWriter(channelURI string, w io.Writer) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &Logger{
		logger:  slog.New(handler),
		channel: channelURI,
	}
}

// SetPhaseID updates the phase_id attribute attached to future log lines.
func (l *Logger) SetPhaseID(id uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.phaseID = id
}

func (l *Logger) attrs() []any {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return []any{"channel", l.channel, "phase_id", l.phaseID}
}

// LogStateTransition logs an Application state machine transition.
// event: "state_transition"
func (l *Logger) LogStateTransition(from, to string) {
	l.logger.Info("state_transition", append(l.attrs(), "from", from, "to", to)...)
}

// LogStart logs the single START emission.
// event: "start_emitted"
func (l *Logger) LogStart(pid uint32) {
	l.logger.Info("start_emitted", append(l.attrs(), "pid", pid)...)
}

// LogSampleReplyDropped logs a SAMPLE_RES that was dropped because
// supportStop was raised while the reply was being assembled.
// event: "sample_reply_dropped"
func (l *Logger) LogSampleReplyDropped() {
	l.logger.Warn("sample_reply_dropped", l.attrs()...)
}

// LogInconsistentSample logs a slot whose consolidated sample was marked
// inconsistent due to measured/estimated window-time skew.
// event: "sample_inconsistent"
func (l *Logger) LogInconsistentSample(threadID uint32, skewPercent float64) {
	l.logger.Warn("sample_inconsistent", append(l.attrs(), "thread_id", threadID, "skew_percent", skewPercent)...)
}

// LogTerminate logs the termination handshake completing.
// event: "terminated"
func (l *Logger) LogTerminate(executionTimeMs float64, totalTasks uint64) {
	l.logger.Info("terminated", append(l.attrs(), "execution_time_ms", executionTimeMs, "total_tasks", totalTasks)...)
}

// LogProtocolError logs a fatal protocol violation (unexpected frame type,
// short read/write).
func (l *Logger) LogProtocolError(op string, err error) {
	l.logger.Error("protocol_error", append(l.attrs(), "op", op, "error", err.Error())...)
}

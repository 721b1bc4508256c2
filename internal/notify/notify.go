package notify

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	// LevelAlert is a blocking notice the user must acknowledge.
	LevelAlert Level = "alert"
)

type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Reporter is the user-facing notification side-channel.
type Reporter interface {
	NotifySuccess(message string)
	NotifyError(message string)
	Alert(message string)
}

type LogReporter struct {
	logger *zap.Logger
}

func NewLogReporter(logger *zap.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (r *LogReporter) NotifySuccess(message string) {
	r.logger.Info(message, zap.String("notice", string(LevelSuccess)))
}

func (r *LogReporter) NotifyError(message string) {
	r.logger.Warn(message, zap.String("notice", string(LevelError)))
}

func (r *LogReporter) Alert(message string) {
	r.logger.Error(message, zap.String("notice", string(LevelAlert)))
}

type multiReporter []Reporter

// Multi fans every notice out to all reporters, in order.
func Multi(reporters ...Reporter) Reporter {
	return multiReporter(reporters)
}

func (m multiReporter) NotifySuccess(message string) {
	for _, r := range m {
		r.NotifySuccess(message)
	}
}

func (m multiReporter) NotifyError(message string) {
	for _, r := range m {
		r.NotifyError(message)
	}
}

func (m multiReporter) Alert(message string) {
	for _, r := range m {
		r.Alert(message)
	}
}

// Recorder keeps every notice in memory. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) record(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, Notice{Level: level, Message: message, At: time.Now()})
}

func (r *Recorder) NotifySuccess(message string) { r.record(LevelSuccess, message) }

func (r *Recorder) NotifyError(message string) { r.record(LevelError, message) }

func (r *Recorder) Alert(message string) { r.record(LevelAlert, message) }

func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Messages returns the messages recorded at level, oldest first.
func (r *Recorder) Messages(level Level) []string {
	var out []string
	for _, n := range r.Notices() {
		if n.Level == level {
			out = append(out, n.Message)
		}
	}
	return out
}

// WriterReporter prints notices as plain lines, for terminals.
type WriterReporter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterReporter(w io.Writer) *WriterReporter {
	return &WriterReporter{w: w}
}

func (r *WriterReporter) write(prefix, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s%s\n", prefix, message)
}

func (r *WriterReporter) NotifySuccess(message string) { r.write("", message) }

func (r *WriterReporter) NotifyError(message string) { r.write("error: ", message) }

func (r *WriterReporter) Alert(message string) { r.write("!! ", message) }

// Package severity triages worker stderr lines.
//
// The worker logs everything, informational or not, to stderr, so stream
// identity says nothing about severity. A line is Elevated when its lowercase
// form contains one of a fixed set of keywords; otherwise it is Normal. False
// positives and negatives are accepted.
package severity

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Severity is the triage level of a diagnostic line.
type Severity int

const (
	Normal Severity = iota
	Elevated
)

func (s Severity) String() string {
	if s == Elevated {
		return "elevated"
	}
	return "normal"
}

// Keywords that mark a line as Elevated. Matching is case-insensitive.
var Keywords = []string{"error", "failed", "exception"}

// Classify returns the severity of one line.
func Classify(line string) Severity {
	lower := strings.ToLower(line)
	for _, kw := range Keywords {
		if strings.Contains(lower, kw) {
			return Elevated
		}
	}
	return Normal
}

// Diagnostic is one classified worker line. Line is kept verbatim.
type Diagnostic struct {
	Line     string
	Severity Severity
	At       time.Time
}

// Sink receives classified diagnostics. Emit is called from the stderr reader
// and must not block for long.
type Sink interface {
	Emit(d Diagnostic)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Diagnostic)

func (f SinkFunc) Emit(d Diagnostic) { f(d) }

// LogSink writes diagnostics to slog: Normal at Info, Elevated at Error.
type LogSink struct {
	Log *slog.Logger
}

func (s LogSink) Emit(d Diagnostic) {
	level := slog.LevelInfo
	if d.Severity == Elevated {
		level = slog.LevelError
	}
	s.Log.Log(context.Background(), level, d.Line, "stream", "stderr", "severity", d.Severity.String())
}

// Classifier fans classified lines out to its sinks.
type Classifier struct {
	mu    sync.RWMutex
	sinks []Sink

	elevated int
	total    int
}

// NewClassifier returns a classifier forwarding to sinks.
func NewClassifier(sinks ...Sink) *Classifier {
	return &Classifier{sinks: sinks}
}

// AddSink attaches another sink.
func (c *Classifier) AddSink(s Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, s)
}

// Consume classifies line and forwards it.
func (c *Classifier) Consume(line string) Diagnostic {
	d := Diagnostic{Line: line, Severity: Classify(line), At: time.Now()}

	c.mu.Lock()
	c.total++
	if d.Severity == Elevated {
		c.elevated++
	}
	sinks := c.sinks
	c.mu.Unlock()

	for _, s := range sinks {
		s.Emit(d)
	}
	return d
}

// Counts returns how many lines were seen and how many were Elevated.
func (c *Classifier) Counts() (total, elevated int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.total, c.elevated
}

package ui

import (
	"sync"

	"github.com/harshul/vidnote/internal/severity"
)

// Diagnostics collects classified worker stderr for display. It implements
// severity.Sink, so it can be handed to the shell before the app model
// exists.
type Diagnostics struct {
	buffer  *LogBuffer
	updates chan severity.Diagnostic
}

// NewDiagnostics keeps the last maxLines diagnostics.
func NewDiagnostics(maxLines int) *Diagnostics {
	return &Diagnostics{
		buffer:  NewLogBuffer(maxLines),
		updates: make(chan severity.Diagnostic, 100),
	}
}

// Emit implements severity.Sink. It never blocks the stderr reader; when the
// UI lags the line is still buffered, only the wake-up is dropped.
func (d *Diagnostics) Emit(diag severity.Diagnostic) {
	d.buffer.Append(diag)
	select {
	case d.updates <- diag:
	default:
	}
}

// Updates signals new diagnostics.
func (d *Diagnostics) Updates() <-chan severity.Diagnostic {
	return d.updates
}

// Lines returns the buffered diagnostics, oldest first.
func (d *Diagnostics) Lines() []severity.Diagnostic {
	return d.buffer.GetAll()
}

// LogBuffer provides a simple ring buffer for diagnostics
type LogBuffer struct {
	lines    []severity.Diagnostic
	maxLines int
	mu       sync.RWMutex
}

// NewLogBuffer creates a new log buffer
func NewLogBuffer(maxLines int) *LogBuffer {
	if maxLines < 1 {
		maxLines = 1
	}
	return &LogBuffer{
		lines:    make([]severity.Diagnostic, 0, maxLines),
		maxLines: maxLines,
	}
}

// Append adds a line to the buffer
func (lb *LogBuffer) Append(d severity.Diagnostic) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if len(lb.lines) >= lb.maxLines {
		// Remove oldest line
		copy(lb.lines, lb.lines[1:])
		lb.lines = lb.lines[:len(lb.lines)-1]
	}
	lb.lines = append(lb.lines, d)
}

// GetAll returns all lines in the buffer
func (lb *LogBuffer) GetAll() []severity.Diagnostic {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	result := make([]severity.Diagnostic, len(lb.lines))
	copy(result, lb.lines)
	return result
}

// GetLast returns the last n lines
func (lb *LogBuffer) GetLast(n int) []severity.Diagnostic {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if n >= len(lb.lines) {
		result := make([]severity.Diagnostic, len(lb.lines))
		copy(result, lb.lines)
		return result
	}

	start := len(lb.lines) - n
	result := make([]severity.Diagnostic, n)
	copy(result, lb.lines[start:])
	return result
}

// Clear clears all lines from the buffer
func (lb *LogBuffer) Clear() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.lines = lb.lines[:0]
}

// Len returns the number of lines in the buffer
func (lb *LogBuffer) Len() int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return len(lb.lines)
}

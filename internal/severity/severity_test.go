package severity

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		line string
		want Severity
	}{
		{"[INIT] Python version: 3.10.11", Normal},
		{"ERROR: ffmpeg not installed", Elevated},
		{"Server startup failed", Elevated},
		{"Traceback: ValueError exception raised", Elevated},
		{"level=INFO msg=\"request\" path=/health", Normal},
		{"GET /api/error-page 200", Elevated},
		{"panic: runtime error", Elevated},
		{"fatal: something bad", Normal},
		{"", Normal},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.line))
		})
	}
}

func TestClassifierForwardsOriginalLine(t *testing.T) {
	var got []Diagnostic
	c := NewClassifier(SinkFunc(func(d Diagnostic) { got = append(got, d) }))

	c.Consume("ERROR: Simulated Crash")
	c.Consume("worker ready")

	if assert.Len(t, got, 2) {
		assert.Equal(t, "ERROR: Simulated Crash", got[0].Line)
		assert.Equal(t, Elevated, got[0].Severity)
		assert.Equal(t, Normal, got[1].Severity)
		assert.False(t, got[0].At.IsZero())
	}

	total, elevated := c.Counts()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, elevated)
}

func TestClassifierAddSink(t *testing.T) {
	c := NewClassifier()
	count := 0
	c.AddSink(SinkFunc(func(Diagnostic) { count++ }))
	c.AddSink(SinkFunc(func(Diagnostic) { count++ }))

	c.Consume("hello")
	assert.Equal(t, 2, count)
}

func TestLogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Log: slog.New(slog.NewTextHandler(&buf, nil))}

	sink.Emit(Diagnostic{Line: "download failed", Severity: Elevated})
	sink.Emit(Diagnostic{Line: "worker ready", Severity: Normal})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if assert.Len(t, lines, 2) {
		assert.Contains(t, lines[0], "level=ERROR")
		assert.Contains(t, lines[0], "severity=elevated")
		assert.Contains(t, lines[1], "level=INFO")
	}
}

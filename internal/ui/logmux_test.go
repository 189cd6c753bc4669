package ui

import (
	"strconv"
	"testing"
	"time"

	"github.com/harshul/vidnote/internal/severity"
)

func diag(line string) severity.Diagnostic {
	return severity.Diagnostic{Line: line, Severity: severity.Classify(line), At: time.Now()}
}

func TestLogBuffer(t *testing.T) {
	lb := NewLogBuffer(5)

	for i := 0; i < 3; i++ {
		lb.Append(diag("line"))
	}

	if lb.Len() != 3 {
		t.Errorf("expected length 3, got %d", lb.Len())
	}

	for i := 0; i < 5; i++ {
		lb.Append(diag("overflow " + strconv.Itoa(i)))
	}

	if lb.Len() != 5 {
		t.Errorf("expected max length 5, got %d", lb.Len())
	}

	last := lb.GetLast(2)
	if len(last) != 2 {
		t.Fatalf("expected 2 items, got %d", len(last))
	}
	if last[1].Line != "overflow 4" {
		t.Errorf("expected newest line last, got %q", last[1].Line)
	}

	lb.Clear()
	if lb.Len() != 0 {
		t.Errorf("expected length 0 after clear, got %d", lb.Len())
	}
}

func TestDiagnosticsEmitNeverBlocks(t *testing.T) {
	d := NewDiagnostics(3)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			d.Emit(diag("ERROR: line " + strconv.Itoa(i)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked with nobody reading")
	}

	lines := d.Lines()
	if len(lines) != 3 {
		t.Fatalf("expected 3 buffered lines, got %d", len(lines))
	}
	if lines[2].Line != "ERROR: line 499" {
		t.Errorf("expected newest line kept, got %q", lines[2].Line)
	}
	if lines[2].Severity != severity.Elevated {
		t.Errorf("expected elevated severity, got %s", lines[2].Severity)
	}
}

func TestDiagnosticsIsSink(t *testing.T) {
	var _ severity.Sink = NewDiagnostics(1)

	d := NewDiagnostics(10)
	c := severity.NewClassifier(d)
	c.Consume("[INIT] worker starting")

	select {
	case got := <-d.Updates():
		if got.Line != "[INIT] worker starting" {
			t.Errorf("unexpected line %q", got.Line)
		}
	default:
		t.Fatal("expected an update")
	}
}

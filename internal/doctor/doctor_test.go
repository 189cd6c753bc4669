package doctor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiagnoseMissingWorker(t *testing.T) {
	d := Diagnose(filepath.Join(t.TempDir(), "no-such-worker"))

	if d.Healthy {
		t.Error("expected unhealthy diagnosis for a missing worker")
	}
	if len(d.Issues) != 1 {
		t.Errorf("expected 1 issue, got %d: %v", len(d.Issues), d.Issues)
	}
	if d.Worker.Installed {
		t.Error("worker should not be reported as installed")
	}
}

func TestDiagnoseExistingWorker(t *testing.T) {
	exe, err := os.Executable()
	if err != nil {
		t.Skipf("cannot resolve test executable: %v", err)
	}

	d := Diagnose(exe)
	if !d.Healthy {
		t.Errorf("expected healthy diagnosis, issues: %v", d.Issues)
	}
	if !d.Worker.Installed || d.Worker.Path != exe {
		t.Errorf("unexpected worker status: %+v", d.Worker)
	}

	// Missing tools only produce warnings.
	if !d.FFmpeg.Installed && len(d.Warnings) == 0 {
		t.Error("missing ffmpeg should produce a warning")
	}
}

func TestCheckWorkerRejectsDirectory(t *testing.T) {
	status := checkWorker(t.TempDir())
	if status.Installed {
		t.Error("a directory is not a worker executable")
	}
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ffmpeg version 6.1\nbuilt with gcc", "ffmpeg version 6.1"},
		{"2024.08.06", "2024.08.06"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := firstLine(tt.in); got != tt.want {
			t.Errorf("firstLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

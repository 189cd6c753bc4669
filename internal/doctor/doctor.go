// Package doctor checks the external tools a download depends on.
package doctor

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ToolStatus represents the status of an external tool
type ToolStatus struct {
	Name      string
	Installed bool
	Version   string
	Path      string
	Hint      string // how to fix a missing tool
}

// Diagnosis contains the full health check results
type Diagnosis struct {
	YTDLP    ToolStatus
	FFmpeg   ToolStatus
	Worker   ToolStatus
	Healthy  bool
	Issues   []string // block downloads
	Warnings []string // degrade downloads
}

// Diagnose checks yt-dlp, ffmpeg and the worker executable.
// A missing ffmpeg only warns: single-file formats still download.
func Diagnose(workerPath string) Diagnosis {
	d := Diagnosis{
		YTDLP:   checkYTDLP(),
		FFmpeg:  checkFFmpeg(),
		Worker:  checkWorker(workerPath),
		Healthy: true,
	}

	if !d.Worker.Installed {
		d.Healthy = false
		d.Issues = append(d.Issues, "worker executable not found at "+workerPath)
	}
	if !d.YTDLP.Installed {
		d.Warnings = append(d.Warnings, d.YTDLP.Hint)
	}
	if !d.FFmpeg.Installed {
		d.Warnings = append(d.Warnings, d.FFmpeg.Hint)
	}

	return d
}

// LocateFFmpeg looks next to the running executable first (bundled builds),
// then on PATH.
func LocateFFmpeg() (string, bool) {
	return locate("ffmpeg")
}

// LocateYTDLP finds yt-dlp the same way as ffmpeg.
func LocateYTDLP() (string, bool) {
	return locate("yt-dlp")
}

func locate(name string) (string, bool) {
	if runtime.GOOS == "windows" {
		name += ".exe"
	}

	if exe, err := os.Executable(); err == nil {
		bundled := filepath.Join(filepath.Dir(exe), name)
		if info, err := os.Stat(bundled); err == nil && !info.IsDir() {
			return bundled, true
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, true
	}
	return "", false
}

// checkYTDLP checks if yt-dlp is installed
func checkYTDLP() ToolStatus {
	status := ToolStatus{
		Name: "yt-dlp",
		Hint: "yt-dlp not found; the worker will download a managed copy on first use",
	}
	path, ok := LocateYTDLP()
	if !ok {
		return status
	}
	status.Installed = true
	status.Path = path
	status.Version = toolVersion(path, "--version")
	return status
}

// checkFFmpeg checks if ffmpeg is installed
func checkFFmpeg() ToolStatus {
	status := ToolStatus{
		Name: "ffmpeg",
		Hint: "ffmpeg not found; separate audio and video streams cannot be merged (install ffmpeg or place it next to vidnote)",
	}
	path, ok := LocateFFmpeg()
	if !ok {
		return status
	}
	status.Installed = true
	status.Path = path
	status.Version = firstLine(toolVersion(path, "-version"))
	return status
}

// checkWorker checks that the worker executable exists
func checkWorker(path string) ToolStatus {
	status := ToolStatus{Name: "worker", Path: path}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return status
	}
	status.Installed = true
	return status
}

func toolVersion(path string, arg string) string {
	output, err := exec.Command(path, arg).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(output))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

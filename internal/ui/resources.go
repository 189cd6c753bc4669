package ui

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/harshul/vidnote/internal/supervisor"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceStats holds system and worker resource information
type ResourceStats struct {
	CPUPercent  float64
	MemoryUsed  uint64
	MemoryTotal uint64
	MemPercent  float64

	Worker   supervisor.Stats
	WorkerUp bool
}

// workerSampler is the part of the shell that can report worker usage.
type workerSampler interface {
	WorkerStats() (supervisor.Stats, error)
}

// GetResourceStats fetches current system statistics and, when the worker is
// running, its own usage.
func GetResourceStats(shell workerSampler) ResourceStats {
	var stats ResourceStats

	cpuPercent, err := cpu.Percent(0, false)
	if err == nil && len(cpuPercent) > 0 {
		stats.CPUPercent = cpuPercent[0]
	}

	memInfo, err := mem.VirtualMemory()
	if err == nil {
		stats.MemoryUsed = memInfo.Used
		stats.MemoryTotal = memInfo.Total
		stats.MemPercent = memInfo.UsedPercent
	}

	if shell != nil {
		if ws, err := shell.WorkerStats(); err == nil {
			stats.Worker = ws
			stats.WorkerUp = true
		}
	}

	return stats
}

// FormatBytes formats bytes into a human-readable string
func FormatBytes(bytes uint64) string {
	return humanize.IBytes(bytes)
}

// FormatSpeed formats a transfer rate in bytes per second.
func FormatSpeed(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(bytesPerSec)) + "/s"
}

// FormatETA formats remaining seconds, "-" when unknown.
func FormatETA(seconds int) string {
	if seconds <= 0 {
		return "-"
	}
	return (time.Duration(seconds) * time.Second).String()
}

// FormatWorkerStats renders the worker line of the resource monitor.
func FormatWorkerStats(s ResourceStats) string {
	if !s.WorkerUp {
		return "worker: not running"
	}
	return fmt.Sprintf("worker pid %d  cpu %.1f%%  rss %s  threads %d  children %d",
		s.Worker.PID, s.Worker.CPUPercent, FormatBytes(s.Worker.RSSBytes), s.Worker.Threads, s.Worker.Children)
}

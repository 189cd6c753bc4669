// Package thermal sizes the worker's download pool. Each download ends in an
// ffmpeg merge, which is CPU-heavy, so fanless machines get fewer slots.
package thermal

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// MaxDownloadConcurrency caps the automatic pool size.
const MaxDownloadConcurrency = 4

// HardwareInfo contains detected hardware information
type HardwareInfo struct {
	NumCPU         int
	IsDarwin       bool
	IsMacBookAir   bool
	IsAppleSilicon bool
	ModelName      string
}

// DetectHardware detects the current hardware configuration
func DetectHardware() HardwareInfo {
	info := HardwareInfo{
		NumCPU:   runtime.NumCPU(),
		IsDarwin: runtime.GOOS == "darwin",
	}

	if info.IsDarwin {
		info.ModelName = detectMacModel()
		info.IsMacBookAir = strings.Contains(strings.ToLower(info.ModelName), "macbook air")
		info.IsAppleSilicon = detectAppleSilicon()
	}

	return info
}

// detectMacModel returns the Mac model identifier
func detectMacModel() string {
	cmd := exec.Command("sysctl", "-n", "hw.model")
	output, err := cmd.Output()
	if err != nil {
		// Fallback: try to get marketing name
		cmd = exec.Command("system_profiler", "SPHardwareDataType")
		output, err = cmd.Output()
		if err != nil {
			return ""
		}
		for _, line := range strings.Split(string(output), "\n") {
			if strings.Contains(line, "Model Name:") {
				parts := strings.SplitN(line, ":", 2)
				if len(parts) == 2 {
					return strings.TrimSpace(parts[1])
				}
			}
		}
		return ""
	}
	return strings.TrimSpace(string(output))
}

// detectAppleSilicon checks if the Mac has Apple Silicon
func detectAppleSilicon() bool {
	if runtime.GOARCH == "arm64" {
		return true
	}

	cmd := exec.Command("sysctl", "-n", "machdep.cpu.brand_string")
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(output)), "apple")
}

// GetOptimalConcurrency returns how many downloads may run at once.
// A positive configured value always wins.
func GetOptimalConcurrency(hw HardwareInfo, configConcurrency int) int {
	if configConcurrency > 0 {
		return configConcurrency
	}

	optimal := hw.NumCPU / 4
	if optimal < 1 {
		optimal = 1
	}
	if optimal > MaxDownloadConcurrency {
		optimal = MaxDownloadConcurrency
	}

	// MacBook Air has passive cooling; parallel merges throttle it quickly.
	if hw.IsMacBookAir && optimal > 2 {
		optimal = 2
	}

	return optimal
}

// ThermalStatus represents the current thermal state
type ThermalStatus struct {
	// Level is "cool" or "warm"
	Level   string
	Message string
}

// GetThermalStatus reads pmset on macOS. Other systems always report cool.
func GetThermalStatus(hw HardwareInfo) ThermalStatus {
	status := ThermalStatus{Level: "cool", Message: "System is running cool"}
	if !hw.IsDarwin {
		return status
	}

	output, err := exec.Command("pmset", "-g", "therm").Output()
	if err != nil {
		return status
	}
	return parseThermalOutput(string(output))
}

func parseThermalOutput(output string) ThermalStatus {
	status := ThermalStatus{Level: "cool", Message: "System is running cool"}
	out := strings.ToLower(output)

	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		switch fields[0] {
		case "cpu_speed_limit":
			if fields[1] != "100" {
				status = ThermalStatus{Level: "warm", Message: "CPU is being throttled due to thermal pressure"}
			}
		case "thermal_level":
			if fields[1] != "0" {
				status = ThermalStatus{Level: "warm", Message: "System thermal pressure detected"}
			}
		}
	}
	return status
}

// AdjustForThermal halves concurrency under thermal pressure, never below 1.
func AdjustForThermal(concurrency int, status ThermalStatus) int {
	if status.Level != "warm" {
		return concurrency
	}
	if concurrency/2 < 1 {
		return 1
	}
	return concurrency / 2
}

// FormatHardwareInfo returns a human-readable hardware description
func FormatHardwareInfo(hw HardwareInfo) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("%d cores", hw.NumCPU))

	if hw.IsDarwin {
		if hw.ModelName != "" {
			parts = append(parts, hw.ModelName)
		}
		if hw.IsAppleSilicon {
			parts = append(parts, "Apple Silicon")
		}
	} else {
		parts = append(parts, runtime.GOOS)
	}

	return strings.Join(parts, ", ")
}

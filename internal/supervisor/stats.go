package supervisor

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// Stats is a resource snapshot of the worker process.
type Stats struct {
	PID        int
	CPUPercent float64
	RSSBytes   uint64
	Threads    int32
	Children   int
}

// Stats samples CPU, memory, thread and child counts for the worker.
func (h *WorkerHandle) Stats() (Stats, error) {
	if !h.Alive() {
		return Stats{}, fmt.Errorf("worker %d is not running", h.PID())
	}

	p, err := process.NewProcess(int32(h.PID()))
	if err != nil {
		return Stats{}, fmt.Errorf("inspect worker %d: %w", h.PID(), err)
	}

	stats := Stats{PID: h.PID()}
	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		stats.RSSBytes = mem.RSS
	}
	if n, err := p.NumThreads(); err == nil {
		stats.Threads = n
	}
	if children, err := p.Children(); err == nil {
		stats.Children = len(children)
	}
	return stats, nil
}

// processTree returns pid followed by all of its descendants.
func processTree(pid int) []*process.Process {
	root, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil
	}

	tree := []*process.Process{root}
	for i := 0; i < len(tree); i++ {
		children, err := tree[i].Children()
		if err != nil {
			continue
		}
		tree = append(tree, children...)
	}
	return tree
}

// signalTree terminates (SIGTERM) or kills every process in tree.
// Descendants go first so the worker cannot respawn them.
func signalTree(tree []*process.Process, kill bool) {
	for i := len(tree) - 1; i >= 0; i-- {
		if kill {
			tree[i].Kill()
		} else {
			tree[i].Terminate()
		}
	}
}

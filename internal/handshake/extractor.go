package handshake

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"strings"
)

// Extractor feeds worker stdout lines into a PortOracle.
type Extractor struct {
	oracle *PortOracle
	log    *slog.Logger

	malformed int
}

// NewExtractor returns an extractor publishing into oracle.
func NewExtractor(oracle *PortOracle, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{oracle: oracle, log: log}
}

// Consume handles one line and reports whether it latched the port.
// Malformed announcements are logged and skipped. Announcements after the
// first valid one are ignored.
func (e *Extractor) Consume(line string) bool {
	port, ok, err := ParseAnnouncement(line)
	switch {
	case !ok:
		if strings.TrimSpace(line) != "" {
			e.log.Warn("unexpected output on protocol stream", "line", line)
		}
		return false
	case err != nil:
		e.malformed++
		e.log.Warn("ignoring malformed port announcement", "line", line, "error", err)
		return false
	}

	if !e.oracle.Publish(port) {
		snap := e.oracle.Snapshot()
		e.log.Warn("ignoring repeated port announcement", "port", port, "latched", snap.Port, "state", snap.State)
		return false
	}

	e.log.Info("worker port announced", "port", port)
	return true
}

// Malformed returns how many malformed announcements were skipped.
func (e *Extractor) Malformed() int {
	return e.malformed
}

// Run consumes r line by line until EOF.
func (e *Extractor) Run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		e.Consume(scanner.Text())
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return err
	}
	return nil
}

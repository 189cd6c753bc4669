// Package handshake implements the port announcement protocol between the
// worker and the shell.
//
// The worker writes exactly one line, SERVER_PORT=<port>, to stdout once its
// listener is bound. Everything else it says goes to stderr. The shell scans
// stdout with an Extractor, which latches the first valid port into a
// PortOracle.
package handshake

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Prefix starts every announcement line.
const Prefix = "SERVER_PORT="

// ErrMalformedAnnouncement marks a line that carries the prefix but no usable port.
var ErrMalformedAnnouncement = errors.New("malformed port announcement")

type flusher interface{ Flush() error }

type syncer interface{ Sync() error }

// Announce writes the announcement line for port and flushes w.
// A buffered writer that is never flushed leaves the shell waiting forever.
func Announce(w io.Writer, port uint16) error {
	if port == 0 {
		return fmt.Errorf("%w: refusing to announce port 0", ErrMalformedAnnouncement)
	}
	if _, err := fmt.Fprintf(w, "%s%d\n", Prefix, port); err != nil {
		return fmt.Errorf("write announcement: %w", err)
	}

	switch f := w.(type) {
	case flusher:
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flush announcement: %w", err)
		}
	case syncer:
		// Pipes and terminals reject fsync; the write itself already reached the kernel.
		_ = f.Sync()
	}
	return nil
}

// ParseAnnouncement checks one line of worker stdout.
//
// ok is false for lines without the prefix. Lines with the prefix and a value
// that is not a decimal port in 1..65535 return ErrMalformedAnnouncement.
func ParseAnnouncement(line string) (port uint16, ok bool, err error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, Prefix) {
		return 0, false, nil
	}

	value := strings.TrimSpace(strings.TrimPrefix(line, Prefix))
	if value == "" || strings.TrimLeft(value, "0123456789") != "" {
		return 0, true, fmt.Errorf("%w: %q is not a number", ErrMalformedAnnouncement, value)
	}

	n, err := strconv.ParseUint(value, 10, 16)
	if err != nil {
		return 0, true, fmt.Errorf("%w: %q out of range", ErrMalformedAnnouncement, value)
	}
	if n == 0 {
		return 0, true, fmt.Errorf("%w: port 0", ErrMalformedAnnouncement)
	}
	return uint16(n), true, nil
}

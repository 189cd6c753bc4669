// Package ports claims and binds loopback ports for the worker.
package ports

import (
	"fmt"
	"net"
	"strconv"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// Loopback is the only interface the worker ever binds.
const Loopback = "127.0.0.1"

// BindError is returned when the worker cannot bind its HTTP port.
type BindError struct {
	Port      uint16
	HolderPID int32 // 0 if unknown
	Err       error
}

func (e *BindError) Error() string {
	if e.HolderPID > 0 {
		return fmt.Sprintf("bind %s:%d (held by PID %d): %v", Loopback, e.Port, e.HolderPID, e.Err)
	}
	return fmt.Sprintf("bind %s:%d: %v", Loopback, e.Port, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// Addr returns the loopback host:port for port.
func Addr(port uint16) string {
	return net.JoinHostPort(Loopback, strconv.Itoa(int(port)))
}

// ClaimEphemeral asks the OS for a free loopback port by binding port 0,
// reads the assigned port and releases the socket. Another process may take
// the port before the caller rebinds it; Listen reports that as a BindError.
func ClaimEphemeral() (uint16, error) {
	l, err := net.Listen("tcp", Addr(0))
	if err != nil {
		return 0, fmt.Errorf("claim ephemeral port: %w", err)
	}
	port := uint16(l.Addr().(*net.TCPAddr).Port)
	if err := l.Close(); err != nil {
		return 0, fmt.Errorf("release ephemeral port %d: %w", port, err)
	}
	return port, nil
}

// Listen binds port on the loopback interface.
func Listen(port uint16) (net.Listener, error) {
	l, err := net.Listen("tcp", Addr(port))
	if err != nil {
		return nil, &BindError{Port: port, HolderPID: GetProcessOnPort(port), Err: err}
	}
	return l, nil
}

// IsPortAvailable checks if a loopback port is available for binding
func IsPortAvailable(port uint16) bool {
	l, err := net.Listen("tcp", Addr(port))
	if err != nil {
		return false
	}
	l.Close()
	return true
}

// GetProcessOnPort returns the PID of a process listening on the given port.
// Returns 0 if no process is found or if the lookup fails.
func GetProcessOnPort(port uint16) int32 {
	conns, err := psnet.Connections("tcp")
	if err != nil {
		return 0
	}
	for _, c := range conns {
		if c.Status == "LISTEN" && c.Laddr.Port == uint32(port) {
			return c.Pid
		}
	}
	return 0
}

// GetPortStatus returns a human-readable status of a port
func GetPortStatus(port uint16) string {
	if IsPortAvailable(port) {
		return fmt.Sprintf("Port %d is available", port)
	}
	if pid := GetProcessOnPort(port); pid > 0 {
		return fmt.Sprintf("Port %d is in use by PID %d", port, pid)
	}
	return fmt.Sprintf("Port %d is in use", port)
}

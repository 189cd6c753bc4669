// Package stubworker lets test binaries impersonate a worker process.
//
// A test's TestMain calls MaybeRun first; when the binary was started by
// Command it behaves like the selected scripted worker and exits.
package stubworker

import (
	"fmt"
	"os"
	"time"
)

// EnvVar selects the scripted behaviour.
const EnvVar = "VIDNOTE_STUB_WORKER"

// Scripted behaviours.
const (
	// AnnounceLate sleeps 500ms, announces port 54321, then idles.
	AnnounceLate = "announce-late"
	// ExitOne exits immediately with code 1 and writes nothing.
	ExitOne = "exit-1"
	// CrashLogThenAnnounce writes an error to stderr, then announces 9999.
	CrashLogThenAnnounce = "crash-log-then-announce"
	// Echo writes two stderr lines and one announcement, then exits 3.
	Echo = "echo"
	// Garbage writes a malformed announcement, then a valid one for 5173.
	Garbage = "garbage"
	// Silent idles without writing anything.
	Silent = "silent"
	// AnnounceThenExit announces 7000 and exits 0 after 200ms.
	AnnounceThenExit = "announce-then-exit"
)

// MaybeRun runs the scripted worker if EnvVar is set. It does not return in that case.
func MaybeRun() {
	mode := os.Getenv(EnvVar)
	if mode == "" {
		return
	}
	os.Exit(run(mode))
}

// Command returns the executable and environment that start this test binary
// as a stub worker.
func Command(mode string) (path string, env []string) {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	return exe, append(os.Environ(), EnvVar+"="+mode)
}

func run(mode string) int {
	switch mode {
	case AnnounceLate:
		time.Sleep(500 * time.Millisecond)
		fmt.Fprintln(os.Stdout, "SERVER_PORT=54321")
		idle()
	case ExitOne:
		return 1
	case CrashLogThenAnnounce:
		fmt.Fprintln(os.Stderr, "ERROR: simulated crash")
		fmt.Fprintln(os.Stdout, "SERVER_PORT=9999")
		idle()
	case Echo:
		fmt.Fprintln(os.Stderr, "[INIT] worker starting")
		fmt.Fprintln(os.Stdout, "SERVER_PORT=1111")
		fmt.Fprintln(os.Stderr, "Server startup failed")
		return 3
	case Garbage:
		fmt.Fprintln(os.Stdout, "SERVER_PORT=notanumber")
		fmt.Fprintln(os.Stdout, "SERVER_PORT=5173")
		idle()
	case Silent:
		idle()
	case AnnounceThenExit:
		fmt.Fprintln(os.Stdout, "SERVER_PORT=7000")
		time.Sleep(200 * time.Millisecond)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown stub mode %q\n", mode)
		return 2
	}
	return 0
}

func idle() {
	time.Sleep(time.Minute)
}

// Package bridge implements the half-duplex FIFO transport between the
// driver and the Tcl child process: two named FIFOs for the
// framed messages plus a sentinel FIFO used as the sole signal of child
// death, and a strict send/recv alternation state machine.
package bridge

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tcldrv/tcldrv/internal/protocol"
	"github.com/tcldrv/tcldrv/internal/tclfifo"
)

// ErrChildProcessEarlyExit is raised when the sentinel FIFO signals EOF (the
// child closed its last write end) or a broken pipe is observed while
// writing — the sole, non-recoverable signal of child death seen by the
// transport.
var ErrChildProcessEarlyExit = errors.New("bridge: child process exited early")

// ErrPreconditionViolation is raised when Send is called while the
// transport is waiting to Recv, or vice versa.
var ErrPreconditionViolation = errors.New("bridge: precondition violation")

// State is one of the transport's three states.
type State int

const (
	NotListening State = iota
	WaitForRecv
	WaitForSend
)

func (s State) String() string {
	switch s {
	case NotListening:
		return "NotListening"
	case WaitForRecv:
		return "WaitForRecv"
	case WaitForSend:
		return "WaitForSend"
	default:
		return "Unknown"
	}
}

const openRetryInterval = 10 * time.Millisecond

// Transport owns the three FIFOs (tcl2py, py2tcl, sentinel) in a fresh
// temp directory and enforces strict send/recv alternation.
type Transport struct {
	dir      string
	tcl2py   string
	py2tcl   string
	sentinel string

	state        State
	sentinelFile *os.File
}

// Open creates the temp directory and its three FIFOs and returns a
// Transport in state WaitForRecv. The sentinel FIFO's read end is not
// opened yet — OpenSentinel must be called by the caller after the child
// has been spawned but before the first Recv, matching the ordering the
// handshake requires (the child's blocking open of the sentinel as writer
// must be able to complete before the driver awaits TclHello).
func Open() (*Transport, error) {
	dir, err := os.MkdirTemp("", "tcldrv-")
	if err != nil {
		return nil, fmt.Errorf("bridge: create temp dir: %w", err)
	}

	t := &Transport{
		dir:      dir,
		tcl2py:   filepath.Join(dir, "tcl2py"),
		py2tcl:   filepath.Join(dir, "py2tcl"),
		sentinel: filepath.Join(dir, "sentinel"),
		state:    WaitForRecv,
	}

	for _, path := range []string{t.tcl2py, t.py2tcl, t.sentinel} {
		if err := tclfifo.Mkfifo(path); err != nil {
			os.RemoveAll(dir)
			return nil, err
		}
	}

	return t, nil
}

// Paths returns the three FIFO paths, in the order a child's environment
// expects them (tcl2py, py2tcl, sentinel).
func (t *Transport) Paths() (tcl2py, py2tcl, sentinel string) {
	return t.tcl2py, t.py2tcl, t.sentinel
}

// OpenSentinel opens the sentinel FIFO's read end in non-blocking mode.
// Must be called exactly once, after the child has been spawned.
func (t *Transport) OpenSentinel() error {
	f, err := tclfifo.OpenReadNonBlock(t.sentinel)
	if err != nil {
		return fmt.Errorf("bridge: open sentinel: %w", err)
	}
	t.sentinelFile = f
	return nil
}

// Close unlinks the temp directory and its FIFOs. Safe to call multiple
// times.
func (t *Transport) Close() error {
	t.state = NotListening
	if t.sentinelFile != nil {
		t.sentinelFile.Close()
		t.sentinelFile = nil
	}
	if t.dir == "" {
		return nil
	}
	err := os.RemoveAll(t.dir)
	t.dir = ""
	return err
}

// State returns the transport's current state.
func (t *Transport) State() State {
	return t.state
}

func (t *Transport) sentinelReadable(timeout time.Duration) (bool, error) {
	if t.sentinelFile == nil {
		return false, nil
	}
	fd := int(t.sentinelFile.Fd())
	readable, err := tclfifo.SelectReadable([]int{fd}, timeout)
	if err != nil {
		return false, err
	}
	return len(readable) > 0, nil
}

// Recv waits for one frame on the tcl2py FIFO, decodes it and returns the
// RawMessage. Precondition: State() == WaitForRecv.
func (t *Transport) Recv() (*protocol.RawMessage, error) {
	if t.state != WaitForRecv {
		return nil, fmt.Errorf("%w: Recv called in state %s", ErrPreconditionViolation, t.state)
	}

	readFile, err := tclfifo.OpenReadNonBlock(t.tcl2py)
	if err != nil {
		return nil, fmt.Errorf("bridge: open tcl2py: %w", err)
	}
	defer readFile.Close()

	msg, err := t.recvOnce(readFile)
	if err != nil {
		return nil, err
	}
	t.state = WaitForSend
	return msg, nil
}

func (t *Transport) recvOnce(readFile *os.File) (*protocol.RawMessage, error) {
	readFd := int(readFile.Fd())
	sentinelFd := -1
	if t.sentinelFile != nil {
		sentinelFd = int(t.sentinelFile.Fd())
	}

	for {
		fds := []int{readFd}
		if sentinelFd >= 0 {
			fds = append(fds, sentinelFd)
		}

		readable, err := tclfifo.SelectReadable(fds, -1)
		if err != nil {
			return nil, fmt.Errorf("bridge: select: %w", err)
		}

		sentinelFired := false
		readFdFired := false
		for _, fd := range readable {
			switch fd {
			case sentinelFd:
				sentinelFired = true
			case readFd:
				readFdFired = true
			}
		}

		if sentinelFired {
			return nil, ErrChildProcessEarlyExit
		}

		if !readFdFired {
			continue
		}

		n, err := tclfifo.BytesAvailable(readFile)
		if err != nil {
			return nil, fmt.Errorf("bridge: FIONREAD: %w", err)
		}
		if n == 0 {
			// No writer connected yet despite the readable event (FIFOs
			// report readable/EOF with no writer present) — loop back to
			// select rather than treating this as a real message.
			continue
		}

		if err := tclfifo.ClearNonBlock(readFile); err != nil {
			return nil, fmt.Errorf("bridge: clear non-block: %w", err)
		}

		data, err := io.ReadAll(readFile)
		if err != nil {
			return nil, fmt.Errorf("bridge: read tcl2py: %w", err)
		}

		return protocol.Decode(data)
	}
}

// Send encodes msg and writes it to the py2tcl FIFO. Precondition:
// State() == WaitForSend.
func (t *Transport) Send(msg *protocol.RawMessage) error {
	if t.state != WaitForSend {
		return fmt.Errorf("%w: Send called in state %s", ErrPreconditionViolation, t.state)
	}

	if readable, err := t.sentinelReadable(0); err == nil && readable {
		return ErrChildProcessEarlyExit
	}

	data, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("bridge: encode: %w", err)
	}

	var writeFile *os.File
	for {
		f, err := tclfifo.OpenWriteNonBlock(t.py2tcl)
		if err == nil {
			writeFile = f
			break
		}
		if !errors.Is(err, tclfifo.ErrNoReader) {
			return fmt.Errorf("bridge: open py2tcl: %w", err)
		}

		readable, selErr := t.sentinelReadable(openRetryInterval)
		if selErr != nil {
			return fmt.Errorf("bridge: select while waiting for py2tcl reader: %w", selErr)
		}
		if readable {
			return ErrChildProcessEarlyExit
		}
	}
	defer writeFile.Close()

	if err := tclfifo.ClearNonBlock(writeFile); err != nil {
		return fmt.Errorf("bridge: clear non-block: %w", err)
	}

	if _, err := writeFile.Write(data); err != nil {
		if errors.Is(err, os.ErrClosed) || isBrokenPipe(err) {
			return ErrChildProcessEarlyExit
		}
		return fmt.Errorf("bridge: write py2tcl: %w", err)
	}

	t.state = WaitForRecv
	return nil
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe) || errorIsEPIPE(err)
}

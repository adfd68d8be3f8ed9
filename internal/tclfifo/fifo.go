// Package tclfifo wraps the raw syscalls the bridge transport needs for
// named FIFOs: creation, non-blocking open, byte-availability probing and
// select-based waiting, reaching for golang.org/x/sys/unix directly to
// drive raw fd control instead of a higher-level pipe abstraction.
package tclfifo

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// ErrNoReader is returned by OpenWriteNonBlock when a FIFO has no reader
// yet connected — the specific errno (ENXIO) a non-blocking write-only open
// of a FIFO reports in that case, and the signal callers use to retry.
var ErrNoReader = errors.New("tclfifo: no reader connected")

// Mkfifo creates a named pipe at path with permissions readable/writable
// only by its owner.
func Mkfifo(path string) error {
	if err := unix.Mkfifo(path, 0o600); err != nil {
		return fmt.Errorf("tclfifo: mkfifo %s: %w", path, err)
	}
	return nil
}

// OpenReadNonBlock opens path for reading without blocking until a writer
// connects. The returned file still has O_NONBLOCK set; callers that want
// blocking reads after a writer is detected should call ClearNonBlock.
func OpenReadNonBlock(path string) (*os.File, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("tclfifo: open %s for read: %w", path, err)
	}
	return os.NewFile(uintptr(fd), path), nil
}

// OpenWriteNonBlock opens path for writing without blocking. If no reader
// is currently connected, it returns ErrNoReader itself (in place of the
// underlying ENXIO, not wrapping it) so the caller can retry after a short
// wait.
func OpenWriteNonBlock(path string) (*os.File, error) {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		if errors.Is(err, unix.ENXIO) {
			return nil, ErrNoReader
		}
		return nil, fmt.Errorf("tclfifo: open %s for write: %w", path, err)
	}
	return os.NewFile(uintptr(fd), path), nil
}

// ClearNonBlock removes O_NONBLOCK from f so subsequent reads/writes block
// normally.
func ClearNonBlock(f *os.File) error {
	sc, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var opErr error
	ctrlErr := sc.Control(func(fd uintptr) {
		flags, fErr := unix.FcntlInt(fd, unix.F_GETFL, 0)
		if fErr != nil {
			opErr = fErr
			return
		}
		_, opErr = unix.FcntlInt(fd, unix.F_SETFL, flags&^unix.O_NONBLOCK)
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return opErr
}

// BytesAvailable returns the number of bytes currently readable on f
// without blocking, via the FIONREAD ioctl.
func BytesAvailable(f *os.File) (int, error) {
	sc, err := f.SyscallConn()
	if err != nil {
		return 0, err
	}
	var n int
	var opErr error
	ctrlErr := sc.Control(func(fd uintptr) {
		n, opErr = unix.IoctlGetInt(int(fd), unix.FIONREAD)
	})
	if ctrlErr != nil {
		return 0, ctrlErr
	}
	return n, opErr
}

// fdSet sets bit fd in set. golang.org/x/sys/unix exposes the raw FdSet
// struct but no FD_SET/FD_ISSET helpers, so callers build the bitmask by
// hand, the same way raw termios flags are built up bit by bit.
func fdSet(fd int, set *unix.FdSet) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdIsSet(fd int, set *unix.FdSet) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}

// SelectReadable blocks until at least one of the given file descriptors
// is readable, or timeout elapses (timeout < 0 means block forever; 0
// means poll once and return immediately). It returns the subset of fds
// that became readable.
func SelectReadable(fds []int, timeout time.Duration) ([]int, error) {
	var set unix.FdSet
	maxFd := 0
	for _, fd := range fds {
		fdSet(fd, &set)
		if fd > maxFd {
			maxFd = fd
		}
	}

	deadline := time.Now().Add(timeout)
	for {
		waitSet := set
		var tv *unix.Timeval
		if timeout >= 0 {
			remaining := time.Until(deadline)
			if remaining < 0 {
				remaining = 0
			}
			t := unix.NsecToTimeval(remaining.Nanoseconds())
			tv = &t
		}

		n, err := unix.Select(maxFd+1, &waitSet, nil, nil, tv)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return nil, fmt.Errorf("tclfifo: select: %w", err)
		}
		if n == 0 {
			return nil, nil
		}
		set = waitSet
		break
	}

	var readable []int
	for _, fd := range fds {
		if fdIsSet(fd, &set) {
			readable = append(readable, fd)
		}
	}
	return readable, nil
}

// WaitForPath polls until path exists on disk or timeout elapses, for
// observing FIFO/temp-dir creation from a second goroutine. Nothing in this
// module calls it.
func WaitForPath(path string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	if _, err := os.Stat(path); err == nil {
		return nil
	}
	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("tclfifo: timeout waiting for %s", path)
		}
		<-ticker.C
		if _, err := os.Stat(path); err == nil {
			return nil
		}
	}
}

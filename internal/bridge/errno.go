package bridge

import (
	"errors"

	"golang.org/x/sys/unix"
)

// errorIsEPIPE reports whether err (possibly wrapped) is a broken-pipe
// errno, the write-side signal of child death.
func errorIsEPIPE(err error) bool {
	return errors.Is(err, unix.EPIPE)
}

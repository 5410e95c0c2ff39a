package aout

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Sentinel errors returned by the session manager and the physical devices.
// They are errno values so callers can classify them with errors.Is and report them as status codes.
var (
	ErrInvalidArgument = unix.EINVAL
	ErrBusy            = unix.EBUSY
	ErrUnavailable     = unix.ENXIO
	ErrTimeout         = unix.ETIMEDOUT
	ErrHardware        = unix.EIO
	ErrInvalidHandle   = unix.EFAULT
	ErrNotPermitted    = unix.EPERM
)

// Status converts an error into a negative errno status code, 0 for nil.
// Errors that do not wrap an errno are reported as -EIO.
func Status(err error) int {
	if err == nil {
		return 0
	}

	var errno unix.Errno
	if errors.As(err, &errno) {
		return -int(errno)
	}

	return -int(unix.EIO)
}

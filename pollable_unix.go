//go:build unix

package txgateway

import (
	"os"
	"syscall"

	"github.com/pkg/errors"
)

// PollableFile returns a duplicate of f managed by the runtime poller, so closing it interrupts pending reads.
// Blocking descriptors like stdin of the process can't be interrupted otherwise.
func PollableFile(f *os.File) (*os.File, error) {
	fd, err := syscall.Dup(int(f.Fd()))
	if err != nil {
		return nil, errors.Wrapf(err, "duplicating %s failed", f.Name())
	}
	if err := syscall.SetNonblock(fd, true); err != nil {
		_ = syscall.Close(fd)
		return nil, errors.Wrapf(err, "switching %s to non-blocking mode failed", f.Name())
	}
	return os.NewFile(uintptr(fd), f.Name()), nil
}

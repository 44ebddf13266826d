//go:build linux

package sink

import (
	"os"

	"golang.org/x/sys/unix"
)

// syncFile flushes file data (not metadata) to disk, then tells the kernel the
// written pages will not be read back so a large export does not evict the
// rest of the page cache.
func syncFile(f *os.File) error {
	fd := int(f.Fd())
	if err := unix.Fdatasync(fd); err != nil {
		return err
	}
	_ = unix.Fadvise(fd, 0, 0, unix.FADV_DONTNEED)
	return nil
}

//go:build linux || darwin

package buffer

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MappedFile is a memory-mapped log-buffer or counters file, grounded on
// the mmap idiom in the pack's shared-memory transport code (a raw
// syscall-level Mmap/Munmap over an *os.File truncated to size), adapted
// to use golang.org/x/sys/unix rather than the frozen syscall package.
type MappedFile struct {
	file *os.File
	Mem  []byte
}

// CreateMapped creates (or truncates) path to size and maps it MAP_SHARED,
// as required for the log file to be visible across processes attached to
// the same aeron_dir.
func CreateMapped(path string, size int64) (*MappedFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("buffer: create %s: %w", path, err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("buffer: truncate %s: %w", path, err)
	}
	return mapFile(f, size)
}

// OpenMapped maps an existing log file, as a client attaching to a
// publication the driver already created does.
func OpenMapped(path string) (*MappedFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("buffer: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("buffer: stat %s: %w", path, err)
	}
	return mapFile(f, info.Size())
}

func mapFile(f *os.File, size int64) (*MappedFile, error) {
	mem, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("buffer: mmap: %w", err)
	}
	return &MappedFile{file: f, Mem: mem}, nil
}

// Sync flushes dirty pages, used before the driver reports a publication
// ready to a client so the client never observes a torn metadata region.
func (m *MappedFile) Sync() error {
	return unix.Msync(m.Mem, unix.MS_SYNC)
}

// Close unmaps and closes the backing file. It does not delete the file;
// unlinking a log file on end-of-life is a conductor-level decision.
func (m *MappedFile) Close() error {
	if err := unix.Munmap(m.Mem); err != nil {
		return fmt.Errorf("buffer: munmap: %w", err)
	}
	return m.file.Close()
}

// Path returns the path of the backing file.
func (m *MappedFile) Path() string {
	return m.file.Name()
}

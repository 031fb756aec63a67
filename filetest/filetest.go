// Package filetest answers the questions shell scripts ask with
// test(1): does a path exist, what kind of thing is it, and may the
// current process read, write, or execute it.
//
// The permission predicates judge mode bits against the process's
// *effective* uid, gid, and supplementary groups — the identity a
// shell would act as — rather than the real identity that access(2)
// consults. Exactly one permission class is selected: owner bits when
// the effective uid owns the file, otherwise group bits when the
// file's group matches the effective gid or any supplementary group,
// otherwise the other bits. Root may read and write anything and may
// execute any file carrying at least one execute bit.
package filetest

import (
	"errors"
	"io/fs"
	"os"
)

// permBits names the mode bits for one permission across the three
// ownership classes.
type permBits struct {
	owner, group, other fs.FileMode
}

var (
	readBits  = permBits{0o400, 0o040, 0o004}
	writeBits = permBits{0o200, 0o020, 0o002}
	execBits  = permBits{0o100, 0o010, 0o001}
)

func (b permBits) all() fs.FileMode { return b.owner | b.group | b.other }

// Readable reports whether path exists and the effective identity may
// read it. A missing path is (false, nil), not an error.
func Readable(path string) (bool, error) { return testMode(path, readBits) }

// Writable reports whether path exists and the effective identity may
// write it. A missing path is (false, nil), not an error.
func Writable(path string) (bool, error) { return testMode(path, writeBits) }

// Executable reports whether path exists and the effective identity
// may execute it. A missing path is (false, nil), not an error.
func Executable(path string) (bool, error) { return testMode(path, execBits) }

func testMode(path string, bits permBits) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return hasAccess(info, bits)
}

// Exists reports whether path names anything at all, following
// symbolic links.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir reports whether path is a directory, following symbolic links.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsFile reports whether path is a regular file, following symbolic
// links.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// IsSymlink reports whether path itself is a symbolic link. This is
// the one predicate that does not follow links.
func IsSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&fs.ModeSymlink != 0
}

// IsNamedPipe reports whether path is a FIFO, following symbolic
// links.
func IsNamedPipe(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode()&fs.ModeNamedPipe != 0
}

// IsSocket reports whether path is a socket, following symbolic links.
func IsSocket(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode()&fs.ModeSocket != 0
}

// IsDevice reports whether path is a block or character device,
// following symbolic links.
func IsDevice(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode()&fs.ModeDevice != 0
}

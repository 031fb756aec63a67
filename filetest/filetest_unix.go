//go:build !windows

package filetest

import (
	"io/fs"
	"os"
	"syscall"
)

// hasAccess selects exactly one permission class for the effective
// identity and tests its bits. There is no fallthrough between
// classes: an owner whose owner bit is clear is denied even when the
// group or other bits would allow.
func hasAccess(info fs.FileInfo, bits permBits) (bool, error) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.Mode().Perm()&bits.all() != 0, nil
	}

	mode := info.Mode().Perm()
	uid := os.Geteuid()

	if uid == 0 {
		if bits != execBits {
			return true, nil
		}
		return mode&bits.all() != 0, nil
	}

	if int(st.Uid) == uid {
		return mode&bits.owner != 0, nil
	}

	if int(st.Gid) == os.Getegid() {
		return mode&bits.group != 0, nil
	}
	groups, err := os.Getgroups()
	if err != nil {
		return false, err
	}
	for _, g := range groups {
		if int(st.Gid) == g {
			return mode&bits.group != 0, nil
		}
	}

	return mode&bits.other != 0, nil
}

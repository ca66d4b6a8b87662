//go:build !windows

package ria

import "golang.org/x/sys/unix"

// statModeLocal and chmodOwnerWriteLocal back the local handler variant's
// writable guard on POSIX systems with golang.org/x/sys/unix, mirroring
// rclone's backend/local build-tagged stat_unix.go/lchtimes_unix.go split
// between POSIX and Windows permission handling.
func statModeLocal(path string) (kind byte, ownerWritable bool, err error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, false, err
	}
	mode := uint32(st.Mode)
	switch mode & unix.S_IFMT {
	case unix.S_IFDIR:
		kind = 'd'
	case unix.S_IFREG:
		kind = '-'
	default:
		kind = '?'
	}
	ownerWritable = mode&unix.S_IWUSR != 0
	return kind, ownerWritable, nil
}

func chmodOwnerWriteLocal(path string, writable bool) error {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return err
	}
	mode := uint32(st.Mode) & 0o7777
	if writable {
		mode |= unix.S_IWUSR
	} else {
		mode &^= unix.S_IWUSR
	}
	return unix.Chmod(path, mode)
}

//go:build windows

package ria

import "os"

// statModeLocal and chmodOwnerWriteLocal back the local handler variant's
// writable guard on Windows, where there is no owner/group/other bit
// triple — os.FileMode's single read-only bit stands in for the owner-
// write check, the same fallback rclone's backend/local uses in its own
// Windows build-tagged files.
func statModeLocal(path string) (kind byte, ownerWritable bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false, err
	}
	switch {
	case info.IsDir():
		kind = 'd'
	case info.Mode().IsRegular():
		kind = '-'
	default:
		kind = '?'
	}
	ownerWritable = info.Mode().Perm()&0o200 != 0
	return kind, ownerWritable, nil
}

func chmodOwnerWriteLocal(path string, writable bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := info.Mode().Perm()
	if writable {
		mode |= 0o200
	} else {
		mode &^= 0o200
	}
	return os.Chmod(path, mode)
}

package ria

import (
	"fmt"

	"github.com/datalad-ria/ria-remote/internal/riaerr"
)

// writableToggle is the narrow capability ensure_writable needs from
// whichever transport a handler variant is built on: discover a path's
// type and owner-write bit, and flip the owner-write bit. The SSH variant
// implements this with shell commands (ssh_handler.go); the local variant
// goes straight to the filesystem (guard_unix.go/guard_windows.go).
type writableToggle interface {
	statMode(path string) (kind byte, ownerWritable bool, err error)
	chmodOwnerWrite(path string, writable bool) error
}

// ensureWritable implements spec.md §4.E's scoped guard: chmod u+w on
// entry only if the path is not already owner-writable, chmod u-w on
// exit, refusing to touch anything that is not a plain file or directory
// (so a symlink or device node is never silently chmod'd).
func ensureWritable(t writableToggle, path string) (release func() error, err error) {
	kind, ownerWritable, err := t.statMode(path)
	if err != nil {
		return nil, err
	}
	if kind != '-' && kind != 'd' {
		return nil, riaerr.New(riaerr.PermissionRefused,
			fmt.Sprintf("refusing to chmod %s: not a plain file or directory (type %q)", path, string(kind)))
	}
	if ownerWritable {
		return func() error { return nil }, nil
	}
	if err := t.chmodOwnerWrite(path, true); err != nil {
		return nil, err
	}
	return func() error { return t.chmodOwnerWrite(path, false) }, nil
}

// localToggle adapts the host filesystem to writableToggle for the local
// handler variant, so both variants share the ensureWritable decision
// logic above.
type localToggle struct{}

func (localToggle) statMode(path string) (byte, bool, error) {
	return statModeLocal(path)
}

func (localToggle) chmodOwnerWrite(path string, writable bool) error {
	return chmodOwnerWriteLocal(path, writable)
}

func ensureWritableLocal(path string) (release func() error, err error) {
	release, err = ensureWritable(localToggle{}, path)
	if err != nil {
		if riaerr.Is(err, riaerr.PermissionRefused) {
			return nil, err
		}
		return nil, riaerr.Wrap(riaerr.IOError, err, fmt.Sprintf("ria: toggling write permission on %s", path))
	}
	return release, nil
}

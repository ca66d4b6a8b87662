package ria

import (
	"errors"
	"fmt"
	"io"

	"github.com/datalad-ria/ria-remote/internal/riaerr"
	"github.com/datalad-ria/ria-remote/internal/shell"
	"github.com/datalad-ria/ria-remote/internal/transport"
)

// Handler is the external contract every annex-protocol adapter drives
// (spec.md §4.E/§4.F/§6), implemented identically by the SSH-backed and
// local-filesystem-backed variants.
type Handler interface {
	Prepare() error
	TransferStore(key, localPath string, progress transport.ProgressFunc) error
	TransferRetrieve(key, localPath string, progress transport.ProgressFunc) error
	Checkpresent(key string) (bool, error)
	Remove(key string) error
	Shutdown() error
}

var (
	_ Handler = (*SSHHandler)(nil)
	_ Handler = (*LocalHandler)(nil)
)

// handlerState mirrors spec.md §4.G's "RIA Handler:
// UNINITIALIZED → READY → CLOSED" design-level state machine.
type handlerState int

const (
	stateUninitialized handlerState = iota
	stateReady
	stateClosed
)

// wrapShellErr classifies an error coming back from internal/shell (or
// internal/transport, which wraps its own errors in riaerr already) into
// the appropriate riaerr.Kind (spec.md §7).
func wrapShellErr(err error, context string) error {
	var rerr *riaerr.Error
	if errors.As(err, &rerr) {
		return err
	}
	var lost *shell.LostError
	if errors.As(err, &lost) {
		return riaerr.Wrap(riaerr.ShellLost, err, context)
	}
	var remote *shell.RemoteError
	if errors.As(err, &remote) {
		return riaerr.Wrap(riaerr.RemoteCommandFailed, err, context)
	}
	return riaerr.Wrap(riaerr.IOError, err, context)
}

// copyWithProgress copies exactly total bytes from src to dst, invoking
// progress after each chunk — the local-filesystem variant's equivalent of
// internal/transport's shell-framed streaming (spec.md §4.D's chunking
// discipline, reused here since there is no shell channel to frame
// through).
func copyWithProgress(dst io.Writer, src io.Reader, total int64, progress transport.ProgressFunc) error {
	const bufSize = 64 * 1024
	buf := make([]byte, bufSize)
	var done int64
	for done < total {
		want := int64(len(buf))
		if remaining := total - done; remaining < want {
			want = remaining
		}
		n, err := io.ReadFull(src, buf[:want])
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return fmt.Errorf("ria: writing copy destination: %w", werr)
			}
			done += int64(n)
			if progress != nil {
				progress(done, total)
			}
		}
		if err != nil {
			return fmt.Errorf("ria: reading copy source: %w", err)
		}
	}
	return nil
}

package ria

import (
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/datalad-ria/ria-remote/internal/riaerr"
	"github.com/datalad-ria/ria-remote/internal/shell"
	"github.com/datalad-ria/ria-remote/internal/transport"
)

// Dialer builds and starts a fresh Shell Worker, used both for the initial
// connection and for the lazy reconnect-on-ShellLost behavior (spec.md §9
// supplemented feature #3, carried over from datalad_ria's sshshell.py).
type Dialer func() (*shell.Worker, error)

// SSHHandler is the SSH-backed RIA Handler variant (spec.md §4.E): every
// public operation is serialized under command_lock and drives exactly
// one Shell Worker for the handler's lifetime, rebuilt lazily if the
// worker is ever observed to have gone away.
type SSHHandler struct {
	mu       sync.Mutex // command_lock
	layout   *Layout
	reporter Reporter
	dial     Dialer

	w     *shell.Worker
	state handlerState
}

// NewSSHHandler builds a handler against layout, dialing dial() for its
// Shell Worker on first use.
func NewSSHHandler(layout *Layout, reporter Reporter, dial Dialer) *SSHHandler {
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &SSHHandler{layout: layout, reporter: reporter, dial: dial}
}

// Prepare lazily starts the Shell Worker, bootstraps the dataset
// directory, and validates or writes ria-layout-version (spec.md §4.E
// "Initialization", supplemented feature #1).
func (h *SSHHandler) Prepare() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ensureWorkerLocked(); err != nil {
		return err
	}
	if _, err := h.w.Run(fmt.Sprintf("mkdir -p %s", shell.Quote(h.layout.DatasetDir()))); err != nil {
		return wrapShellErr(err, "ria: bootstrapping dataset directory")
	}
	if err := h.ensureLayoutVersionLocked(); err != nil {
		return err
	}
	h.state = stateReady
	return nil
}

func (h *SSHHandler) ensureLayoutVersionLocked() error {
	vp := h.layout.LayoutVersionPath()
	res, err := h.w.RunAllowingFailure(fmt.Sprintf("test -f %s", shell.Quote(vp)))
	if err != nil {
		return wrapShellErr(err, "ria: checking ria-layout-version")
	}
	if res.ExitCode != 0 {
		cmd := fmt.Sprintf("printf '%%s\\n' %s > %s", shell.Quote(DefaultLayoutVersion), shell.Quote(vp))
		if _, err := h.w.Run(cmd); err != nil {
			return wrapShellErr(err, "ria: writing ria-layout-version")
		}
		return nil
	}
	out, err := h.w.Run(fmt.Sprintf("cat %s", shell.Quote(vp)))
	if err != nil {
		return wrapShellErr(err, "ria: reading ria-layout-version")
	}
	version := strings.TrimSpace(string(out))
	if !SupportedLayoutVersions[version] {
		return riaerr.New(riaerr.ConfigError, fmt.Sprintf("unsupported ria-layout-version %q", version))
	}
	return nil
}

// ensureWorkerLocked (re)dials the Shell Worker if none exists yet or the
// previous one was torn down after observing ShellLost.
func (h *SSHHandler) ensureWorkerLocked() error {
	if h.state == stateClosed {
		return riaerr.New(riaerr.ConfigError, "ria: handler is closed")
	}
	if h.w != nil && h.w.Alive() {
		return nil
	}
	w, err := h.dial()
	if err != nil {
		return riaerr.Wrap(riaerr.ShellLost, err, "ria: dialing shell worker")
	}
	h.w = w
	return nil
}

// TransferStore uploads local to the remote store under key, idempotently
// (spec.md §4.E). A failed cleanup of the remote temp file is logged, and
// returned only when no earlier error is pending.
func (h *SSHHandler) TransferStore(key, localPath string, progress transport.ProgressFunc) (err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key, err = SanitizeKey(key)
	if err != nil {
		return riaerr.Wrap(riaerr.ConfigError, err, "ria: sanitizing key")
	}
	if err := h.ensureWorkerLocked(); err != nil {
		return err
	}

	present, err := h.checkpresentLocked(key)
	if err != nil {
		return err
	}
	if present {
		return nil
	}

	tmp, err := h.mktempLocked()
	if err != nil {
		return err
	}
	defer func() {
		if _, cerr := h.w.Run(fmt.Sprintf("rm -f %s", shell.Quote(tmp))); cerr != nil {
			h.reporter.Debug("ria: cleanup of remote temp file %s failed: %v", tmp, cerr)
			if err == nil {
				err = wrapShellErr(cerr, "ria: cleaning up remote temp file")
			}
		}
	}()

	local, err := os.Open(localPath)
	if err != nil {
		return riaerr.Wrap(riaerr.IOError, err, "ria: opening local file")
	}
	defer local.Close()
	info, err := local.Stat()
	if err != nil {
		return riaerr.Wrap(riaerr.IOError, err, "ria: statting local file")
	}

	if err := transport.Upload(h.w, tmp, local, info.Size(), progress); err != nil {
		return err
	}

	keyDir := h.layout.KeyDir(key)
	if _, err := h.w.Run(fmt.Sprintf("mkdir -p %s", shell.Quote(keyDir))); err != nil {
		return wrapShellErr(err, "ria: creating key directory")
	}

	release, err := ensureWritable(h, keyDir)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := release(); rerr != nil {
			h.reporter.Debug("ria: restoring permissions on %s failed: %v", keyDir, rerr)
		}
	}()

	keyPath := h.layout.KeyPath(key)
	if _, err := h.w.Run(fmt.Sprintf("mv -f %s %s", shell.Quote(tmp), shell.Quote(keyPath))); err != nil {
		return wrapShellErr(err, "ria: placing key")
	}
	return nil
}

// mktempLocked creates a remote temp file outside the observable keyspace
// (spec.md §9's "Open questions": mktemp is preferred over a sibling
// ".transfer" suffix for exactly this reason).
func (h *SSHHandler) mktempLocked() (string, error) {
	out, err := h.w.Run("mktemp")
	if err != nil {
		return "", wrapShellErr(err, "ria: creating remote temp file")
	}
	return strings.TrimSpace(string(out)), nil
}

// TransferRetrieve downloads key's content into localPath.
func (h *SSHHandler) TransferRetrieve(key, localPath string, progress transport.ProgressFunc) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	key, err := SanitizeKey(key)
	if err != nil {
		return riaerr.Wrap(riaerr.ConfigError, err, "ria: sanitizing key")
	}
	if err := h.ensureWorkerLocked(); err != nil {
		return err
	}

	present, err := h.checkpresentLocked(key)
	if err != nil {
		return err
	}
	if !present {
		return riaerr.New(riaerr.KeyNotPresent, fmt.Sprintf("key %s is not present", key))
	}

	f, err := os.Create(localPath)
	if err != nil {
		return riaerr.Wrap(riaerr.IOError, err, "ria: creating local file")
	}
	defer f.Close()

	return transport.Download(h.w, h.layout.KeyPath(key), f, progress)
}

// Remove deletes key's directory, restoring write permission on its parent
// for the duration of the delete (spec.md §4.E).
func (h *SSHHandler) Remove(key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	key, err := SanitizeKey(key)
	if err != nil {
		return riaerr.Wrap(riaerr.ConfigError, err, "ria: sanitizing key")
	}
	if err := h.ensureWorkerLocked(); err != nil {
		return err
	}

	present, err := h.checkpresentLocked(key)
	if err != nil {
		return err
	}
	if !present {
		return nil
	}

	keyDir := h.layout.KeyDir(key)
	parent := path.Dir(keyDir)
	release, err := ensureWritable(h, parent)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := release(); rerr != nil {
			h.reporter.Debug("ria: restoring permissions on %s failed: %v", parent, rerr)
		}
	}()

	if _, err := h.w.Run(fmt.Sprintf("rm -rf %s", shell.Quote(keyDir))); err != nil {
		return wrapShellErr(err, "ria: removing key directory")
	}
	return nil
}

// Checkpresent reports whether key is present. Any failure short of the
// shell itself being unusable is reported as false, not raised (spec.md
// §4.E, §7): the annex protocol treats "present" as authoritative only
// when true and can retry otherwise.
func (h *SSHHandler) Checkpresent(key string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key, err := SanitizeKey(key)
	if err != nil {
		return false, riaerr.Wrap(riaerr.ConfigError, err, "ria: sanitizing key")
	}
	if err := h.ensureWorkerLocked(); err != nil {
		return false, err
	}
	return h.checkpresentLocked(key)
}

func (h *SSHHandler) checkpresentLocked(key string) (bool, error) {
	res, err := h.w.RunAllowingFailure(fmt.Sprintf("test -f %s", shell.Quote(h.layout.KeyPath(key))))
	if err != nil {
		h.reporter.Debug("ria: checkpresent test -f failed, reporting not present: %v", err)
		return false, nil
	}
	return res.ExitCode == 0, nil
}

// Shutdown stops accepting new requests and tears down the Shell Worker.
func (h *SSHHandler) Shutdown() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == stateClosed {
		return nil
	}
	h.state = stateClosed
	if h.w == nil {
		return nil
	}
	return h.w.Shutdown()
}

// statMode and chmodOwnerWrite implement writableToggle (guard.go) against
// the remote shell, for ensure_writable's "-rwxr-xr-x"-style mode parsing
// (spec.md §4.E).
func (h *SSHHandler) statMode(remotePath string) (kind byte, ownerWritable bool, err error) {
	out, err := h.w.Run(fmt.Sprintf("ls -ldn %s", shell.Quote(remotePath)))
	if err != nil {
		return 0, false, wrapShellErr(err, "ria: stat via ls -ldn")
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return 0, false, riaerr.New(riaerr.IOError, fmt.Sprintf("ls -ldn %s: no output", remotePath))
	}
	mode := fields[0]
	if len(mode) < 3 {
		return 0, false, riaerr.New(riaerr.IOError, fmt.Sprintf("ls -ldn %s: malformed mode %q", remotePath, mode))
	}
	return mode[0], mode[2] == 'w', nil
}

func (h *SSHHandler) chmodOwnerWrite(remotePath string, writable bool) error {
	flag := "u-w"
	if writable {
		flag = "u+w"
	}
	if _, err := h.w.Run(fmt.Sprintf("chmod %s %s", flag, shell.Quote(remotePath))); err != nil {
		return wrapShellErr(err, "ria: chmod")
	}
	return nil
}

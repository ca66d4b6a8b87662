package ria

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/datalad-ria/ria-remote/internal/riaerr"
	"github.com/datalad-ria/ria-remote/internal/transport"
)

// LocalHandler is the local-filesystem-backed RIA Handler variant (spec.md
// §4.F): identical external contract to SSHHandler, built on direct
// filesystem calls instead of a Shell Worker. Its temp file lives in a
// sibling transfer/ directory and Remove moves the key aside with a
// ".deleted" suffix rather than unlinking, to allow external recovery.
type LocalHandler struct {
	mu       sync.Mutex // command_lock
	layout   *Layout
	reporter Reporter
	state    handlerState
}

// NewLocalHandler builds a handler against layout.
func NewLocalHandler(layout *Layout, reporter Reporter) *LocalHandler {
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &LocalHandler{layout: layout, reporter: reporter}
}

// Prepare bootstraps the dataset directory and validates or writes
// ria-layout-version.
func (h *LocalHandler) Prepare() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := os.MkdirAll(h.layout.DatasetDir(), 0o777); err != nil {
		return riaerr.Wrap(riaerr.IOError, err, "ria: bootstrapping dataset directory")
	}
	if err := h.ensureLayoutVersionLocked(); err != nil {
		return err
	}
	h.state = stateReady
	return nil
}

func (h *LocalHandler) ensureLayoutVersionLocked() error {
	vp := h.layout.LayoutVersionPath()
	data, err := os.ReadFile(vp)
	if os.IsNotExist(err) {
		if werr := os.WriteFile(vp, []byte(DefaultLayoutVersion+"\n"), 0o666); werr != nil {
			return riaerr.Wrap(riaerr.IOError, werr, "ria: writing ria-layout-version")
		}
		return nil
	}
	if err != nil {
		return riaerr.Wrap(riaerr.IOError, err, "ria: reading ria-layout-version")
	}
	version := strings.TrimSpace(string(data))
	if !SupportedLayoutVersions[version] {
		return riaerr.New(riaerr.ConfigError, fmt.Sprintf("unsupported ria-layout-version %q", version))
	}
	return nil
}

// TransferStore copies localPath into the store under key, idempotently.
func (h *LocalHandler) TransferStore(key, localPath string, progress transport.ProgressFunc) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	key, err := SanitizeKey(key)
	if err != nil {
		return riaerr.Wrap(riaerr.ConfigError, err, "ria: sanitizing key")
	}

	present, err := h.checkpresentLocked(key)
	if err != nil {
		return err
	}
	if present {
		return nil
	}

	transferDir := h.layout.TransferDir()
	if err := os.MkdirAll(transferDir, 0o777); err != nil {
		return riaerr.Wrap(riaerr.IOError, err, "ria: creating transfer directory")
	}
	tmp, err := os.CreateTemp(transferDir, "tmp-*")
	if err != nil {
		return riaerr.Wrap(riaerr.IOError, err, "ria: creating temp file")
	}
	tmpPath := tmp.Name()
	defer func() {
		if rerr := os.Remove(tmpPath); rerr != nil && !os.IsNotExist(rerr) {
			h.reporter.Debug("ria: cleanup of temp file %s failed: %v", tmpPath, rerr)
		}
	}()

	src, err := os.Open(localPath)
	if err != nil {
		tmp.Close()
		return riaerr.Wrap(riaerr.IOError, err, "ria: opening local file")
	}
	info, statErr := src.Stat()
	if statErr != nil {
		src.Close()
		tmp.Close()
		return riaerr.Wrap(riaerr.IOError, statErr, "ria: statting local file")
	}

	copyErr := copyWithProgress(tmp, src, info.Size(), progress)
	src.Close()
	if copyErr != nil {
		tmp.Close()
		return riaerr.Wrap(riaerr.TransferFailed, copyErr, "ria: writing temp file")
	}
	if err := tmp.Close(); err != nil {
		return riaerr.Wrap(riaerr.IOError, err, "ria: closing temp file")
	}

	keyDir := h.layout.KeyDir(key)
	if err := os.MkdirAll(keyDir, 0o777); err != nil {
		return riaerr.Wrap(riaerr.IOError, err, "ria: creating key directory")
	}

	release, err := ensureWritableLocal(keyDir)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := release(); rerr != nil {
			h.reporter.Debug("ria: restoring permissions on %s failed: %v", keyDir, rerr)
		}
	}()

	keyPath := h.layout.KeyPath(key)
	if err := os.Rename(tmpPath, keyPath); err != nil {
		return riaerr.Wrap(riaerr.TransferFailed, err, "ria: placing key")
	}
	return nil
}

// TransferRetrieve copies key's content into localPath.
func (h *LocalHandler) TransferRetrieve(key, localPath string, progress transport.ProgressFunc) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	key, err := SanitizeKey(key)
	if err != nil {
		return riaerr.Wrap(riaerr.ConfigError, err, "ria: sanitizing key")
	}

	present, err := h.checkpresentLocked(key)
	if err != nil {
		return err
	}
	if !present {
		return riaerr.New(riaerr.KeyNotPresent, fmt.Sprintf("key %s is not present", key))
	}

	src, err := os.Open(h.layout.KeyPath(key))
	if err != nil {
		return riaerr.Wrap(riaerr.IOError, err, "ria: opening key")
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return riaerr.Wrap(riaerr.IOError, err, "ria: statting key")
	}

	dst, err := os.Create(localPath)
	if err != nil {
		return riaerr.Wrap(riaerr.IOError, err, "ria: creating local file")
	}
	defer dst.Close()

	if err := copyWithProgress(dst, src, info.Size(), progress); err != nil {
		return riaerr.Wrap(riaerr.TransferFailed, err, "ria: copying key content")
	}
	return nil
}

// Remove moves key's directory aside with a ".deleted" suffix rather than
// unlinking it, so it can be recovered externally (spec.md §4.F).
func (h *LocalHandler) Remove(key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	key, err := SanitizeKey(key)
	if err != nil {
		return riaerr.Wrap(riaerr.ConfigError, err, "ria: sanitizing key")
	}

	present, err := h.checkpresentLocked(key)
	if err != nil {
		return err
	}
	if !present {
		return nil
	}

	keyDir := h.layout.KeyDir(key)
	parent := filepath.Dir(keyDir)
	release, err := ensureWritableLocal(parent)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := release(); rerr != nil {
			h.reporter.Debug("ria: restoring permissions on %s failed: %v", parent, rerr)
		}
	}()

	deletedDir := keyDir + ".deleted"
	if err := os.RemoveAll(deletedDir); err != nil {
		return riaerr.Wrap(riaerr.IOError, err, "ria: clearing stale .deleted directory")
	}
	if err := os.Rename(keyDir, deletedDir); err != nil {
		return riaerr.Wrap(riaerr.IOError, err, "ria: moving key directory to .deleted")
	}
	return nil
}

// Checkpresent reports whether key's content is present as a regular file.
func (h *LocalHandler) Checkpresent(key string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key, err := SanitizeKey(key)
	if err != nil {
		return false, riaerr.Wrap(riaerr.ConfigError, err, "ria: sanitizing key")
	}
	return h.checkpresentLocked(key)
}

func (h *LocalHandler) checkpresentLocked(key string) (bool, error) {
	info, err := os.Stat(h.layout.KeyPath(key))
	if err != nil {
		return false, nil
	}
	return info.Mode().IsRegular(), nil
}

// Shutdown marks the handler closed. There is no worker to tear down.
func (h *LocalHandler) Shutdown() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = stateClosed
	return nil
}

package shell

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

// workerState tracks the Shell Worker's lifecycle (spec.md §4.C).
type workerState int

const (
	workerUnstarted workerState = iota
	workerRunning
	workerDraining
	workerStopped
)

// Worker serializes every request issued against a single Channel: callers
// from multiple goroutines may call Execute/Upload/Download concurrently,
// but only one is ever in flight on the wire at a time (spec.md §4.C's
// run_lock). A Worker that observes ShellLost stops accepting new work
// permanently — callers must rebuild the Channel and Worker from scratch.
type Worker struct {
	mu    sync.Mutex
	ch    *Channel
	state workerState
}

// NewWorker wraps an already-Start()-ed Channel.
func NewWorker(ch *Channel) *Worker {
	return &Worker{ch: ch, state: workerRunning}
}

// Run executes cmd and returns its stdout on success. A nonzero exit status
// is reported as *RemoteError, not as a Go-level failure to start the
// command — only a ShellLost-class failure (process death, EOF) is
// returned as a bare error here.
func (w *Worker) Run(cmd string) ([]byte, error) {
	res, err := w.serialize(func() (*Result, error) {
		return w.ch.Execute(cmd)
	})
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, &RemoteError{Cmd: cmd, Code: res.ExitCode, Stdout: res.Stdout, Stderr: res.Stderr}
	}
	return res.Stdout, nil
}

// RunAllowingFailure behaves like Run but returns the Result (including a
// nonzero exit code) without wrapping it in a *RemoteError, for callers
// that need to branch on specific exit codes (e.g. the test -f probes of
// checkpresent and of the ria-layout-version check).
func (w *Worker) RunAllowingFailure(cmd string) (*Result, error) {
	return w.serialize(func() (*Result, error) {
		return w.ch.Execute(cmd)
	})
}

// Upload runs cmd, streaming body (bodyLen bytes) to the remote shell's
// stdin right after the command line, reporting progress via onChunk.
func (w *Worker) Upload(cmd string, body io.Reader, bodyLen int64, onChunk func(sent, total int64)) (*Result, error) {
	return w.serialize(func() (*Result, error) {
		return w.ch.ExecuteWithBody(cmd, body, bodyLen, onChunk)
	})
}

// Channel exposes the underlying Channel for Component D's typed Download
// operation, which must bypass Run's token framing and read a length-
// prefixed body directly off the raw stdout stream (spec.md §4.D). The
// caller must still go through Locked to keep commands serialized.
func (w *Worker) Channel() *Channel { return w.ch }

// Locked runs fn with the worker's serialization lock held, for callers
// (transport's Download) that need several raw Channel calls (WriteRaw,
// then several ReadStdout calls) to happen as one atomic unit of work.
func (w *Worker) Locked(fn func(*Channel) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != workerRunning {
		return errors.New("shell: worker is not running")
	}
	err := fn(w.ch)
	if isShellLost(err) {
		w.state = workerStopped
	}
	return err
}

// Shutdown stops the worker from accepting further requests and closes the
// underlying channel. Requests already in flight are allowed to finish.
func (w *Worker) Shutdown() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == workerStopped {
		return nil
	}
	w.state = workerStopped
	return w.ch.Close()
}

// Alive reports whether the worker will still accept new requests.
func (w *Worker) Alive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == workerRunning
}

func (w *Worker) serialize(fn func() (*Result, error)) (*Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != workerRunning {
		return nil, errors.New("shell: worker is not running")
	}
	res, err := fn()
	if isShellLost(err) {
		w.state = workerStopped
	}
	return res, err
}

func isShellLost(err error) bool {
	if err == nil {
		return false
	}
	var lost *LostError
	return errors.As(err, &lost)
}

// Package transport implements the two shell-channel-framed transfer
// operations (upload, download) and the trivial delete, built on top of
// internal/shell's Worker. Grounded on rclone's backend/sftp Object
// Open/Update (streaming a file over one SSH session with progress), with
// the actual wire framing swapped for the length-prefixed scheme this
// remote's shell channel uses instead of SFTP packets.
package transport

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/datalad-ria/ria-remote/internal/riaerr"
	"github.com/datalad-ria/ria-remote/internal/shell"
	"github.com/pkg/errors"
)

// ProgressFunc reports done/total bytes transferred so far. It may be nil.
type ProgressFunc func(done, total int64)

// lengthUnavailableCode is the code Download's error message names when
// the remote stub reports a negative length (it prints -1 when the remote
// file's length cannot be determined up front).
const lengthUnavailableCode = 23

// Upload streams exactly localLen bytes from local into remotePath on the
// other end of w, invoking progress after each chunk (spec.md §4.D).
func Upload(w *shell.Worker, remotePath string, local io.Reader, localLen int64, progress ProgressFunc) error {
	cmd := fmt.Sprintf("head -c %d > %s && echo OK", localLen, shell.Quote(remotePath))
	res, err := w.Upload(cmd, local, localLen, func(sent, total int64) {
		if progress != nil {
			progress(sent, total)
		}
	})
	if err != nil {
		return shellLostOrWrap(err, "transport: upload")
	}
	if res.ExitCode != 0 || strings.TrimSpace(string(res.Stdout)) != "OK" {
		return riaerr.Wrap(riaerr.TransferFailed, fmt.Errorf("exit %d, stdout %q", res.ExitCode, res.Stdout),
			fmt.Sprintf("upload to %s failed", remotePath))
	}
	return nil
}

// Download reads remotePath's contents into local, invoking progress after
// each chunk read. It implements the WAIT_LENGTH/READ_BODY/READ_RETCODE/DONE
// state machine directly against the worker's raw stdout stream, bypassing
// token framing entirely (spec.md §4.D).
func Download(w *shell.Worker, remotePath string, local io.Writer, progress ProgressFunc) error {
	cmd := fmt.Sprintf(
		`f=%s; if [ -f "$f" ]; then wc -c < "$f" | tr -d ' \n'; else echo -n -1; fi; echo; cat "$f" 2>/dev/null; rc=$?; echo; echo "$rc"`,
		shell.Quote(remotePath),
	)

	var length int64
	var retcode int
	err := w.Locked(func(ch *shell.Channel) error {
		if err := ch.WriteRaw(cmd + "\n"); err != nil {
			return err
		}
		sm := newDownloadStateMachine(ch, local, progress)
		var err error
		length, retcode, err = sm.run()
		return err
	})
	if err != nil {
		return shellLostOrWrap(err, "transport: download")
	}
	if length < 0 {
		return riaerr.New(riaerr.TransferFailed, fmt.Sprintf("remote length unavailable for %s (code %d)", remotePath, lengthUnavailableCode))
	}
	if retcode != 0 {
		return riaerr.New(riaerr.TransferFailed, fmt.Sprintf("download of %s: remote reported exit %d", remotePath, retcode))
	}
	return nil
}

// Delete removes remotePath; a missing file is not an error (spec.md §4.D:
// "rm -f").
func Delete(w *shell.Worker, remotePath string) error {
	_, err := w.Run(fmt.Sprintf("rm -f %s", shell.Quote(remotePath)))
	if err != nil {
		return shellLostOrWrap(err, "transport: delete")
	}
	return nil
}

func shellLostOrWrap(err error, context string) error {
	var lost *shell.LostError
	if errors.As(err, &lost) {
		return riaerr.Wrap(riaerr.ShellLost, err, context)
	}
	var remote *shell.RemoteError
	if errors.As(err, &remote) {
		return riaerr.Wrap(riaerr.RemoteCommandFailed, err, context)
	}
	return riaerr.Wrap(riaerr.TransferFailed, err, context)
}

type downloadState int

const (
	stateWaitLength downloadState = iota
	stateReadBody
	stateReadRetcode
	stateDone
)

// downloadStateMachine reads the length-prefixed response a download
// command produces directly off the channel's raw stdout, without ever
// invoking the sentinel Pattern Filter (spec.md §4.D).
type downloadStateMachine struct {
	ch       *shell.Channel
	out      io.Writer
	progress ProgressFunc

	state     downloadState
	pending   []byte
	length    int64
	readSoFar int64
}

func newDownloadStateMachine(ch *shell.Channel, out io.Writer, progress ProgressFunc) *downloadStateMachine {
	return &downloadStateMachine{ch: ch, out: out, progress: progress, state: stateWaitLength}
}

func (sm *downloadStateMachine) fill() error {
	chunk, err := sm.ch.ReadStdout()
	if err != nil {
		return err
	}
	sm.pending = append(sm.pending, chunk...)
	return nil
}

// run drives the state machine to completion, returning the length the
// remote reported (negative if unavailable) and the final return code.
func (sm *downloadStateMachine) run() (length int64, retcode int, err error) {
	for sm.state != stateDone {
		switch sm.state {
		case stateWaitLength:
			if err := sm.stepWaitLength(); err != nil {
				return 0, 0, err
			}
		case stateReadBody:
			if err := sm.stepReadBody(); err != nil {
				return 0, 0, err
			}
		case stateReadRetcode:
			code, err := sm.stepReadRetcode()
			if err != nil {
				return 0, 0, err
			}
			retcode = code
			sm.state = stateDone
		}
	}
	return sm.length, retcode, nil
}

func (sm *downloadStateMachine) stepWaitLength() error {
	for {
		if idx := bytes.IndexByte(sm.pending, '\n'); idx >= 0 {
			line := string(sm.pending[:idx])
			sm.pending = sm.pending[idx+1:]
			n, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
			if err != nil {
				return errors.Wrapf(err, "transport: malformed length line %q", line)
			}
			sm.length = n
			if n < 0 {
				sm.state = stateReadRetcode
			} else {
				sm.state = stateReadBody
			}
			return nil
		}
		if err := sm.fill(); err != nil {
			return err
		}
	}
}

func (sm *downloadStateMachine) stepReadBody() error {
	for sm.readSoFar < sm.length {
		if len(sm.pending) == 0 {
			if err := sm.fill(); err != nil {
				return err
			}
			continue
		}
		remaining := sm.length - sm.readSoFar
		take := int64(len(sm.pending))
		if take > remaining {
			take = remaining
		}
		chunk := sm.pending[:take]
		sm.pending = sm.pending[take:]
		if _, err := sm.out.Write(chunk); err != nil {
			return errors.Wrap(err, "transport: writing local file")
		}
		sm.readSoFar += take
		if sm.progress != nil {
			sm.progress(sm.readSoFar, sm.length)
		}
	}
	sm.state = stateReadRetcode
	return nil
}

func (sm *downloadStateMachine) stepReadRetcode() (int, error) {
	for {
		if idx := bytes.IndexByte(sm.pending, '\n'); idx >= 0 {
			line := strings.TrimSpace(string(sm.pending[:idx]))
			sm.pending = sm.pending[idx+1:]
			if line == "" {
				continue
			}
			code, err := strconv.Atoi(line)
			if err != nil {
				return 0, errors.Wrapf(err, "transport: malformed return code line %q", line)
			}
			return code, nil
		}
		if err := sm.fill(); err != nil {
			return 0, err
		}
	}
}

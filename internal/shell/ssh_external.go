package shell

import (
	"context"
	"io"
	"os/exec"
	"time"

	"github.com/pkg/errors"
)

// externalProcess drives a persistent remote shell by shelling out to the
// system `ssh` binary and leaving it to negotiate its own login shell (no
// command argument is appended, matching an interactive `ssh host` login).
// Mirrors rclone's sshClientExternal/sshSessionExternal
// (backend/sftp/ssh_external.go).
type externalProcess struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc

	stdin  io.WriteCloser
	stdout io.Reader
	stderr io.Reader
}

// newExternalProcess builds (but does not start) a process that runs
// argv[0] with argv[1:] as arguments, e.g. {"ssh", "-o", "BatchMode=yes",
// "user@host"}.
func newExternalProcess(argv []string) *externalProcess {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.WaitDelay = time.Second
	return &externalProcess{cmd: cmd, cancel: cancel}
}

func (p *externalProcess) Start() error {
	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(err, "ssh external: stdin pipe")
	}
	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "ssh external: stdout pipe")
	}
	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		return errors.Wrap(err, "ssh external: stderr pipe")
	}
	p.stdin, p.stdout, p.stderr = stdin, stdout, stderr

	if err := p.cmd.Start(); err != nil {
		return errors.Wrap(err, "ssh external: start")
	}
	return nil
}

func (p *externalProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *externalProcess) Stdout() io.Reader     { return p.stdout }
func (p *externalProcess) Stderr() io.Reader     { return p.stderr }

func (p *externalProcess) Wait() error {
	return p.cmd.Wait()
}

func (p *externalProcess) Close() error {
	p.cancel()
	if p.cmd.Process != nil {
		return p.cmd.Process.Kill()
	}
	return nil
}

// exited reports whether the child process has already terminated.
func (p *externalProcess) exited() bool {
	return p.cmd.ProcessState != nil
}

var _ process = (*externalProcess)(nil)

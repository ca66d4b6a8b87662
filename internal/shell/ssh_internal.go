package shell

import (
	"io"
	"net"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// internalProcess drives a persistent remote shell using the in-process
// golang.org/x/crypto/ssh client: dial once, open a single session, request
// an interactive shell on it. Mirrors rclone's sshClientInternal
// (backend/sftp/ssh_internal.go), collapsed from "one session per command"
// down to "one shell for the channel's whole life" per spec.md §4.B.
type internalProcess struct {
	conn    net.Conn
	client  *ssh.Client
	session *ssh.Session

	stdin  io.WriteCloser
	stdout io.Reader
	stderr io.Reader
}

// newInternalProcess performs the SSH handshake for addr over conn and
// authenticates with config. The caller supplies the already-established
// TCP connection (dialed upstream in internal/riaurl); nothing is dialed here.
func newInternalProcess(conn net.Conn, addr string, config *ssh.ClientConfig) (*internalProcess, error) {
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		return nil, errors.Wrap(err, "ssh: handshake failed")
	}
	client := ssh.NewClient(c, chans, reqs)
	return &internalProcess{conn: conn, client: client}, nil
}

func (p *internalProcess) Start() error {
	session, err := p.client.NewSession()
	if err != nil {
		return errors.Wrap(err, "ssh: opening session")
	}
	p.session = session

	stdin, err := session.StdinPipe()
	if err != nil {
		return errors.Wrap(err, "ssh: stdin pipe")
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "ssh: stdout pipe")
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		return errors.Wrap(err, "ssh: stderr pipe")
	}
	p.stdin, p.stdout, p.stderr = stdin, stdout, stderr

	if err := session.Shell(); err != nil {
		return errors.Wrap(err, "ssh: requesting shell")
	}
	return nil
}

func (p *internalProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *internalProcess) Stdout() io.Reader     { return p.stdout }
func (p *internalProcess) Stderr() io.Reader     { return p.stderr }

func (p *internalProcess) Wait() error {
	if p.session == nil {
		return nil
	}
	return p.session.Wait()
}

func (p *internalProcess) Close() error {
	var err error
	if p.session != nil {
		err = p.session.Close()
	}
	if p.client != nil {
		if cerr := p.client.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

var _ process = (*internalProcess)(nil)

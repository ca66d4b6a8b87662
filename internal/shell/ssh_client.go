package shell

import "io"

// process abstracts over one persistent remote shell: either an in-process
// SSH connection (golang.org/x/crypto/ssh) that opens a single session and
// requests an interactive shell on it, or an external `ssh` child process
// left to negotiate its own login shell. The Shell Channel drives exactly
// one process for its entire lifetime — see channel.go.
//
// This mirrors the sshClient/sshSession split rclone's backend/sftp keeps
// (ssh.go, ssh_internal.go, ssh_external.go) for the same reason: some
// environments can only authenticate through ssh_config/agent setups the Go
// ssh package does not reproduce, so operators need the external-binary
// fallback.
type process interface {
	// Start begins the remote shell. After Start returns, Stdin/Stdout/
	// Stderr are connected and ready.
	Start() error

	Stdin() io.WriteCloser
	Stdout() io.Reader
	Stderr() io.Reader

	// Wait blocks until the remote shell exits and returns its error, if
	// the process ended abnormally.
	Wait() error

	// Close tears down the connection/process without waiting.
	Close() error
}

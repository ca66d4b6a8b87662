// Package shell implements the persistent-shell SSH channel and its worker:
// a long-lived interactive shell session reused across many requests, with
// command framing and output demultiplexing on an un-delimited byte stream
// (spec.md §4.B, §4.C). Grounded on rclone's backend/sftp ssh client split
// (ssh.go/ssh_internal.go/ssh_external.go), collapsed here from "one session
// per command" to "one shell, reused for the channel's whole life".
package shell

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/datalad-ria/ria-remote/internal/sentinel"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// readChunk is a single asynchronously-read slice of bytes, or the terminal
// error (io.EOF or a read failure) that ended the stream.
type readChunk struct {
	data []byte
	err  error
}

// asyncStream continuously pumps Read calls from r onto a channel so the
// channel's main goroutine can select between "more bytes arrived" and "the
// child process exited" without blocking on either exclusively. This is the
// concrete form of spec.md §9's "coroutine-shaped streaming" note.
type asyncStream struct {
	ch chan readChunk
}

func newAsyncStream(r io.Reader) *asyncStream {
	s := &asyncStream{ch: make(chan readChunk, 1)}
	go func() {
		buf := make([]byte, 32*1024)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				s.ch <- readChunk{data: chunk}
			}
			if err != nil {
				s.ch <- readChunk{err: err}
				return
			}
		}
	}()
	return s
}

// Result is the outcome of a single framed command (spec.md §3's "Result"
// variant, OkStream branch collapsed to a materialized byte slice since
// stdout for text commands in this remote is always small — directory
// listings and status lines, never payload bytes).
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Channel owns one SSH subprocess and frames the output of successive
// commands sent to its single persistent shell (spec.md §4.B).
type Channel struct {
	proc process

	stdin  io.WriteCloser
	stdout *asyncStream
	stderr *asyncStream

	exitCh  chan struct{}
	exitErr error

	pendingStdout []byte
}

// NewChannel wraps proc, which must not yet have been started.
func NewChannel(proc process) *Channel {
	return &Channel{proc: proc}
}

// NewSSHChannel builds a Channel backed by the in-process golang.org/x/crypto/ssh
// client, over an already-dialed network connection (dialing is done
// upstream in internal/riaurl, so it stays out of this package).
func NewSSHChannel(conn net.Conn, addr string, config *ssh.ClientConfig) (*Channel, error) {
	p, err := newInternalProcess(conn, addr, config)
	if err != nil {
		return nil, err
	}
	return NewChannel(p), nil
}

// NewExternalSSHChannel builds a Channel that shells out to argv (typically
// {"ssh", ...opts, "user@host"}).
func NewExternalSSHChannel(argv []string) *Channel {
	return NewChannel(newExternalProcess(argv))
}

// Start spawns the child process and swallows the login banner: it writes
// an echo of a unique tag and discards everything read on stdout before
// that exact tag followed by a newline (spec.md §4.B).
func (c *Channel) Start() error {
	if err := c.proc.Start(); err != nil {
		return errors.Wrap(err, "shell: starting process")
	}
	c.stdin = c.proc.Stdin()
	c.stdout = newAsyncStream(c.proc.Stdout())
	c.stderr = newAsyncStream(c.proc.Stderr())
	c.exitCh = make(chan struct{})
	go func() {
		c.exitErr = c.proc.Wait()
		close(c.exitCh)
	}()

	tag := newToken()
	if _, err := io.WriteString(c.stdin, fmt.Sprintf("echo %s\n", tag)); err != nil {
		return c.lostFromWriteErr(err)
	}

	f := sentinel.New([]byte(tag + "\n"))
	for {
		chunk, err := c.nextStdout()
		if err != nil {
			return err
		}
		_, found, trailing := f.Feed(chunk)
		if found {
			c.pendingStdout = trailing
			return nil
		}
	}
}

// Close tears down the underlying process without waiting for it.
func (c *Channel) Close() error {
	return c.proc.Close()
}

// nextStdout blocks for the next chunk of stdout, preferring any chunk
// already buffered over reporting that the process has exited — a process
// that exits right after flushing its final bytes must not lose those
// bytes to a race with the exit-detection goroutine.
func (c *Channel) nextStdout() ([]byte, error) { return c.next(c.stdout) }
func (c *Channel) nextStderr() ([]byte, error) { return c.next(c.stderr) }

func (c *Channel) next(s *asyncStream) ([]byte, error) {
	select {
	case r := <-s.ch:
		return c.classify(r)
	default:
	}
	select {
	case r := <-s.ch:
		return c.classify(r)
	case <-c.exitCh:
		return nil, c.lostFromExit()
	}
}

func (c *Channel) classify(r readChunk) ([]byte, error) {
	if r.err == nil {
		return r.data, nil
	}
	if r.err == io.EOF {
		return nil, &LostError{ExitCode: -1, EOF: true, Cause: r.err}
	}
	return nil, &LostError{ExitCode: -1, EOF: true, Cause: r.err}
}

func (c *Channel) lostFromExit() error {
	code := -1
	if ee, ok := c.exitErr.(interface{ ExitCode() int }); ok {
		code = ee.ExitCode()
	} else if c.exitErr == nil {
		code = 0
	}
	return &LostError{ExitCode: code, Cause: c.exitErr}
}

func (c *Channel) lostFromWriteErr(err error) error {
	select {
	case <-c.exitCh:
		return c.lostFromExit()
	default:
		return &LostError{ExitCode: -1, Cause: err}
	}
}

// Execute runs cmd as a single shell command and returns its framed result.
// The call completes once both the stdout sentinel and the stderr status
// line have been observed (spec.md §4.B step 5).
func (c *Channel) Execute(cmd string) (*Result, error) {
	return c.run(cmd, nil)
}

// ExecuteWithBody runs cmd, and immediately after sending the command line,
// streams body (exactly bodyLen bytes) directly to the remote shell's
// stdin in COPY_BUFSIZE-sized chunks, invoking onChunk after each chunk —
// this is the upload half of spec.md §4.D, built on the same framing as
// Execute so the trailing status line is still captured normally.
func (c *Channel) ExecuteWithBody(cmd string, body io.Reader, bodyLen int64, onChunk func(sent, total int64)) (*Result, error) {
	return c.run(cmd, func() error {
		return c.streamBody(body, bodyLen, onChunk)
	})
}

const copyBufSize = 64 * 1024

func (c *Channel) streamBody(body io.Reader, total int64, onChunk func(sent, total int64)) error {
	buf := make([]byte, copyBufSize)
	var sent int64
	for sent < total {
		want := int64(len(buf))
		if remaining := total - sent; remaining < want {
			want = remaining
		}
		n, err := io.ReadFull(body, buf[:want])
		if n > 0 {
			if _, werr := c.stdin.Write(buf[:n]); werr != nil {
				return c.lostFromWriteErr(werr)
			}
			sent += int64(n)
			if onChunk != nil {
				onChunk(sent, total)
			}
		}
		if err != nil {
			return errors.Wrap(err, "shell: reading upload body")
		}
	}
	return nil
}

// run implements the §4.B framing protocol: generate fresh tokens, transmit
// the wrapped command line (optionally followed by writeBody's raw bytes),
// then drain stdout through a Pattern Filter for the stdout token and
// stderr through a Pattern Filter for the status token.
func (c *Channel) run(cmd string, writeBody func() error) (*Result, error) {
	stdoutTok := newToken()
	statusTok := stdoutTok + ":"

	line := fmt.Sprintf("%s; x=$?; echo -n \"%s\"; echo \"%s$x\" >&2\n", cmd, stdoutTok, statusTok)
	if _, err := io.WriteString(c.stdin, line); err != nil {
		return nil, c.lostFromWriteErr(err)
	}
	if writeBody != nil {
		if err := writeBody(); err != nil {
			return nil, err
		}
	}

	stdout, err := c.drainStdout(stdoutTok)
	if err != nil {
		return nil, err
	}
	stderrTail, code, err := c.drainStderrStatus(statusTok)
	if err != nil {
		return nil, err
	}

	return &Result{Stdout: stdout, Stderr: stderrTail, ExitCode: code}, nil
}

func (c *Channel) drainStdout(token string) ([]byte, error) {
	f := sentinel.New([]byte(token))
	var out bytes.Buffer

	if len(c.pendingStdout) > 0 {
		chunk := c.pendingStdout
		c.pendingStdout = nil
		pre, found, trailing := f.Feed(chunk)
		out.Write(pre)
		if found {
			c.pendingStdout = trailing
			return out.Bytes(), nil
		}
	}

	for {
		chunk, err := c.nextStdout()
		if err != nil {
			return nil, err
		}
		pre, found, trailing := f.Feed(chunk)
		out.Write(pre)
		if found {
			c.pendingStdout = trailing
			return out.Bytes(), nil
		}
	}
}

func (c *Channel) drainStderrStatus(token string) (tail []byte, code int, err error) {
	f := sentinel.New([]byte(token))
	var stderrBuf bytes.Buffer
	var codeBuf []byte

	for {
		chunk, rerr := c.nextStderr()
		if rerr != nil {
			return nil, 0, rerr
		}
		pre, found, trailing := f.Feed(chunk)
		stderrBuf.Write(pre)
		if found {
			codeBuf = trailing
			break
		}
	}

	for !bytes.ContainsRune(codeBuf, '\n') {
		chunk, rerr := c.nextStderr()
		if rerr != nil {
			return nil, 0, rerr
		}
		codeBuf = append(codeBuf, chunk...)
	}
	idx := bytes.IndexByte(codeBuf, '\n')
	codeStr := strings.TrimSpace(string(codeBuf[:idx]))
	code, convErr := strconv.Atoi(codeStr)
	if convErr != nil {
		return nil, 0, errors.Wrapf(convErr, "shell: malformed exit status %q", codeStr)
	}
	return stderrBuf.Bytes(), code, nil
}

// WriteRaw writes a line (the caller must include any trailing newline)
// straight to the remote shell's stdin with no framing applied. Used by the
// transport package to kick off a download's length-prefixed response
// (spec.md §4.D), which is read back via ReadStdout rather than Execute's
// token framing.
func (c *Channel) WriteRaw(line string) error {
	if _, err := io.WriteString(c.stdin, line); err != nil {
		return c.lostFromWriteErr(err)
	}
	return nil
}

// ReadStdout returns the next chunk of raw stdout bytes, bypassing any
// Pattern Filter. It first drains any bytes already buffered by a previous
// Execute call before reading fresh ones from the process.
func (c *Channel) ReadStdout() ([]byte, error) {
	if len(c.pendingStdout) > 0 {
		chunk := c.pendingStdout
		c.pendingStdout = nil
		return chunk, nil
	}
	return c.nextStdout()
}

package transport_test

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/datalad-ria/ria-remote/internal/riaerr"
	"github.com/datalad-ria/ria-remote/internal/shell"
	"github.com/datalad-ria/ria-remote/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote is a miniature in-memory stand-in for the remote filesystem a
// real RIA store's shell would see, driven by the exact command templates
// transport.go emits. This plays the same role rclone's mockfs test
// doubles play for backend/sftp, adapted to this remote's shell-command
// vocabulary rather than SFTP packets.
type fakeRemote struct {
	mu    sync.Mutex
	files map[string][]byte

	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	killed chan struct{}
	once   sync.Once
}

// parseFramed extracts (innerCmd, stdoutTok, statusTok) from a line built
// by the channel's command-framing wrapper: "<cmd>; x=$?; echo -n
// \"<tok>\"; echo \"<tok>:$x\" >&2\n".
func parseFramed(line string) (cmd, stdoutTok, statusTok string, ok bool) {
	const mid = "; x=$?; echo -n \""
	i := strings.Index(line, mid)
	if i < 0 {
		return "", "", "", false
	}
	cmd = line[:i]
	rest := line[i+len(mid):]
	j := strings.Index(rest, "\"; echo \"")
	if j < 0 {
		return "", "", "", false
	}
	stdoutTok = rest[:j]
	rest = rest[j+len("\"; echo \""):]
	k := strings.Index(rest, "$x\" >&2\n")
	if k < 0 {
		return "", "", "", false
	}
	statusTok = rest[:k]
	return cmd, stdoutTok, statusTok, true
}

func parseUpload(cmd string) (length int64, path string, ok bool) {
	const prefix = "head -c "
	if !strings.HasPrefix(cmd, prefix) {
		return 0, "", false
	}
	rest := cmd[len(prefix):]
	i := strings.Index(rest, " > ")
	if i < 0 {
		return 0, "", false
	}
	n, err := strconv.ParseInt(rest[:i], 10, 64)
	if err != nil {
		return 0, "", false
	}
	rest = rest[i+len(" > "):]
	j := strings.Index(rest, " && echo OK")
	if j < 0 {
		return 0, "", false
	}
	return n, rest[:j], true
}

func parseDelete(cmd string) (path string, ok bool) {
	const prefix = "rm -f "
	if !strings.HasPrefix(cmd, prefix) {
		return "", false
	}
	return cmd[len(prefix):], true
}

// parseBannerProbe recognizes Channel.Start's login-banner-swallow probe,
// "echo <tag>\n".
func parseBannerProbe(line string) (tag string, ok bool) {
	const prefix = "echo "
	if !strings.HasPrefix(line, prefix) || !strings.HasSuffix(line, "\n") {
		return "", false
	}
	candidate := strings.TrimSuffix(strings.TrimPrefix(line, prefix), "\n")
	if candidate == "" {
		return "", false
	}
	for _, r := range candidate {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return candidate, true
}

func parseDownload(line string) (path string, ok bool) {
	const prefix = "f="
	const mid = "; if [ -f \"$f\" ]; then wc -c < \"$f\""
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	rest := line[len(prefix):]
	i := strings.Index(rest, mid)
	if i < 0 {
		return "", false
	}
	return rest[:i], true
}

func newFakeRemote() *fakeRemote {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	return &fakeRemote{
		files:   map[string][]byte{},
		stdinR:  inR,
		stdinW:  inW,
		stdoutR: outR,
		stdoutW: outW,
		stderrR: errR,
		stderrW: errW,
		killed:  make(chan struct{}),
	}
}

func (f *fakeRemote) Start() error { go f.serve(); return nil }

func (f *fakeRemote) serve() {
	buf := make([]byte, 0, 4096)
	readLine := func() (string, error) {
		for {
			if idx := bytes.IndexByte(buf, '\n'); idx >= 0 {
				line := string(buf[:idx+1])
				buf = buf[idx+1:]
				return line, nil
			}
			chunk := make([]byte, 4096)
			n, err := f.stdinR.Read(chunk)
			if n > 0 {
				buf = append(buf, chunk[:n]...)
				continue
			}
			if err != nil {
				return "", err
			}
		}
	}

	for {
		line, err := readLine()
		if err != nil {
			return
		}

		if tag, ok := parseBannerProbe(line); ok {
			io.WriteString(f.stdoutW, tag+"\n")
			continue
		}

		if path, ok := parseDownload(line); ok {
			f.mu.Lock()
			data, present := f.files[path]
			f.mu.Unlock()
			if !present {
				io.WriteString(f.stdoutW, "-1\n")
				io.WriteString(f.stdoutW, "\n0\n")
				continue
			}
			fmt.Fprintf(f.stdoutW, "%d\n", len(data))
			f.stdoutW.Write(data)
			io.WriteString(f.stdoutW, "\n0\n")
			continue
		}

		cmd, stdoutTok, statusTok, ok := parseFramed(line)
		if !ok {
			continue
		}
		if n, path, ok := parseUpload(cmd); ok {
			body := make([]byte, n)
			io.ReadFull(f.stdinR, body)
			f.mu.Lock()
			f.files[path] = body
			f.mu.Unlock()
			io.WriteString(f.stdoutW, "OK\n")
			io.WriteString(f.stdoutW, stdoutTok)
			fmt.Fprintf(f.stderrW, "%s0\n", statusTok)
			continue
		}
		if path, ok := parseDelete(cmd); ok {
			f.mu.Lock()
			delete(f.files, path)
			f.mu.Unlock()
			io.WriteString(f.stdoutW, stdoutTok)
			fmt.Fprintf(f.stderrW, "%s0\n", statusTok)
			continue
		}
	}
}

func (f *fakeRemote) Stdin() io.WriteCloser { return f.stdinW }
func (f *fakeRemote) Stdout() io.Reader     { return f.stdoutR }
func (f *fakeRemote) Stderr() io.Reader     { return f.stderrR }

func (f *fakeRemote) Wait() error {
	<-f.killed
	return nil
}

func (f *fakeRemote) Close() error {
	f.once.Do(func() {
		f.stdoutW.Close()
		f.stderrW.Close()
		close(f.killed)
	})
	return nil
}

func startedWorker(t *testing.T) (*shell.Worker, *fakeRemote) {
	t.Helper()
	fr := newFakeRemote()
	ch := shell.NewChannel(fr)
	require.NoError(t, ch.Start())
	return shell.NewWorker(ch), fr
}

func TestUploadThenDownloadRoundTrips(t *testing.T) {
	w, fr := startedWorker(t)
	defer fr.Close()

	content := []byte("content1")
	var progressed []int64
	err := transport.Upload(w, "/store/objects/X9/6J/key/key", bytes.NewReader(content), int64(len(content)), func(done, total int64) {
		progressed = append(progressed, done)
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{int64(len(content))}, progressed)

	var out bytes.Buffer
	err = transport.Download(w, "/store/objects/X9/6J/key/key", &out, nil)
	require.NoError(t, err)
	assert.Equal(t, content, out.Bytes())
}

func TestDownloadMissingFileIsTransferFailed(t *testing.T) {
	w, fr := startedWorker(t)
	defer fr.Close()

	var out bytes.Buffer
	err := transport.Download(w, "/store/objects/nope/nope/key/key", &out, nil)
	require.Error(t, err)
	var rerr *riaerr.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, riaerr.TransferFailed, rerr.Kind)
}

func TestDeleteRemovesFile(t *testing.T) {
	w, fr := startedWorker(t)
	defer fr.Close()

	require.NoError(t, transport.Upload(w, "/store/key", bytes.NewReader([]byte("x")), 1, nil))
	require.NoError(t, transport.Delete(w, "/store/key"))

	var out bytes.Buffer
	err := transport.Download(w, "/store/key", &out, nil)
	require.Error(t, err)
}

func TestUploadLargeFileChunksProgress(t *testing.T) {
	w, fr := startedWorker(t)
	defer fr.Close()

	content := make([]byte, 200*1024)
	for i := range content {
		content[i] = byte(i % 256)
	}
	var last int64
	err := transport.Upload(w, "/store/big", bytes.NewReader(content), int64(len(content)), func(done, total int64) {
		last = done
		assert.LessOrEqual(t, done, total)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), last)

	var out bytes.Buffer
	require.NoError(t, transport.Download(w, "/store/big", &out, nil))
	assert.Equal(t, content, out.Bytes())
}

package riaurl_test

import (
	"testing"

	"github.com/datalad-ria/ria-remote/internal/ria"
	"github.com/datalad-ria/ria-remote/internal/riaerr"
	"github.com/datalad-ria/ria-remote/internal/riaurl"
	"github.com/datalad-ria/ria-remote/internal/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRejectsMissingURL(t *testing.T) {
	_, err := riaurl.Parse("")
	require.Error(t, err)
	var rerr *riaerr.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, riaerr.ConfigError, rerr.Kind)
	assert.Contains(t, rerr.Error(), "Specify a RIA store URL with url=")
}

func TestParseRejectsMissingRiaPrefix(t *testing.T) {
	_, err := riaurl.Parse("ssh://example.org/store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ria+<scheme>://... URL expected for url=")
}

func TestParseRejectsUnsupportedScheme(t *testing.T) {
	_, err := riaurl.Parse("ria+ftp://example.org/store")
	require.Error(t, err)
	var rerr *riaerr.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, riaerr.ConfigError, rerr.Kind)
	assert.Contains(t, rerr.Error(), "unsupported scheme: 'ftp'")
}

func TestParseRejectsReservedHTTPScheme(t *testing.T) {
	_, err := riaurl.Parse("ria+http://example.org/store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scheme: 'http'")
}

func TestParseSSHURLExtractsUserHostPortPath(t *testing.T) {
	u, err := riaurl.Parse("ria+ssh://annex@store.example.org:2222/srv/ria-store")
	require.NoError(t, err)
	assert.Equal(t, riaurl.SchemeSSH, u.Scheme)
	assert.Equal(t, "annex", u.User)
	assert.Equal(t, "store.example.org", u.Host)
	assert.Equal(t, "2222", u.Port)
	assert.Equal(t, "/srv/ria-store", u.Path)
}

func TestParseFileURLExtractsPath(t *testing.T) {
	u, err := riaurl.Parse("ria+file:///srv/ria-store")
	require.NoError(t, err)
	assert.Equal(t, riaurl.SchemeFile, u.Scheme)
	assert.Equal(t, "/srv/ria-store", u.Path)
}

const testDatasetID = "01234567-89ab-cdef-0123-456789abcdef"

func TestBuildDispatchesFileSchemeToLocalHandler(t *testing.T) {
	root := t.TempDir()
	h, err := riaurl.Build("ria+file://"+root, testDatasetID, nil, nil)
	require.NoError(t, err)

	_, ok := h.(*ria.LocalHandler)
	assert.True(t, ok, "expected a *ria.LocalHandler for ria+file:// url")
}

func TestBuildDispatchesSSHSchemeToSSHHandlerUsingSuppliedDialer(t *testing.T) {
	called := false
	dial := func(u *riaurl.StoreURL) (*shell.Worker, error) {
		called = true
		assert.Equal(t, "store.example.org", u.Host)
		return nil, riaerr.New(riaerr.ShellLost, "test dialer never actually connects")
	}

	h, err := riaurl.Build("ria+ssh://annex@store.example.org/srv/ria-store", testDatasetID, nil, dial)
	require.NoError(t, err)

	_, ok := h.(*ria.SSHHandler)
	assert.True(t, ok, "expected a *ria.SSHHandler for ria+ssh:// url")

	// Prepare is the first call that actually needs a live worker; it should
	// invoke our dialer and surface its error rather than panicking.
	err = h.Prepare()
	require.Error(t, err)
	assert.True(t, called, "Build's Dial wrapper must defer to the supplied dial func")
}

func TestBuildRejectsSSHSchemeWithNoDialer(t *testing.T) {
	_, err := riaurl.Build("ria+ssh://annex@store.example.org/srv/ria-store", testDatasetID, nil, nil)
	require.Error(t, err)
	var rerr *riaerr.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, riaerr.ConfigError, rerr.Kind)
}

func TestBuildRejectsInvalidDatasetID(t *testing.T) {
	_, err := riaurl.Build("ria+file:///srv/ria-store", "not-a-uuid", nil, nil)
	require.Error(t, err)
	var rerr *riaerr.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, riaerr.ConfigError, rerr.Kind)
}

package riaurl

import (
	"fmt"

	"github.com/datalad-ria/ria-remote/internal/ria"
	"github.com/datalad-ria/ria-remote/internal/riaerr"
	"github.com/datalad-ria/ria-remote/internal/shell"
)

// Dial builds and starts a Shell Worker for an SSH StoreURL. The real
// implementation (DialSSH in ssh_auth.go) dials TCP and performs the SSH
// handshake; tests substitute an in-memory double.
type Dial func(u *StoreURL) (*shell.Worker, error)

// Build parses rawURL and datasetID and constructs the RIA Handler variant
// appropriate to the URL's scheme (spec.md §4.G). dial is only consulted
// for ria+ssh:// stores; it may be nil when building a ria+file:// store.
func Build(rawURL, datasetID string, reporter ria.Reporter, dial Dial) (ria.Handler, error) {
	u, err := Parse(rawURL)
	if err != nil {
		return nil, err
	}

	id, err := ria.ParseDatasetID(datasetID)
	if err != nil {
		return nil, riaerr.Wrap(riaerr.ConfigError, err, "ria: dataset id")
	}

	switch u.Scheme {
	case SchemeSSH:
		if dial == nil {
			return nil, riaerr.New(riaerr.ConfigError, "ria: no SSH dialer configured")
		}
		layout := ria.NewLayout(u.Path, id)
		return ria.NewSSHHandler(layout, reporter, func() (*shell.Worker, error) { return dial(u) }), nil
	case SchemeFile:
		layout := ria.NewLocalLayout(u.Path, id)
		return ria.NewLocalHandler(layout, reporter), nil
	default:
		return nil, riaerr.New(riaerr.ConfigError, fmt.Sprintf("unsupported scheme: '%s'", u.Scheme))
	}
}

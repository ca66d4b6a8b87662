// Package riaurl implements the Handler Selector and store glue (spec.md
// §4.G): parsing "ria+<scheme>://..." URLs and constructing the RIA
// Handler variant appropriate to the scheme, plus SSH auth resolution for
// the SSH variant's transport dial.
package riaurl

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/datalad-ria/ria-remote/internal/riaerr"
)

// Scheme identifies one of the ria+<scheme> URL forms (spec.md §6).
type Scheme string

const (
	SchemeSSH   Scheme = "ssh"
	SchemeFile  Scheme = "file"
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
)

// supportedSchemes is an immutable table populated once here and read-only
// thereafter — spec.md §9's restatement of the source's module-level
// mutable scheme-registration dict as a SchemeRegistry. http/https are
// recognized but reserved, unimplemented (spec.md §1 Non-goals).
var supportedSchemes = map[Scheme]bool{
	SchemeSSH:   true,
	SchemeFile:  true,
	SchemeHTTP:  false,
	SchemeHTTPS: false,
}

const (
	errExpectedPrefix = "ria+<scheme>://... URL expected for url="
	errMissingURL     = "Specify a RIA store URL with url="
)

// StoreURL is a parsed "ria+<scheme>://[user@]host[:port][/path]" URL
// (spec.md §6). Path is a raw POSIX path, never quoted, matching the
// spec's "URL construction must quote nothing" rule.
type StoreURL struct {
	Scheme Scheme
	User   string
	Host   string
	Port   string
	Path   string
}

// Parse validates raw against spec.md §6's grammar, returning the literal
// ConfigError messages the spec mandates for a missing or malformed URL.
func Parse(raw string) (*StoreURL, error) {
	if raw == "" {
		return nil, riaerr.New(riaerr.ConfigError, errMissingURL)
	}
	if !strings.HasPrefix(raw, "ria+") {
		return nil, riaerr.New(riaerr.ConfigError, errExpectedPrefix)
	}

	u, err := url.Parse(strings.TrimPrefix(raw, "ria+"))
	if err != nil {
		return nil, riaerr.Wrap(riaerr.ConfigError, err, errExpectedPrefix)
	}

	scheme := Scheme(u.Scheme)
	supported, known := supportedSchemes[scheme]
	if !known || !supported {
		return nil, riaerr.New(riaerr.ConfigError, fmt.Sprintf("unsupported scheme: '%s'", u.Scheme))
	}

	sURL := &StoreURL{Scheme: scheme, Path: u.Path}
	if u.User != nil {
		sURL.User = u.User.Username()
	}
	sURL.Host = u.Hostname()
	sURL.Port = u.Port()
	return sURL, nil
}

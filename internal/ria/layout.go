package ria

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// SupportedLayoutVersions enumerates the ria-layout-version tokens this
// client understands. Reading an unrecognized token on prepare is a
// ConfigError rather than being silently trusted (spec.md §9 supplemented
// feature: the original datalad_ria guards this the same way).
var SupportedLayoutVersions = map[string]bool{
	"1": true,
}

// DefaultLayoutVersion is written into a freshly bootstrapped store whose
// ria-layout-version file does not yet exist.
const DefaultLayoutVersion = "1"

// DatasetID is a UUID string identifying a logical dataset within a store
// (spec.md §3).
type DatasetID string

// ParseDatasetID validates raw as a UUID and returns it in its canonical
// hyphenated form, since the on-disk layout splits that exact string as
// id[:3]/id[3:].
func ParseDatasetID(raw string) (DatasetID, error) {
	if raw == "" {
		return "", fmt.Errorf("ria: empty dataset id")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("ria: invalid dataset id %q: %w", raw, err)
	}
	return DatasetID(parsed.String()), nil
}

// Prefix splits the dataset id into the id[:3]/id[3:] two-level directory
// prefix used directly under the store root (spec.md §3).
func (d DatasetID) Prefix() (string, string) {
	s := string(d)
	return s[:3], s[3:]
}

// SanitizeKey re-checks that key contains none of the characters that
// would be unsafe in a shell-quoted path component or a local filesystem
// path. Callers are documented (spec.md §3) to have already sanitized the
// key before it reaches the handler; this is a defensive re-check, not the
// primary sanitizer.
func SanitizeKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("ria: empty key")
	}
	if strings.ContainsAny(key, " \t\r\n\x00/") {
		return "", fmt.Errorf("ria: key %q contains disallowed characters", key)
	}
	return key, nil
}

type joinFunc func(elem ...string) string

// Layout computes the canonical paths within one RIA store for one
// dataset (spec.md §3, §6's on-disk layout diagram). The SSH variant joins
// path components with POSIX slashes regardless of the client's own OS,
// since the remote shell always speaks POSIX paths; the local-filesystem
// variant joins with the host OS's separator.
type Layout struct {
	Root    string
	Dataset DatasetID
	Dirhash DirhashFunc

	join joinFunc
}

// NewLayout builds a Layout for the SSH variant (POSIX path joining).
func NewLayout(root string, dataset DatasetID) *Layout {
	return &Layout{Root: root, Dataset: dataset, Dirhash: DirhashLower, join: path.Join}
}

// NewLocalLayout builds a Layout for the local-filesystem variant (host-OS
// path joining).
func NewLocalLayout(root string, dataset DatasetID) *Layout {
	return &Layout{Root: root, Dataset: dataset, Dirhash: DirhashLower, join: filepath.Join}
}

// DatasetDir is "<root>/<id[:3]>/<id[3:]>".
func (l *Layout) DatasetDir() string {
	a, b := l.Dataset.Prefix()
	return l.join(l.Root, a, b)
}

// ObjectsDir is "<root>/<id[:3]>/<id[3:]>/annex/objects".
func (l *Layout) ObjectsDir() string {
	return l.join(l.DatasetDir(), "annex", "objects")
}

// KeyDir is the key's own directory, "<objects>/<hA>/<hB>/<key>" — this is
// the parent Remove takes away wholesale (the SSH variant deletes it, the
// local variant renames it with a ".deleted" suffix), leaving <hA>/<hB> in
// place.
func (l *Layout) KeyDir(key string) string {
	hA, hB := l.Dirhash(key)
	return l.join(l.ObjectsDir(), hA, hB, key)
}

// KeyPath is the canonical location of key's content (spec.md §3).
func (l *Layout) KeyPath(key string) string {
	return l.join(l.KeyDir(key), key)
}

// TransferDir is the local variant's sibling "transfer/" directory for
// in-progress uploads (spec.md §4.F).
func (l *Layout) TransferDir() string {
	return l.join(l.DatasetDir(), "transfer")
}

// LayoutVersionPath is "<root>/ria-layout-version".
func (l *Layout) LayoutVersionPath() string {
	return l.join(l.Root, "ria-layout-version")
}

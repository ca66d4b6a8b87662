// Package ria implements the RIA store handler (spec.md §4.E/§4.F): a
// dataset-scoped state machine mapping annex keys onto a content-addressed
// directory layout, atomic placement, writable-directory guards, and
// request dispatch, in both SSH-backed and local-filesystem-backed
// variants.
package ria

// Reporter is the capability a RIA Handler needs from its caller: progress
// feedback plus debug/info logging, supplied at construction instead of a
// back-pointer to a "special remote" object (spec.md §9's restatement of
// the source's cyclic special_remote reference as dependency injection).
type Reporter interface {
	Progress(done, total int64)
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
}

// NopReporter discards everything. It is the default when a caller does
// not supply a Reporter, and is convenient in tests.
type NopReporter struct{}

func (NopReporter) Progress(done, total int64)               {}
func (NopReporter) Debug(format string, args ...interface{}) {}
func (NopReporter) Info(format string, args ...interface{})  {}

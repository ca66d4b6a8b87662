package log

import "fmt"

// Reporter adapts this package's leveled logger to the ria.Reporter
// capability (spec.md §9), so the CLI entrypoint can wire a concrete
// default without internal/ria importing internal/log back.
type Reporter struct {
	// Subject is attached to every line this Reporter emits, e.g. the key
	// or operation name currently in flight.
	Subject interface{}
}

func (r Reporter) Progress(done, total int64) {
	if total <= 0 {
		Debugf(r.Subject, "progress: %d bytes", done)
		return
	}
	Debugf(r.Subject, "progress: %d/%d bytes (%.1f%%)", done, total, 100*float64(done)/float64(total))
}

func (r Reporter) Debug(format string, args ...interface{}) {
	Debugf(r.Subject, "%s", fmt.Sprintf(format, args...))
}

func (r Reporter) Info(format string, args ...interface{}) {
	Infof(r.Subject, "%s", fmt.Sprintf(format, args...))
}

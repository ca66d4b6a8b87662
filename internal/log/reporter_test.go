package log_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/datalad-ria/ria-remote/internal/ria"
	rialog "github.com/datalad-ria/ria-remote/internal/log"
	"github.com/stretchr/testify/assert"
)

func TestReporterImplementsRiaReporter(t *testing.T) {
	var _ ria.Reporter = rialog.Reporter{}
}

func TestReporterProgressIncludesPercentage(t *testing.T) {
	var buf bytes.Buffer
	rialog.SetOutput(&buf)
	rialog.SetLevel(rialog.LevelDebug)

	r := rialog.Reporter{Subject: "MD5E-s4--abcd"}
	r.Progress(50, 200)

	assert.True(t, strings.Contains(buf.String(), "50/200"))
	assert.True(t, strings.Contains(buf.String(), "25.0%"))
}

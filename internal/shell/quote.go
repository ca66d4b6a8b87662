package shell

import (
	"regexp"
	"strings"
)

var quoteUnsafeRegex = regexp.MustCompile(`[^A-Za-z0-9_.,:/@\x80-\x{10FFFF}\n-]`)

// Quote escapes str so it cannot cause unintended behavior when spliced
// into a command line sent down the channel. Adapted from rclone's
// backend/sftp shellEscape.
func Quote(str string) string {
	safe := quoteUnsafeRegex.ReplaceAllString(str, `\$0`)
	return strings.Replace(safe, "\n", "'\n'", -1)
}

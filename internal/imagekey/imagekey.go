// Package imagekey derives canonical blob keys for post images.
package imagekey

import (
	"fmt"
	"strings"
	"time"
)

// Build returns the blob key for a post image. The layout is
// {ownerID}/{year}/{month}/{postID}{extension} and must not change: keys are
// persisted in post records and echoed back by upload notifications, so any
// drift breaks confirmation matching for existing objects.
func Build(ownerID, postID, extension string, at time.Time) string {
	return fmt.Sprintf("%s/%d/%d/%s%s", ownerID, at.Year(), int(at.Month()), postID, extension)
}

// Ext returns the extension of filename including the leading dot, taken
// from the last '.'-delimited suffix. Returns "" when filename has no dot.
func Ext(filename string) string {
	if i := strings.LastIndex(filename, "."); i > -1 {
		return filename[i:]
	}
	return ""
}

// pkg/borgmatic/timestamp.go

package borgmatic

import (
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"
)

// borg prints archive times without a zone; those are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"Mon, 2006-01-02 15:04:05",
}

// ParseTimestamp parses an archive start/end time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, cerr.Newf("unrecognised timestamp %q", s)
}

// UnixSeconds returns t as fractional seconds since the epoch, the gauge
// representation of a point in time.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

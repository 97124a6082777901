// pkg/borgmatic/version.go

package borgmatic

import (
	"regexp"

	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_err"
	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-version"
)

// MinimumVersion is the oldest borgmatic whose info and list commands accept --json.
const MinimumVersion = "1.5.0"

var versionPattern = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)

// ParseVersion extracts the first version number from `borgmatic --version`
// output. Older releases print a bare number, some packagers prefix the name.
func ParseVersion(output string) (*version.Version, error) {
	raw := versionPattern.FindString(output)
	if raw == "" {
		return nil, cerr.Newf("no version number in %q", exporter_err.ExtractSummary(output, 1))
	}
	v, err := version.NewVersion(raw)
	if err != nil {
		return nil, cerr.Wrapf(err, "parse borgmatic version %q", raw)
	}
	return v, nil
}

// CheckVersion reports ErrUnsupportedVersion when v is older than MinimumVersion.
func CheckVersion(v *version.Version) error {
	constraint, err := version.NewConstraint(">= " + MinimumVersion)
	if err != nil {
		return cerr.Wrap(err, "minimum version constraint")
	}
	if !constraint.Check(v) {
		return cerr.Mark(
			cerr.WithHintf(cerr.Newf("borgmatic %s is older than %s", v, MinimumVersion),
				"upgrade borgmatic to %s or later for JSON output", MinimumVersion),
			exporter_err.ErrUnsupportedVersion)
	}
	return nil
}

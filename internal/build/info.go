// Package build exposes version metadata stamped in at link time.
package build

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// These variables are set at build time via -ldflags.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

// devVersion stands in for unreleased builds when a semantic version is
// needed.
const devVersion = "0.0.0-dev"

// String returns a single human-readable build info string.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, CommitSHA, BuildDate)
}

// SemVer parses Version. Unstamped builds ("dev" or empty) report 0.0.0-dev.
func SemVer() (*semver.Version, error) {
	v := strings.TrimSpace(Version)
	if v == "" || v == "dev" {
		v = devVersion
	}
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return nil, fmt.Errorf("parsing build version %q: %w", Version, err)
	}
	return parsed, nil
}

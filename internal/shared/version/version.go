// Package version reports the build version stamped at link time.
package version

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Current is set with -ldflags "-X .../internal/shared/version.Current=1.4.0".
var Current = "dev"

// Normalize ensures version string has "v" prefix for semver compatibility.
func Normalize(version string) string {
	version = strings.TrimSpace(version)
	if version == "" {
		return ""
	}
	if !strings.HasPrefix(version, "v") {
		return "v" + version
	}
	return version
}

// String returns the canonical semver of Current, or Current unchanged when
// it is not a release version.
func String() string {
	v := Normalize(Current)
	if semver.IsValid(v) {
		return semver.Canonical(v)
	}
	return Current
}

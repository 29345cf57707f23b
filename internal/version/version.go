// Package version reports the build version.
package version

import (
	"fmt"
	"strings"
)

// Version is set at build time:
//
//	go build -ldflags "-X github.com/Alia5/nscon/internal/version.Version=x.y.z"
var Version = ""

const devVersion = "0.0.1-dev"

// Get returns the normalized version, or a dev marker for untagged builds.
func Get() (string, error) {
	if Version == "" {
		return devVersion, nil
	}
	v := strings.TrimPrefix(Version, "v")
	base, _, _ := strings.Cut(v, "-")
	if strings.Count(base, ".") != 2 {
		return devVersion, fmt.Errorf("invalid version format: %s (expected x.y.z)", Version)
	}
	return v, nil
}

package config

import (
	"github.com/Masterminds/semver/v3"
)

// FormatVersion is the version of the configuration file format written by this build.
const FormatVersion = "0.1.0"

// formatConstraint accepts any 0.1.x file.
var formatConstraint *semver.Constraints

func init() {
	var err error
	formatConstraint, err = semver.NewConstraint("~" + FormatVersion)
	if err != nil {
		panic(err)
	}
}

// IsFormatCompatible reports whether a file declaring version can be read. Invalid
// version strings are not compatible.
func IsFormatCompatible(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return formatConstraint.Check(v)
}

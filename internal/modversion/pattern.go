package modversion

import (
	"fmt"
	"regexp"
	"strings"
)

// VersionMode selects how strictly a Beat Saber version string is anchored.
type VersionMode string

const (
	// VersionStrict anchors both ends: the whole value must be a version.
	VersionStrict VersionMode = "strict"
	// VersionSuffix only anchors the end, so "garbage1.2.3" is accepted.
	VersionSuffix VersionMode = "suffix"
)

var (
	strictVersionPattern = regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+(?:_[0-9]+)?$`)
	suffixVersionPattern = regexp.MustCompile(`[0-9]+\.[0-9]+\.[0-9]+(?:_[0-9]+)?$`)
)

func ParseVersionMode(s string) (VersionMode, error) {
	switch VersionMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", VersionStrict:
		return VersionStrict, nil
	case VersionSuffix:
		return VersionSuffix, nil
	default:
		return "", fmt.Errorf("invalid version mode %q (want strict|suffix)", s)
	}
}

// MatchVersion reports whether s looks like MAJOR.MINOR.PATCH with an
// optional _BUILD suffix. Unknown modes fall back to strict.
func MatchVersion(mode VersionMode, s string) bool {
	if mode == VersionSuffix {
		return suffixVersionPattern.MatchString(s)
	}
	return strictVersionPattern.MatchString(s)
}

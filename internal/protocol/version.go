package protocol

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var versionPattern = regexp.MustCompile(`^(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)(-[a-zA-Z0-9._-]+)?$`)

const snapshotLabel = "SNAPSHOT"

// RedwoodVersion is a validated X.Y.Z[-label] version.
type RedwoodVersion struct {
	raw   string
	major int
	minor int
	patch int
	label string
}

// UnknownVersion is reported by peers too old to announce a version.
var UnknownVersion = MustParseVersion("0.0.0")

// ParseVersion validates s and returns the version.
func ParseVersion(s string) (RedwoodVersion, error) {
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return RedwoodVersion{}, &Error{
			Code:    ErrCodeInvalidVersion,
			Message: fmt.Sprintf("Invalid version format: %s", s),
		}
	}
	v := RedwoodVersion{raw: s, label: strings.TrimPrefix(m[4], "-")}
	var err error
	if v.major, err = strconv.Atoi(m[1]); err != nil {
		return RedwoodVersion{}, versionRangeError(s)
	}
	if v.minor, err = strconv.Atoi(m[2]); err != nil {
		return RedwoodVersion{}, versionRangeError(s)
	}
	if v.patch, err = strconv.Atoi(m[3]); err != nil {
		return RedwoodVersion{}, versionRangeError(s)
	}
	return v, nil
}

func versionRangeError(s string) *Error {
	return &Error{Code: ErrCodeInvalidVersion, Message: fmt.Sprintf("Invalid version format: %s", s)}
}

// MustParseVersion is ParseVersion for constants. It panics on bad input.
func MustParseVersion(s string) RedwoodVersion {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v RedwoodVersion) String() string {
	if v.raw == "" {
		return "0.0.0"
	}
	return v.raw
}

// Label returns the pre-release label without its dash, or "".
func (v RedwoodVersion) Label() string { return v.label }

// Compare returns -1, 0 or 1. Numeric parts compare first. A version
// without a label sorts after any labelled one, SNAPSHOT sorts after any
// other label, and remaining labels compare lexicographically.
func (v RedwoodVersion) Compare(o RedwoodVersion) int {
	if c := cmpInt(v.major, o.major); c != 0 {
		return c
	}
	if c := cmpInt(v.minor, o.minor); c != 0 {
		return c
	}
	if c := cmpInt(v.patch, o.patch); c != 0 {
		return c
	}
	switch {
	case v.label == o.label:
		return 0
	case v.label == "":
		return 1
	case o.label == "":
		return -1
	case v.label == snapshotLabel:
		return 1
	case o.label == snapshotLabel:
		return -1
	}
	return strings.Compare(v.label, o.label)
}

// Less reports whether v sorts before o.
func (v RedwoodVersion) Less(o RedwoodVersion) bool { return v.Compare(o) < 0 }

// MarshalText implements encoding.TextMarshaler.
func (v RedwoodVersion) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *RedwoodVersion) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

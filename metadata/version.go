package metadata

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// Version is a semantic version of a package.
//
// Versions are compared field by field, numerically. A pre-release sorts
// before the release of the same numeric triple. Build metadata carries no
// precedence; it only breaks ties between otherwise equal versions, lexically,
// so that the ordering of any two distinct versions is total.
//
// The zero Version sorts before every other version.
type Version struct {
	sv *semver.Version
}

// NewVersion parses s as a semantic version. Short forms such as "1" or
// "1.2" are accepted and normalized.
func NewVersion(s string) (Version, error) {
	sv, err := semver.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return Version{}, errors.Wrapf(err, "invalid version %q", s)
	}
	return Version{sv: sv}, nil
}

// MustVersion is like NewVersion but panics on error. It exists for fixtures.
func MustVersion(s string) Version {
	v, err := NewVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsZero reports whether v is the zero Version.
func (v Version) IsZero() bool {
	return v.sv == nil
}

// Prerelease returns the pre-release tag, if any.
func (v Version) Prerelease() string {
	if v.sv == nil {
		return ""
	}
	return v.sv.Prerelease()
}

func (v Version) String() string {
	if v.sv == nil {
		return ""
	}
	return v.sv.String()
}

// Compare returns -1, 0 or 1 as v is lower than, equal to, or higher than o.
func (v Version) Compare(o Version) int {
	switch {
	case v.sv == nil && o.sv == nil:
		return 0
	case v.sv == nil:
		return -1
	case o.sv == nil:
		return 1
	}

	if c := v.sv.Compare(o.sv); c != 0 {
		return c
	}
	return strings.Compare(v.sv.Metadata(), o.sv.Metadata())
}

// Equal reports whether v and o are the same version, build metadata
// included.
func (v Version) Equal(o Version) bool {
	return v.Compare(o) == 0
}

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool {
	return v.Compare(o) < 0
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*v = Version{}
		return nil
	}
	nv, err := NewVersion(string(b))
	if err != nil {
		return err
	}
	*v = nv
	return nil
}

package manifest

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is a unit or host API version. A version with a numeric head
// ("1.2", "1.2.0.1234", "v2", "1.0-SNAPSHOT") compares segment by segment,
// missing segments counting as zero; a qualifier after the head sorts below
// the bare head, and two qualifiers follow semver pre-release ordering.
// Anything without a numeric head compares lexically and sorts after every
// numeric version. The empty version is the lowest of all.
type Version struct {
	raw       string
	segments  []string // numeric head, leading zeros stripped
	qualifier string
}

// ParseVersion parses s. It never fails; see Version for the ordering rules.
func ParseVersion(s string) Version {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}
	}
	v := Version{raw: s}
	v.segments, v.qualifier = splitNumericHead(strings.TrimPrefix(s, "v"))
	return v
}

// splitNumericHead splits "1.2.0.1234-SNAPSHOT" into ["1" "2" "0" "1234"]
// and "SNAPSHOT". It returns no segments when s does not start with a digit.
func splitNumericHead(s string) ([]string, string) {
	var segments []string
	rest := s
	for {
		n := 0
		for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
			n++
		}
		if n == 0 {
			break
		}
		seg := strings.TrimLeft(rest[:n], "0")
		if seg == "" {
			seg = "0"
		}
		segments = append(segments, seg)
		rest = rest[n:]
		if len(rest) < 2 || rest[0] != '.' || rest[1] < '0' || rest[1] > '9' {
			break
		}
		rest = rest[1:]
	}
	if len(segments) == 0 {
		return nil, ""
	}
	return segments, strings.TrimLeft(rest, "-.")
}

// String returns the version as written in the manifest.
func (v Version) String() string {
	return v.raw
}

// IsZero reports whether no version was declared.
func (v Version) IsZero() bool {
	return v.raw == ""
}

// Compare returns -1, 0 or 1 when v is lower than, equal to, or greater than o.
func (v Version) Compare(o Version) int {
	if r := v.rank() - o.rank(); r != 0 {
		if r < 0 {
			return -1
		}
		return 1
	}
	switch v.rank() {
	case 0:
		return 0
	case 1:
		if c := compareSegments(v.segments, o.segments); c != 0 {
			return c
		}
		return compareQualifiers(v.qualifier, o.qualifier)
	default:
		return strings.Compare(v.raw, o.raw)
	}
}

// Less reports whether v < o.
func (v Version) Less(o Version) bool {
	return v.Compare(o) < 0
}

// AtLeast reports whether v >= min.
func (v Version) AtLeast(min Version) bool {
	return v.Compare(min) >= 0
}

func (v Version) rank() int {
	switch {
	case v.raw == "":
		return 0
	case len(v.segments) > 0:
		return 1
	default:
		return 2
	}
}

func compareSegments(a, b []string) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		x, y := "0", "0"
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		// Without leading zeros a longer number is a larger one.
		if len(x) != len(y) {
			if len(x) < len(y) {
				return -1
			}
			return 1
		}
		if c := strings.Compare(x, y); c != 0 {
			return c
		}
	}
	return 0
}

// compareQualifiers orders a qualified version below the bare one and two
// qualifiers by semver pre-release precedence, falling back to byte order.
func compareQualifiers(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	}
	pa, errA := semver.NewVersion("0.0.0-" + a)
	pb, errB := semver.NewVersion("0.0.0-" + b)
	if errA == nil && errB == nil {
		return pa.Compare(pb)
	}
	return strings.Compare(a, b)
}

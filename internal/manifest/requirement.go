package manifest

import (
	"fmt"
	"strings"
)

// ParseRequirement parses a "key:minVersion" entry. The version part is
// optional ("key" alone accepts any version). "key:=minVersion" is read the
// same way.
func ParseRequirement(s string) (Requirement, error) {
	s = strings.TrimSpace(s)
	key, version, _ := strings.Cut(s, ":")
	key = strings.TrimSpace(key)
	if key == "" {
		return Requirement{}, fmt.Errorf("required unit %q has no key", s)
	}
	version = strings.TrimPrefix(strings.TrimSpace(version), "=")
	return Requirement{Key: key, MinVersion: ParseVersion(version)}, nil
}

// parseRequirements parses entries in order and keeps the first entry per key.
func parseRequirements(entries []string) ([]Requirement, error) {
	seen := make(map[string]bool, len(entries))
	var result []Requirement
	for _, entry := range entries {
		req, err := ParseRequirement(entry)
		if err != nil {
			return nil, err
		}
		if seen[req.Key] {
			continue
		}
		seen[req.Key] = true
		result = append(result, req)
	}
	return result, nil
}

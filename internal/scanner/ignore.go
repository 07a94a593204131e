package scanner

import (
	"path"
	"strings"
)

// IgnorePattern represents a single gitignore-style pattern.
type IgnorePattern struct {
	pattern     string // Original pattern
	base        string // Directory of the ignore file, "." for the root
	isNegation  bool   // True if pattern starts with !
	isDirectory bool   // True if pattern ends with /
	isAnchored  bool   // True if pattern contains an inner or leading /
	segments    []string
}

// ParseIgnorePattern parses a gitignore-style pattern read from an ignore
// file in directory base.
func ParseIgnorePattern(pattern, base string) IgnorePattern {
	p := IgnorePattern{pattern: pattern, base: base}
	if base == "" {
		p.base = "."
	}

	if strings.HasPrefix(pattern, "!") {
		p.isNegation = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		p.isDirectory = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.Contains(pattern, "/") {
		p.isAnchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	}
	p.segments = strings.Split(pattern, "/")
	return p
}

// IsNegation returns true if this pattern is a negation pattern.
func (p IgnorePattern) IsNegation() bool {
	return p.isNegation
}

// Match reports whether rel, a slash-separated path from the scan root,
// matches the pattern. Directory patterns only match directories.
func (p IgnorePattern) Match(rel string, isDir bool) bool {
	if p.isDirectory && !isDir {
		return false
	}
	if p.base != "." {
		if !strings.HasPrefix(rel, p.base+"/") {
			return false
		}
		rel = strings.TrimPrefix(rel, p.base+"/")
	}
	segs := strings.Split(rel, "/")
	if p.isAnchored {
		return matchSegments(p.segments, segs)
	}
	// An unanchored pattern matches the last segment at any depth.
	return matchSegments(p.segments, segs[len(segs)-1:])
}

// matchSegments matches glob segments against path segments; "**" matches
// any number of segments.
func matchSegments(pattern, segs []string) bool {
	if len(pattern) == 0 {
		return len(segs) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(segs); i++ {
			if matchSegments(pattern[1:], segs[i:]) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	ok, err := path.Match(pattern[0], segs[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], segs[1:])
}

// Ignored applies patterns in order; the last matching pattern wins.
func Ignored(patterns []IgnorePattern, rel string, isDir bool) bool {
	ignored := false
	for _, p := range patterns {
		if p.Match(rel, isDir) {
			ignored = !p.isNegation
		}
	}
	return ignored
}

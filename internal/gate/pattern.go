package gate

import "strings"

// MatchForbiddenPath reports whether rel (a path already normalized
// relative to the project root) matches pattern. Patterns support:
//   - an exact match,
//   - a trailing "/" for a directory-prefix match (pattern "dir/"
//     matches rel "dir" itself or anything under it), and
//   - "*" as a single-path-segment wildcard, matched the way the
//     mail address resolver matches address segments: both sides are
//     split on "/", segment counts must be equal, and each "*"
//     matches any one segment.
func MatchForbiddenPath(pattern, rel string) bool {
	rel = strings.TrimPrefix(rel, "/")
	pattern = strings.TrimPrefix(pattern, "/")

	if strings.HasSuffix(pattern, "/") {
		dir := strings.TrimSuffix(pattern, "/")
		return rel == dir || strings.HasPrefix(rel, dir+"/")
	}
	if pattern == rel {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return false
	}
	return matchSegments(pattern, rel)
}

// matchSegments matches a "/"-separated glob against a path: equal
// segment counts, "*" matches any one segment, otherwise exact
// segment match.
func matchSegments(pattern, rel string) bool {
	pSegs := strings.Split(pattern, "/")
	rSegs := strings.Split(rel, "/")
	if len(pSegs) != len(rSegs) {
		return false
	}
	for i, p := range pSegs {
		if p == "*" {
			continue
		}
		if p != rSegs[i] {
			return false
		}
	}
	return true
}

// MatchAnyForbiddenPath reports whether rel matches any of patterns.
func MatchAnyForbiddenPath(patterns []string, rel string) bool {
	for _, p := range patterns {
		if MatchForbiddenPath(p, rel) {
			return true
		}
	}
	return false
}

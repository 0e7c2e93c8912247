package buffer

import "strings"

// MediaURL builds a full URL from the buffer base URL and a path returned by
// the API. Paths may or may not carry a leading slash; the result has exactly
// one slash between base and path. Absolute http(s) paths are returned as-is
// so public image URLs are never double-prefixed. Returns "" when either part
// is unusable.
func MediaURL(baseURL, path string) string {
	p := strings.TrimSpace(path)
	if p == "" {
		return ""
	}
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	if baseURL == "" {
		return ""
	}
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/" + p
}

// NormalizeEventMediaPath rewrites absolute event paths the push system may
// send (e.g. a filesystem-style path containing "events/") into the
// "/files/events/<folder>/..." form the buffer serves. Paths already under
// /files/events/ pass through unchanged.
func NormalizeEventMediaPath(path string) string {
	if path == "" {
		return ""
	}
	idx := strings.Index(path, "events/")
	if idx >= 0 && !strings.HasPrefix(path, "/files/events/") {
		return "/files/" + path[idx:]
	}
	return path
}

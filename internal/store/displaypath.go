package store

import "strings"

// DisplayPath computes the shortest suffix of filepath (at least two path
// segments when available) that is not already present in existing — the
// set of display_paths currently held by other active documents.
// filepath uses '/' separators.
func DisplayPath(filepath string, existing map[string]bool) string {
	segments := strings.Split(strings.Trim(filepath, "/"), "/")
	if len(segments) == 0 {
		return filepath
	}

	minSegs := 2
	if minSegs > len(segments) {
		minSegs = len(segments)
	}

	for n := minSegs; n <= len(segments); n++ {
		candidate := strings.Join(segments[len(segments)-n:], "/")
		if !existing[candidate] {
			return candidate
		}
	}
	// Every suffix, including the full path, collided: fall back to the
	// full path even though it may still collide: active documents are
	// already unique by filepath, so the caller cannot insert a true
	// duplicate.
	return filepath
}

package utils

import (
	"path/filepath"
	"regexp"
	"strings"
)

var invalidSegmentChars = regexp.MustCompile(`[<>:"|?*]`)

var pathSeparators = regexp.MustCompile(`[\\/]+`)

// SanitizeSegment cleans a single path segment so it is safe on common
// filesystems. Separators become underscores and an empty result collapses
// to "_" so a segment never vanishes from the path.
func SanitizeSegment(segment string) string {
	segment = strings.TrimSpace(segment)
	segment = strings.ReplaceAll(segment, "\\", "_")
	segment = strings.ReplaceAll(segment, "/", "_")
	segment = invalidSegmentChars.ReplaceAllString(segment, "_")
	if segment == "" {
		return "_"
	}
	return segment
}

// SanitizePath splits a rendered template path on both separator styles,
// sanitizes every segment and joins them back with the native separator.
// Empty segments are dropped; a fully empty input returns "".
func SanitizePath(rendered string) string {
	var parts []string
	for _, part := range pathSeparators.Split(rendered, -1) {
		if part == "" {
			continue
		}
		parts = append(parts, SanitizeSegment(part))
	}
	return filepath.Join(parts...)
}

// FlattenSeparators replaces path separators inside a template variable
// value so a title containing "/" cannot spill into a subdirectory.
func FlattenSeparators(value string) string {
	value = strings.ReplaceAll(value, "\\", "_")
	return strings.ReplaceAll(value, "/", "_")
}

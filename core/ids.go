package core

import (
	"fmt"
	"regexp"
	"strings"
)

// Default names used when the caller supplies neither an index name nor a
// video id.
const (
	DefaultNamespace = "frames"
	NamespacePrefix  = "video-"

	maxIndexNameLen = 45
)

var (
	invalidIndexChars = regexp.MustCompile(`[^a-z0-9-]+`)
	dashRuns          = regexp.MustCompile(`-{2,}`)
)

// SanitizeIndexName normalizes an arbitrary string (often a video filename)
// into a valid collection name: lowercase, [a-z0-9-] only, runs of invalid
// characters collapsed to a single dash, trimmed, at most 45 characters.
// Returns fallback when nothing survives.
func SanitizeIndexName(raw, fallback string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	name = invalidIndexChars.ReplaceAllString(name, "-")
	name = dashRuns.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")
	if len(name) > maxIndexNameLen {
		name = strings.Trim(name[:maxIndexNameLen], "-")
	}
	if name == "" {
		return fallback
	}
	return name
}

// NamespaceForVideo maps a video id to its namespace partition. Every video
// owns exactly one namespace; absent id falls back to the shared default.
func NamespaceForVideo(videoID string) string {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return DefaultNamespace
	}
	return NamespacePrefix + sanitizeID(videoID)
}

func sanitizeID(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

// Vector IDs are deterministic functions of (namespace, role/frameID) so
// that re-ingesting the same content overwrites instead of duplicating.
// Every pipeline goes through these three constructors; no other ID scheme
// exists.

func FrameVectorID(namespace, frameID string) string {
	return fmt.Sprintf("%s::%s", namespace, frameID)
}

func SummaryVectorID(namespace string) string {
	return namespace + "::summary"
}

func ManifestVectorID(namespace string) string {
	return namespace + "::manifest"
}

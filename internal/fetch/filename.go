package fetch

import (
	"strings"
	"unicode"
)

// maxFilenameLength caps the sanitized title portion of an artifact name.
const maxFilenameLength = 50

// SafeFilename derives a filesystem-safe name from an asset title: only
// alphanumerics, spaces, hyphens, and underscores survive, trailing spaces
// are trimmed, and the result is capped at maxFilenameLength runes. A
// non-empty streamID is appended as a suffix. An empty result falls back to
// "download".
func SafeFilename(title, streamID string) string {
	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}

	name := strings.TrimRight(b.String(), " ")
	if runes := []rune(name); len(runes) > maxFilenameLength {
		name = string(runes[:maxFilenameLength])
		name = strings.TrimRight(name, " ")
	}
	if name == "" {
		name = "download"
	}

	if streamID != "" {
		name += "_" + streamID
	}
	return name
}

// ArtifactExtension picks a file extension from the stream's container or
// mime information, defaulting to the muxed-video extension "mp4".
func ArtifactExtension(container string) string {
	c := strings.ToLower(strings.TrimSpace(container))
	if _, after, found := strings.Cut(c, "/"); found {
		// "video/webm" style mime types: keep the subtype.
		c = after
	}
	if i := strings.IndexAny(c, "; "); i >= 0 {
		c = c[:i]
	}

	switch c {
	case "webm":
		return "webm"
	case "m4a", "mp4a":
		return "m4a"
	case "mp3", "mpeg":
		return "mp3"
	case "ogg", "opus":
		return "ogg"
	case "mkv", "x-matroska", "matroska":
		return "mkv"
	case "mp4", "":
		return "mp4"
	default:
		return "mp4"
	}
}

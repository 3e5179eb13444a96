package util

import (
	"regexp"
	"strings"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

const maxNameLength = 200

// SafeName replaces every character outside [a-zA-Z0-9._-] with an
// underscore. Empty names become "video".
func SafeName(name string) string {
	if name == "" {
		return "video"
	}

	name = unsafeChars.ReplaceAllString(name, "_")

	// Keep the extension when cutting, it decides the output name later
	if len(name) > maxNameLength {
		ext := ""
		if i := strings.LastIndexByte(name, '.'); i > 0 && len(name)-i <= 16 {
			ext = name[i:]
		}
		name = name[:maxNameLength-len(ext)] + ext
	}

	return name
}

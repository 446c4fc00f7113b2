package file

import (
	"regexp"
	"strings"
)

var unsafeChars = regexp.MustCompile(`[^0-9a-zA-Z._-]`)

// SanitizeFilename reduces an arbitrary client-supplied filename to a
// safe object-key segment. Any path component is stripped, characters
// outside [0-9a-zA-Z._-] become underscores, and leading or trailing
// dots and underscores are trimmed from the base name. A name that
// sanitizes to nothing becomes "document". The extension is carried
// over unchanged.
func SanitizeFilename(filename string) string {
	base := filename
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '\\'); i >= 0 {
		base = base[i+1:]
	}

	name, ext := splitExt(base)

	safe := unsafeChars.ReplaceAllString(name, "_")
	safe = strings.Trim(safe, "._")
	if safe == "" {
		safe = "document"
	}
	return safe + ext
}

// splitExt separates the extension from the base name. Leading dots are
// part of the name, so dotfiles like ".bashrc" have no extension.
func splitExt(base string) (string, string) {
	i := strings.LastIndexByte(base, '.')
	leading := len(base) - len(strings.TrimLeft(base, "."))
	if i < leading {
		return base, ""
	}
	return base[:i], base[i:]
}

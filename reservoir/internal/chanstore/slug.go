// CLAUDE:SUMMARY Name slugification for source ids and filename stems for dedup keys.
package chanstore

import "strings"

// Slugify lowers a human name into a directory-safe slug: ASCII letters and
// digits survive, every other run collapses to a single hyphen.
func Slugify(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	if b.Len() == 0 {
		return "source"
	}
	return b.String()
}

// SanitizeStem turns a dedup key or suggested filename stem into a safe
// filename stem. Unlike Slugify it preserves case and dots, only replacing
// path separators and other hostile characters.
func SanitizeStem(stem string) string {
	var b strings.Builder
	for _, r := range stem {
		switch {
		case r == '/' || r == '\\' || r == 0:
			b.WriteByte('-')
		case r < 0x20:
			// control characters
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Trim(strings.TrimSpace(b.String()), ".")
	if out == "" {
		return "item"
	}
	return out
}

// Stem returns the filename without its final extension.
func Stem(filename string) string {
	if i := strings.LastIndexByte(filename, '.'); i > 0 {
		return filename[:i]
	}
	return filename
}

// Package fsutil maps remote names onto the local backup tree.
package fsutil

import (
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameLength is the longest name, in bytes, SanitizeFilename returns.
const MaxNameLength = 200

// FallbackName is used when a name has nothing left after sanitisation.
const FallbackName = "unnamed"

const illegalChars = `<>:"/\|?*`

// reservedNames are device names Windows refuses as file names, with or
// without an extension.
var reservedNames = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true, "com5": true,
	"com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true, "lpt5": true,
	"lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

// SanitizeFilename makes a remote display name safe to use as a single path
// element on every supported platform. Characters illegal in paths and
// control characters are removed, leading and trailing dots and spaces are
// trimmed and the result is capped at MaxNameLength bytes without splitting
// a UTF-8 sequence. The extension is kept when the name has to be shortened.
// Windows device names such as "NUL" or "com1.txt" get a "_" prefix.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r == utf8.RuneError || unicode.IsControl(r) || strings.ContainsRune(illegalChars, r) {
			continue
		}
		b.WriteRune(r)
	}

	clean := strings.Trim(b.String(), ". ")
	if len(clean) > MaxNameLength {
		clean = truncateKeepingExt(clean, MaxNameLength)
	}
	if clean == "" {
		return FallbackName
	}
	stem, _, _ := strings.Cut(clean, ".")
	if reservedNames[strings.ToLower(strings.TrimRight(stem, " "))] {
		clean = "_" + clean
		if len(clean) > MaxNameLength {
			clean = truncateKeepingExt(clean, MaxNameLength)
		}
	}
	return clean
}

// SanitizeFilenameOr is SanitizeFilename with a caller supplied fallback,
// e.g. "attachment_42" for an attachment whose name is unusable.
func SanitizeFilenameOr(name, fallback string) string {
	clean := SanitizeFilename(name)
	if clean == FallbackName && name != FallbackName {
		return SanitizeFilename(fallback)
	}
	return clean
}

// SanitizePath sanitises every segment and joins them with the OS separator.
// Segments that sanitise to nothing are replaced by FallbackName so the
// depth of the tree is preserved.
func SanitizePath(segments []string) string {
	if len(segments) == 0 {
		return FallbackName
	}
	clean := make([]string, len(segments))
	for i, s := range segments {
		clean[i] = SanitizeFilename(s)
	}
	return filepath.Join(clean...)
}

func truncateKeepingExt(name string, limit int) string {
	ext := filepath.Ext(name)
	if len(ext) >= limit/2 {
		ext = ""
	}
	base := strings.TrimSuffix(name, ext)
	room := limit - len(ext)
	for len(base) > room {
		_, size := utf8.DecodeLastRuneInString(base)
		base = base[:len(base)-size]
	}
	return strings.TrimRight(base, ". ") + ext
}

// Named is an item with a remote id and a display name.
type Named struct {
	ID   int
	Name string
}

// Names hands out distinct names within one directory. Comparison is
// case-insensitive so the layout is stable on case-insensitive filesystems.
type Names struct {
	taken map[string]bool
}

// NewNames returns a set in which the reserved names are already taken.
func NewNames(reserved ...string) *Names {
	n := &Names{taken: make(map[string]bool, len(reserved))}
	for _, r := range reserved {
		n.taken[strings.ToLower(r)] = true
	}
	return n
}

// Claim takes name, or the first free variant of it with "_<id>", then
// "_<id>_2", "_<id>_3" ... inserted before the extension. Each sidecar
// suffix names a companion file (name + suffix) that must be free as well
// and is taken together with the name. The claimed name plus its longest
// sidecar suffix stays within MaxNameLength.
func (n *Names) Claim(name string, id int, sidecars ...string) string {
	limit := MaxNameLength
	for _, s := range sidecars {
		limit = min(limit, MaxNameLength-len(s))
	}
	for attempt := 1; ; attempt++ {
		cand := name
		if attempt > 1 {
			tag := "_" + strconv.Itoa(id)
			if attempt > 2 {
				tag += "_" + strconv.Itoa(attempt-1)
			}
			cand = insertTag(name, tag, limit)
		} else if len(cand) > limit {
			cand = truncateKeepingExt(cand, limit)
		}
		if n.free(cand, sidecars) {
			n.taken[strings.ToLower(cand)] = true
			for _, s := range sidecars {
				n.taken[strings.ToLower(cand+s)] = true
			}
			return cand
		}
	}
}

func (n *Names) free(name string, sidecars []string) bool {
	if n.taken[strings.ToLower(name)] {
		return false
	}
	for _, s := range sidecars {
		if n.taken[strings.ToLower(name+s)] {
			return false
		}
	}
	return true
}

// insertTag puts tag before the extension of name, shortening name first
// so the result fits in limit bytes.
func insertTag(name, tag string, limit int) string {
	if len(name)+len(tag) > limit {
		name = truncateKeepingExt(name, limit-len(tag))
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + tag + ext
}

// UniqueNames sanitises each name and makes the results distinct, keeping
// the first of colliding names and tagging later ones with their id (see
// Names.Claim). Reserved names are never returned. The returned slice is
// index-aligned with items.
func UniqueNames(items []Named, fallback func(Named) string, reserved ...string) []string {
	out := make([]string, len(items))
	names := NewNames(reserved...)
	for i, it := range items {
		name := SanitizeFilename(it.Name)
		if name == FallbackName && fallback != nil {
			name = SanitizeFilename(fallback(it))
		}
		out[i] = names.Claim(name, it.ID)
	}
	return out
}

package storage

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the purpose of an upload; it becomes the key prefix.
type Kind string

const (
	KindProfile Kind = "profile"
	KindBook    Kind = "book"
)

func ParseKind(s string) (Kind, bool) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindProfile, KindBook:
		return k, true
	}
	return "", false
}

// SanitizeFilename keeps ASCII letters, digits, dots and hyphens and
// replaces everything else with a hyphen.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "upload"
	}
	return b.String()
}

// ObjectKey is "<kind>s/<unix nanos>-<sanitized name>".
func ObjectKey(kind Kind, filename string, now time.Time) string {
	return fmt.Sprintf("%ss/%d-%s", kind, now.UnixNano(), SanitizeFilename(filename))
}

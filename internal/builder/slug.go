package builder

import (
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugLength bounds slugs to a single DNS label.
const MaxSlugLength = 63

const (
	fingerprintSuffixLen   = 6
	fingerprintFallbackLen = 8
)

// Slugify derives a filesystem and URL safe identifier from a business name.
// Accents are folded to their base letter, apostrophes are dropped,
// whitespace and underscores become hyphens, and anything else outside
// [a-z0-9-] is removed. Names without Latin letters or digits yield "".
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range norm.NFD.String(strings.ToLower(name)) {
		switch {
		case unicode.Is(unicode.Mn, r):
		case r == '\'' || r == '’' || r == '`':
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || unicode.IsSpace(r):
			b.WriteByte('-')
		}
	}
	return trimSlug(collapseHyphens(b.String()))
}

func collapseHyphens(s string) string {
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return s
}

func trimSlug(s string) string {
	s = strings.Trim(s, "-")
	if len(s) > MaxSlugLength {
		s = strings.TrimRight(s[:MaxSlugLength], "-")
	}
	return s
}

// normalizeName reduces a name to lowercase letters and digits. Two profiles
// with the same normalized name are the same business.
func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Fingerprint identifies a business across rebuilds.
func Fingerprint(name string) string {
	key := normalizeName(name)
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(name))
	}
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// baseSlug is the slug a business starts from. Names that slugify to nothing
// get one derived from their fingerprint.
func baseSlug(name, fingerprint string) string {
	if slug := Slugify(name); slug != "" {
		return slug
	}
	return "site-" + fingerprint[:fingerprintFallbackLen]
}

// suffixedSlug is the slug used when the plain slug belongs to another business.
func suffixedSlug(slug, fingerprint string) string {
	suffix := "-" + fingerprint[:fingerprintSuffixLen]
	base := slug
	if len(base)+len(suffix) > MaxSlugLength {
		base = strings.TrimRight(base[:MaxSlugLength-len(suffix)], "-")
	}
	return base + suffix
}

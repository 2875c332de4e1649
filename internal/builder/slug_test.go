package builder

import (
	"regexp"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Bella's Italian Kitchen", "bellas-italian-kitchen"},
		{"Joe’s Pizza", "joes-pizza"},
		{"  A & B  Plumbing  ", "a-b-plumbing"},
		{"snake_case_name", "snake-case-name"},
		{"--Dashes--Everywhere--", "dashes-everywhere"},
		{"Café Rio", "cafe-rio"},
		{"Crème Brûlée Bistro", "creme-brulee-bistro"},
		{"Ñandú Grill", "nandu-grill"},
		{"寿司 一番", ""},
		{"24/7 Locksmith", "247-locksmith"},
		{"!!!", ""},
		{strings.Repeat("ab ", 40), strings.TrimRight(strings.Repeat("ab-", 21), "-")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestSuffixedSlugFitsLabel(t *testing.T) {
	fp := Fingerprint("x")
	long := strings.Repeat("a", MaxSlugLength)
	got := suffixedSlug(long, fp)
	assert.Len(t, got, MaxSlugLength)
	assert.True(t, strings.HasSuffix(got, "-"+fp[:6]))
	assert.Equal(t, "acme-"+fp[:6], suffixedSlug("acme", fp))
}

func TestFingerprintIgnoresPunctuationAndCase(t *testing.T) {
	assert.Equal(t, Fingerprint("Bella's Italian Kitchen"), Fingerprint("BELLAS ITALIAN KITCHEN"))
	assert.NotEqual(t, Fingerprint("Café Rio"), Fingerprint("Caf Rio"))
	assert.Len(t, Fingerprint("anything"), 64)
}

func TestBaseSlugFallsBackToFingerprint(t *testing.T) {
	fp := Fingerprint("寿司 一番")
	assert.Equal(t, "site-"+fp[:8], baseSlug("寿司 一番", fp))
	assert.NotEqual(t, fp, Fingerprint("らーめん 二郎"))
	assert.NotEqual(t, Fingerprint("!!!"), Fingerprint("???"))

	fp = Fingerprint("Café Rio")
	assert.Equal(t, "cafe-rio", baseSlug("Café Rio", fp))
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// **Property: slugs are URL safe, bounded and stable**
// For any input, the slug is empty or matches [a-z0-9]+(-[a-z0-9]+)*, is at
// most one DNS label long, and slugifying a slug returns it unchanged.

func TestSlugifyProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("slug shape", prop.ForAll(
		func(s string) bool {
			slug := Slugify(s)
			if slug == "" {
				return true
			}
			return slugPattern.MatchString(slug) && len(slug) <= MaxSlugLength
		},
		gen.AnyString(),
	))

	properties.Property("slugify is idempotent", prop.ForAll(
		func(s string) bool {
			slug := Slugify(s)
			return Slugify(slug) == slug
		},
		gen.OneGenOf(gen.AnyString(), gen.AlphaString(), gen.Identifier()),
	))

	properties.Property("every name gets a usable base slug", prop.ForAll(
		func(s string) bool {
			slug := baseSlug(s, Fingerprint(s))
			return slugPattern.MatchString(slug) && len(slug) <= MaxSlugLength
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

package templates

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// **Property: industry normalization is idempotent and lookup never panics**
// For any industry string, normalizing twice equals normalizing once, and
// LookupOrDefault always yields a template with hints.

func TestNormalizeIndustryIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("normalize(normalize(x)) == normalize(x)", prop.ForAll(
		func(s string) bool {
			once := NormalizeIndustry(s)
			return NormalizeIndustry(once) == once &&
				!strings.Contains(once, " ") &&
				!strings.Contains(once, "--")
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestLookupOrDefaultAlwaysYieldsTemplate(t *testing.T) {
	s, err := NewStore()
	if err != nil {
		t.Fatalf("Failed to create template store: %v", err)
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("any industry resolves to a usable template", prop.ForAll(
		func(industry string) bool {
			tmpl, ok := s.LookupOrDefault(industry)
			if tmpl.Hints == "" {
				return false
			}
			_, err := s.Lookup(industry)
			return ok == (err == nil)
		},
		gen.OneGenOf(
			gen.OneConstOf("restaurant", "plumber", "salon", "Real Estate", "cafe"),
			gen.AlphaString(),
		),
	))

	properties.TestingRun(t)
}

package social

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// **Property: X length limit is enforced locally by rune count**
// Any non-blank text of at most 280 runes validates; anything longer fails
// with ErrInvalidPayload.

func TestXTextLimitProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	pub := NewXPublisher("http://unused", XCredentials{BearerToken: "tok"}, &http.Client{})

	properties.Property("validate agrees with rune count", prop.ForAll(
		func(n int, r rune) bool {
			text := strings.Repeat(string(r), n)
			err := pub.Validate(Post{Text: text})
			if n <= MaxXText {
				return err == nil
			}
			return errors.Is(err, ErrInvalidPayload)
		},
		gen.IntRange(1, 2*MaxXText),
		gen.OneConstOf('a', 'é', '日', '🙂'),
	))

	properties.TestingRun(t)
}

// **Property: previews never exceed the preview length**
// For any message, the logged preview is a rune prefix of at most 100 runes.

func TestPreviewTruncationProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("preview is a bounded prefix", prop.ForAll(
		func(s string) bool {
			_, preview := describe(Facebook, Post{Message: s})
			return utf8.RuneCountInString(preview) <= PreviewLength &&
				strings.HasPrefix(s, preview)
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

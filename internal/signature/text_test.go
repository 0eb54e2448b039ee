package signature

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in, want string
	}{
		{"  Add to Cart  ", "add to cart"},
		{"Add   to\n\tCart!", "add to cart"},
		{"SAVE & CONTINUE", "save continue"},
		{"Préférences", "préférences"},
		{"", ""},
		{"...", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Normalize(tc.in), "Normalize(%q)", tc.in)
	}
}

func TestSignificantWords(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"filters stopwords", "Add to the Cart", []string{"add", "cart"}},
		{"drops short words", "Go to My Page", []string{"page"}},
		{"empty", "of the a an", nil},
		{"caps at ten", "alpha bravo charlie delta echo foxtrot golf hotel india juliet kilo lima",
			[]string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel", "india", "juliet"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SignificantWords(tc.in))
		})
	}
}

func TestWordOverlap(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1.0, WordOverlap([]string{"add", "cart"}, []string{"add", "cart", "now"}))
	assert.Equal(t, 0.5, WordOverlap([]string{"add", "cart"}, []string{"add"}))
	assert.Equal(t, 0.0, WordOverlap(nil, []string{"add"}))
	assert.Equal(t, 0.0, WordOverlap([]string{"add"}, nil))
}

// -- Fuzz Testing --

// FuzzNormalize checks the invariants resolution relies on: idempotence,
// no uppercase survivors, and significant words always being significant.
func FuzzNormalize(f *testing.F) {
	f.Add([]byte("Add to Cart"))
	f.Add([]byte("  weird\x00bytes\xff  "))
	f.Fuzz(func(t *testing.T, data []byte) {
		fc := fuzz.NewConsumer(data)
		s, err := fc.GetString()
		if err != nil {
			return
		}
		n := Normalize(s)
		if n != Normalize(n) {
			t.Errorf("Normalize not idempotent for %q: %q vs %q", s, n, Normalize(n))
		}
		for _, w := range SignificantWords(s) {
			if len([]rune(w)) < minWordLen {
				t.Errorf("significant word %q shorter than %d runes", w, minWordLen)
			}
			if _, stop := stopwords[w]; stop {
				t.Errorf("stopword %q leaked into significant words", w)
			}
		}
	})
}

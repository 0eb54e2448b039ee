package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsGeneratedID(t *testing.T) {
	t.Parallel()
	cases := []struct {
		id        string
		generated bool
	}{
		{"save-button", false},
		{"main-nav", false},
		{"checkout", false},
		{"user2", false},
		{"", true},
		{":r1a:", true},
		{"radix-42-trigger", true},
		{"react-select-3-input", true},
		{"ember472", true},
		{"a1b2c3d4e5f6a7b8", true},
		{"f47ac10b-58cc-4372-a567-0e02b2c3d479", true},
		{"field_1042", true},
		{"input-38291", true},
		{"xK9fQ2mN7pL4wR1t", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.generated, IsGeneratedID(tc.id), "IsGeneratedID(%q)", tc.id)
	}
}

func TestIsGeneratedClass(t *testing.T) {
	t.Parallel()
	cases := []struct {
		class     string
		generated bool
	}{
		{"btn", false},
		{"btn-primary", false},
		{"navigation-item", false},
		{"css-1q2w3e", true},
		{"sc-bdVaJa", true},
		{"jss42", true},
		{"makeStyles-root-12", true},
		{"chakra-button", true},
		{"x7f2k9", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.generated, IsGeneratedClass(tc.class), "IsGeneratedClass(%q)", tc.class)
	}
}

func TestStableClasses(t *testing.T) {
	t.Parallel()
	got := StableClasses([]string{"zeta", "css-1q2w3e", "btn", "alpha", "beta", "gamma"})
	// Sorted, generated names dropped, capped at three.
	assert.Equal(t, []string{"alpha", "beta", "btn"}, got)
}

// File: cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRootCmd_VersionFlag tests if the --version flag works correctly.
func TestRootCmd_VersionFlag(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"--version"})
	t.Cleanup(func() {
		_ = rootCmd.Flags().Set("version", "false")
	})

	err := rootCmd.ExecuteContext(context.Background())

	require.NoError(t, err)
	assert.Contains(t, out.String(), Version)
}

// TestRootCmd_NoArgs tests the behavior when no arguments are provided.
func TestRootCmd_NoArgs(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{})

	err := rootCmd.ExecuteContext(context.Background())

	require.NoError(t, err)
	assert.Contains(t, out.String(), "Autoflow replays recorded web interactions")
}

func TestParseVars(t *testing.T) {
	tests := []struct {
		name    string
		flags   []string
		want    map[string]string
		wantErr bool
	}{
		{name: "empty", flags: nil, want: nil},
		{
			name:  "pairs",
			flags: []string{"email=a@b.com", "name=Jane Doe"},
			want:  map[string]string{"email": "a@b.com", "name": "Jane Doe"},
		},
		{
			name:  "value containing equals",
			flags: []string{"query=a=b"},
			want:  map[string]string{"query": "a=b"},
		},
		{name: "missing separator", flags: []string{"email"}, wantErr: true},
		{name: "blank name", flags: []string{"=x"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVars(tt.flags)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://example.com", normalizeURL("example.com"))
	assert.Equal(t, "http://localhost:8080", normalizeURL("http://localhost:8080"))
	assert.Equal(t, "", normalizeURL(""))
}

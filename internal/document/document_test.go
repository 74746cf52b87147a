package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "strips BOM and CRLF",
			input: "\ufeffline one\r\nline two\r\n",
			want:  []string{"line one", "line two", ""},
		},
		{
			name:  "replaces page markers with blank lines",
			input: "before\n# === PAGE 12 === [size: 612x792]\nafter",
			want:  []string{"before", "", "after"},
		},
		{
			name:  "strips positional prefixes",
			input: "[3:14:120,-42] 0110\n[3:15:120,40] Senate",
			want:  []string{"0110", "Senate"},
		},
		{
			name:  "preserves blank lines for index arithmetic",
			input: "a\n\nb",
			want:  []string{"a", "", "b"},
		},
		{
			name:  "replaces non-breaking spaces",
			input: "General Fund",
			want:  []string{"General Fund"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0110_2024_budget.txt")
	require.NoError(t, os.WriteFile(path, []byte("0110\nSenate\n"), 0o600))

	doc, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0110_2024_budget", doc.ID)
	assert.Equal(t, "0110", doc.OrganizationCode)
	assert.Equal(t, 2024, doc.Year)
	assert.Equal(t, []string{"0110", "Senate", ""}, doc.Lines)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}

func TestYearFromID(t *testing.T) {
	tests := []struct {
		id   string
		want int
	}{
		{"0110_2024_budget", 2024},
		{"0250_2023", 2023},
		{"judicial_2022_budget", 2022},
		{"no_year_here", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, yearFromID(tt.id), "id %q", tt.id)
	}
}

package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercases and trims",
			input: "  Department of Finance  ",
			want:  "department of finance",
		},
		{
			name:  "strips punctuation",
			input: "Dept. of Finance",
			want:  "dept of finance",
		},
		{
			name:  "collapses internal whitespace",
			input: "State   Energy\tCommission",
			want:  "state energy commission",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("Dept. of  Finance", "dept of finance"))
	assert.True(t, Equal("Senate", "SENATE"))
	assert.False(t, Equal("Senate", "Assembly"))
}

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		min  float64
		max  float64
	}{
		{
			name: "identical after normalization",
			a:    "Energy Commission",
			b:    "energy commission",
			min:  1,
			max:  1,
		},
		{
			name: "single-character misspelling scores high",
			a:    "Energy Commision",
			b:    "Energy Commission",
			min:  0.9,
			max:  0.99,
		},
		{
			name: "unrelated names score low",
			a:    "Senate",
			b:    "Department of Water Resources",
			min:  0,
			max:  0.3,
		},
		{
			name: "empty against non-empty",
			a:    "",
			b:    "Senate",
			min:  0,
			max:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.a, tt.b)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}

func TestScoreSymmetry(t *testing.T) {
	a, b := "Energy Commision", "State Energy Resources Conservation and Development Commission"
	assert.InDelta(t, Score(a, b), Score(b, a), 1e-9)
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a    string
		b    string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"commission", "commision", 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein(tt.a, tt.b), "levenshtein(%q, %q)", tt.a, tt.b)
	}
}

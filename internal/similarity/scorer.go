// Package similarity provides normalized string similarity scoring used by
// the entity matcher.
package similarity

import (
	"regexp"
	"strings"
)

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9 ]+`)
var spacesRe = regexp.MustCompile(`\s+`)

// Normalize lowercases a name and strips punctuation and extra whitespace so
// that "Dept. of  Finance" and "dept of finance" compare equal.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonAlnumRe.ReplaceAllString(s, " ")
	return spacesRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Equal reports whether two names are equal after normalization.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Score returns a similarity in [0,1] between two names: 1 minus the edit
// distance of their normalized forms divided by the longer length.
func Score(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1
	}
	if na == "" || nb == "" {
		return 0
	}
	dist := levenshtein(na, nb)
	denom := len([]rune(na))
	if l := len([]rune(nb)); l > denom {
		denom = l
	}
	score := 1 - float64(dist)/float64(denom)
	if score < 0 {
		return 0
	}
	return score
}

// levenshtein computes edit distance over runes with the two-row method.
func levenshtein(a, b string) int {
	ar := []rune(a)
	br := []rune(b)
	if len(ar) < len(br) {
		ar, br = br, ar
	}
	if len(br) == 0 {
		return len(ar)
	}

	prev := make([]int, len(br)+1)
	curr := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}

	for i, ca := range ar {
		curr[0] = i + 1
		for j, cb := range br {
			ins := curr[j] + 1
			del := prev[j+1] + 1
			sub := prev[j]
			if ca != cb {
				sub++
			}
			curr[j+1] = min3(ins, del, sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(br)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

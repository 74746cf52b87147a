package segment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfiscal/fisc/internal/common"
	"github.com/openfiscal/fisc/internal/document"
)

func docFromLines(id string, lines ...string) *document.Document {
	return &document.Document{ID: id, Lines: lines}
}

func TestSegmentInlineHeaders(t *testing.T) {
	doc := docFromLines("0110_2024_budget",
		"0110   Senate",
		"The Senate is the upper house.",
		"3-YR EXPENDITURES AND POSITIONS",
		"table rows",
		"0120   Assembly",
		"The Assembly is the lower house.",
		"3-YR EXPENDITURES AND POSITIONS",
		"table rows",
	)

	res, err := New().Segment(doc)
	require.NoError(t, err)

	require.Len(t, res.Sections, 2)
	assert.Equal(t, 2, res.MarkerCount)
	assert.Equal(t, 2, res.HeaderCount)
	assert.False(t, res.Tolerated)

	first := res.Sections[0]
	assert.Equal(t, "0110", first.HeaderCode)
	assert.Equal(t, "Senate", first.HeaderName)
	assert.Equal(t, "0110_2024_budget", first.SourceDocument)
	assert.Equal(t, 0, first.StartLine)
	assert.Equal(t, 4, first.EndLine)

	second := res.Sections[1]
	assert.Equal(t, "0120", second.HeaderCode)
	assert.Equal(t, "Assembly", second.HeaderName)
	assert.Equal(t, 8, second.EndLine)
}

func TestSegmentBareCodeHeader(t *testing.T) {
	doc := docFromLines("doc",
		"0250",
		"Judicial Branch",
		"narrative",
		"3-YR EXPENDITURES AND POSITIONS",
	)

	res, err := New().Segment(doc)
	require.NoError(t, err)

	require.Len(t, res.Sections, 1)
	assert.Equal(t, "0250", res.Sections[0].HeaderCode)
	assert.Equal(t, "Judicial Branch", res.Sections[0].HeaderName)
}

func TestSegmentIgnoresFundCodeRows(t *testing.T) {
	// Fund code rows inside expenditure tables share the bare-code shape
	// but the name line is followed by amount rows.
	doc := docFromLines("doc",
		"0250",
		"Judicial Branch",
		"3-YR EXPENDITURES AND POSITIONS",
		"0001",
		"General Fund",
		"$42,554",
		"46,772",
		"-",
	)

	res, err := New().Segment(doc)
	require.NoError(t, err)

	require.Len(t, res.Sections, 1)
	assert.Equal(t, "0250", res.Sections[0].HeaderCode)
}

func TestSegmentSkipsContinuationFooters(t *testing.T) {
	doc := docFromLines("doc",
		"0110   Senate",
		"3-YR EXPENDITURES AND POSITIONS",
		"0110   Senate - Continued",
		"more table rows",
	)

	res, err := New().Segment(doc)
	require.NoError(t, err)

	require.Len(t, res.Sections, 1)
	assert.Equal(t, 1, res.HeaderCount)
}

func TestSegmentToleratesOffByOne(t *testing.T) {
	// One entity contributed two expenditure tables: two markers, one header.
	doc := docFromLines("doc",
		"0110   Senate",
		"3-YR EXPENDITURES AND POSITIONS",
		"rows",
		"3-YR EXPENDITURES AND POSITIONS",
		"rows",
	)

	res, err := New().Segment(doc)
	require.NoError(t, err)

	assert.True(t, res.Tolerated)
	assert.Equal(t, 2, res.MarkerCount)
	assert.Equal(t, 1, res.HeaderCount)
	require.Len(t, res.Sections, 1)
}

func TestSegmentRejectsLargerMismatch(t *testing.T) {
	doc := docFromLines("doc",
		"0110   Senate",
		"3-YR EXPENDITURES AND POSITIONS",
		"3-YR EXPENDITURES AND POSITIONS",
		"3-YR EXPENDITURES AND POSITIONS",
	)

	res, err := New().Segment(doc)
	require.Error(t, err)

	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3, mismatch.MarkerCount)
	assert.Equal(t, 1, mismatch.HeaderCount)
	assert.ErrorIs(t, err, common.ErrSegmentation)
	assert.Empty(t, res.Sections)
}

func TestSegmentDeduplicatesRepeatedCodes(t *testing.T) {
	doc := docFromLines("doc",
		"0110   Senate",
		"3-YR EXPENDITURES AND POSITIONS",
		"0110   Senate",
		"rows",
	)

	res, err := New().Segment(doc)
	require.NoError(t, err)
	assert.Equal(t, 1, res.HeaderCount)
}

func TestSegmentCustomMarker(t *testing.T) {
	doc := docFromLines("doc",
		"0110   Senate",
		"EXPENDITURE SUMMARY",
	)

	res, err := NewWithMarker("EXPENDITURE SUMMARY").Segment(doc)
	require.NoError(t, err)
	assert.Equal(t, 1, res.MarkerCount)
	assert.Equal(t, 1, res.HeaderCount)
}

func TestSegmentEmptyDocument(t *testing.T) {
	res, err := New().Segment(docFromLines("empty"))
	require.NoError(t, err)
	assert.Empty(t, res.Sections)
	assert.False(t, res.Tolerated)
}

func TestMismatchErrorUnwrap(t *testing.T) {
	err := &MismatchError{DocumentID: "doc", MarkerCount: 5, HeaderCount: 2}
	assert.True(t, errors.Is(err, common.ErrSegmentation))
	assert.Contains(t, err.Error(), "5 expenditure markers")
}

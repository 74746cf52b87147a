package extract

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfiscal/fisc/internal/model"
)

func section(code, name string, body ...string) *model.RawSection {
	return &model.RawSection{
		SourceDocument: "0110_2024_budget",
		HeaderCode:     code,
		HeaderName:     name,
		Body:           body,
	}
}

func TestExtractProgramDescriptions(t *testing.T) {
	sec := section("0110", "Senate",
		"PROGRAM DESCRIPTIONS",
		"0001 - Legislative Activities",
		"Supports the legislative process,",
		"including committee hearings.",
		"",
		"0001010 - Floor Operations",
		"Manages floor sessions.",
		"DETAILED EXPENDITURES BY PROGRAM",
	)

	res := New().Extract(sec)

	require.Len(t, res.Programs, 2)

	first := res.Programs[0]
	assert.Equal(t, "0001000", first.ProjectCode, "4-digit codes widen to 7")
	assert.Equal(t, "Legislative Activities", first.Name)
	assert.Equal(t, "Supports the legislative process, including committee hearings.", first.Description)

	second := res.Programs[1]
	assert.Equal(t, "0001010", second.ProjectCode, "7-digit sub-program codes pass through")
	assert.Equal(t, "Floor Operations", second.Name)
}

func TestExtractDescriptionsStopAtSummaryTable(t *testing.T) {
	sec := section("0110", "Senate",
		"PROGRAM DESCRIPTIONS",
		"0001 - Legislative Activities",
		"Supports the legislative process.",
		"",
		"3-YR EXPENDITURES AND POSITIONS",
		"Positions Expenditures",
		"0001 Legislative Activities 100.0 $42,554",
		"",
		"DETAILED EXPENDITURES BY PROGRAM",
	)

	res := New().Extract(sec)

	require.Len(t, res.Programs, 1)
	assert.Equal(t, "Supports the legislative process.", res.Programs[0].Description,
		"summary-table rows are not description prose")
}

func TestExtractNoBlocksIsLegitimate(t *testing.T) {
	sec := section("0110", "Senate", "pure narrative text")

	res := New().Extract(sec)

	assert.Empty(t, res.Programs)
	assert.Empty(t, res.Allocations)
	assert.Empty(t, res.Failures)
}

func TestExtractAllocations(t *testing.T) {
	sec := section("0110", "Senate",
		"DETAILED EXPENDITURES BY PROGRAM",
		"2022-23* 2023-24* 2024-25*",
		"PROGRAM REQUIREMENTS",
		"0001000",
		"Legislative Activities",
		"State Operations:",
		"0001",
		"General Fund",
		"$42,554",
		"46,772",
		"-",
	)

	res := New().Extract(sec)

	require.Empty(t, res.Failures)
	require.Len(t, res.Allocations, 3)

	years := []int{2022, 2023, 2024}
	amounts := []string{"42554", "46772", "0"}
	for i, a := range res.Allocations {
		assert.Equal(t, "0110", a.OrganizationCode)
		assert.Equal(t, "0001000", a.ProjectCode)
		assert.Equal(t, "0001", a.FundCode)
		assert.Equal(t, "General Fund", a.FundName)
		assert.Equal(t, model.FundingStateOperations, a.FundingType)
		assert.Equal(t, years[i], a.FiscalYear)
		assert.True(t, decimal.RequireFromString(amounts[i]).Equal(a.Amount),
			"allocation %d amount %s", i, a.Amount)
		assert.Equal(t, "0110_2024_budget", a.SourceDocument)
	}
}

func TestExtractFundingTypeSwitch(t *testing.T) {
	sec := section("3360", "Energy Commission",
		"DETAILED EXPENDITURES BY PROGRAM",
		"2022-23 2023-24 2024-25",
		"PROGRAM REQUIREMENTS",
		"State Operations:",
		"0001",
		"General Fund",
		"1",
		"2",
		"3",
		"Local Assistance:",
		"0001",
		"General Fund",
		"4",
		"5",
		"6",
	)

	res := New().Extract(sec)

	require.Empty(t, res.Failures)
	require.Len(t, res.Allocations, 6)
	for _, a := range res.Allocations[:3] {
		assert.Equal(t, model.FundingStateOperations, a.FundingType)
	}
	for _, a := range res.Allocations[3:] {
		assert.Equal(t, model.FundingLocalAssistance, a.FundingType)
	}
}

func TestExtractProjectCodeSwitch(t *testing.T) {
	sec := section("0110", "Senate",
		"DETAILED EXPENDITURES BY PROGRAM",
		"2022-23 2023-24 2024-25",
		"PROGRAM REQUIREMENTS",
		"0001000",
		"State Operations:",
		"0001",
		"General Fund",
		"1",
		"2",
		"3",
		"0002000 - Oversight",
		"0001",
		"General Fund",
		"7",
		"8",
		"9",
	)

	res := New().Extract(sec)

	require.Empty(t, res.Failures)
	require.Len(t, res.Allocations, 6)
	assert.Equal(t, "0001000", res.Allocations[0].ProjectCode)
	assert.Equal(t, "0002000", res.Allocations[3].ProjectCode)
}

func TestExtractFourDigitProgramCodeDisambiguation(t *testing.T) {
	// "0005" followed by a title line with no amount after it is a program
	// code, not a fund code.
	sec := section("0110", "Senate",
		"DETAILED EXPENDITURES BY PROGRAM",
		"2022-23 2023-24 2024-25",
		"PROGRAM REQUIREMENTS",
		"0005",
		"Oversight Program",
		"State Operations:",
		"0001",
		"General Fund",
		"1",
		"2",
		"3",
	)

	res := New().Extract(sec)

	require.Empty(t, res.Failures)
	require.Len(t, res.Allocations, 3)
	assert.Equal(t, "0005000", res.Allocations[0].ProjectCode)
	assert.Equal(t, "0001", res.Allocations[0].FundCode)
}

func TestExtractAbortsIncompleteAmountGroup(t *testing.T) {
	sec := section("0110", "Senate",
		"DETAILED EXPENDITURES BY PROGRAM",
		"2022-23 2023-24 2024-25",
		"PROGRAM REQUIREMENTS",
		"State Operations:",
		"0001",
		"General Fund",
		"1",
		"2",
		"TOTALS, EXPENDITURES",
		"0002",
		"Special Account",
		"4",
		"5",
		"6",
	)

	res := New().Extract(sec)

	// The interrupted group fails alone; the next group still parses.
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0], "0001")
	require.Len(t, res.Allocations, 3)
	assert.Equal(t, "0002", res.Allocations[0].FundCode)
}

func TestExtractTrailingIncompleteGroup(t *testing.T) {
	sec := section("0110", "Senate",
		"DETAILED EXPENDITURES BY PROGRAM",
		"2022-23 2023-24 2024-25",
		"PROGRAM REQUIREMENTS",
		"State Operations:",
		"0001",
		"General Fund",
		"1",
	)

	res := New().Extract(sec)

	assert.Empty(t, res.Allocations)
	require.Len(t, res.Failures, 1)
}

func TestExtractMissingYearHeader(t *testing.T) {
	sec := section("0110", "Senate",
		"DETAILED EXPENDITURES BY PROGRAM",
		"no fiscal years here",
	)

	res := New().Extract(sec)

	assert.Empty(t, res.Allocations)
	assert.Empty(t, res.Failures)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"$42,554", "42554", false},
		{"46,772", "46772", false},
		{"-", "0", false},
		{"$-", "0", false},
		{"-1,234", "-1234", false},
		{"garbage", "", true},
	}

	for _, tt := range tests {
		got, err := parseAmount(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "input %q got %s", tt.input, got)
	}
}

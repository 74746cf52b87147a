package model

// Fund is a funding source keyed by fund code. Name and description follow
// last-write-wins across documents; the ledger audit trail records the
// value they replaced.
type Fund struct {
	FundCode    string
	FundName    string
	FundGroup   string
	Description string
}

// FundGroupFor classifies a fund code into its reporting group by code band.
func FundGroupFor(code string) string {
	switch {
	case code == "0001":
		return "General Fund"
	case code >= "0002" && code <= "2999":
		return "Special Funds"
	case code >= "3000" && code <= "5999":
		return "Bond Funds"
	case code >= "6000" && code <= "8999":
		return "Federal Funds"
	default:
		return "Other Funds"
	}
}

package model

// ProgramDescription is one description observed for a program, with the
// document it came from.
type ProgramDescription struct {
	Text   string
	Source string
}

// Program is a budget program or sub-program keyed by its 7-digit project
// code. Descriptions accumulate across documents rather than overwriting.
type Program struct {
	ProjectCode  string
	Name         string
	Descriptions []ProgramDescription
}

// AddDescription appends a description unless the exact text+source pair is
// already recorded.
func (p *Program) AddDescription(text, source string) bool {
	for _, d := range p.Descriptions {
		if d.Text == text && d.Source == source {
			return false
		}
	}
	p.Descriptions = append(p.Descriptions, ProgramDescription{Text: text, Source: source})
	return true
}

// ExpandProjectCode widens a 4-digit program code to the 7-digit form by
// appending "000". Codes already 7 digits long (sub-programs) pass through.
func ExpandProjectCode(code string) string {
	if len(code) == 4 {
		return code + "000"
	}
	return code
}

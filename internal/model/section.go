package model

// RawSection is the contiguous span of a budget document describing one entity.
// Sections are produced by the segmenter, consumed within a single processing
// pass, and never persisted.
type RawSection struct {
	SourceDocument string
	HeaderCode     string
	HeaderName     string
	Body           []string
	StartLine      int
	EndLine        int
}

// Header returns the section header as it appeared in the document.
func (s *RawSection) Header() string {
	if s.HeaderCode == "" {
		return s.HeaderName
	}
	return s.HeaderCode + " " + s.HeaderName
}

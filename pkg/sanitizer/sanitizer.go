package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reSpaces  = regexp.MustCompile(`\s+`)
	reControl = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

func trim(s string) string {
	return strings.TrimSpace(s)
}

func stripControl(s string) string {
	return reControl.ReplaceAllString(s, "")
}

func collapseSpaces(s string) string {
	return reSpaces.ReplaceAllString(s, " ")
}

// TrimAndNormalize removes control characters and collapses runs of
// whitespace. Used for identifiers and short labels.
func TrimAndNormalize(input string) string {
	p := Pipeline{stripControl, trim, collapseSpaces}
	return p.Apply(input)
}

// SanitizeNote normalizes free-form customer/internal notes while keeping
// their content intact.
func SanitizeNote(input string) string {
	p := Pipeline{stripControl, trim}
	return p.Apply(input)
}

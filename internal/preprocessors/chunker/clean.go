package chunker

import (
	"regexp"
	"strings"
)

// footnotePattern matches "[12] ..." up to the next blank line or end of text.
var footnotePattern = regexp.MustCompile(`(?s)\[\d+\].*?(\n\n|\z)`)

var punctuation = strings.NewReplacer(
	"“", `"`, "”", `"`,
	"‘", "'", "’", "'",
	"—", "-",
)

// Clean strips footnotes and normalises curly quotes and em dashes.
func Clean(text string) string {
	text = footnotePattern.ReplaceAllString(text, "${1}")
	text = punctuation.Replace(text)
	return strings.TrimSpace(text)
}

// Section is a titled part of a larger text, such as one book of an epic.
type Section struct {
	// Title is the heading that opened the section, e.g. "BOOK IV.".
	Title string

	// Number is the 1-based position of the section in the text.
	Number int

	// Body is the text between this heading and the next.
	Body string
}

// SplitSections cuts text at every match of heading. Text before the first
// heading is dropped. No match yields no sections.
func SplitSections(text string, heading *regexp.Regexp) []Section {
	matches := heading.FindAllStringIndex(text, -1)
	sections := make([]Section, 0, len(matches))

	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		sections = append(sections, Section{
			Title:  strings.TrimSpace(text[m[0]:m[1]]),
			Number: i + 1,
			Body:   text[m[1]:end],
		})
	}
	return sections
}

var romanValues = map[rune]int{
	'I': 1, 'V': 5, 'X': 10, 'L': 50, 'C': 100, 'D': 500, 'M': 1000,
}

// romanNumeralPattern finds the numeral in a heading such as "BOOK XIV.".
var romanNumeralPattern = regexp.MustCompile(`\b[IVXLCDM]+\b`)

// RomanNumber returns the value of the first roman numeral in s, or 0.
func RomanNumber(s string) int {
	numeral := romanNumeralPattern.FindString(s)
	total := 0
	for i, r := range numeral {
		v := romanValues[r]
		if i+1 < len(numeral) && v < romanValues[rune(numeral[i+1])] {
			total -= v
		} else {
			total += v
		}
	}
	return total
}

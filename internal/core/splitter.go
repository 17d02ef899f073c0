package core

import "strings"

// DefaultDelimiter separates cells in a CSV export.
const DefaultDelimiter = ','

// SplitLine splits one line of delimited text into fields.
//
// A double quote toggles the in-quotes state and is never copied into a
// field; there is no doubled-quote escape. A delimiter inside quotes is
// literal content. The last field is always emitted, even when the line ends
// inside quotes, so an empty line yields a single empty field.
func SplitLine(line string, delim rune) []string {
	var (
		fields   []string
		field    strings.Builder
		inQuotes bool
	)

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == delim && !inQuotes:
			fields = append(fields, field.String())
			field.Reset()
		default:
			field.WriteRune(r)
		}
	}

	return append(fields, field.String())
}

// splitLines breaks page text on \r\n, \r or \n. A terminating line break
// does not start another line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}

	lines := make([]string, 0, strings.Count(text, "\n")+1)
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			lines = append(lines, text[start:i])
			start = i + 1
		case '\r':
			lines = append(lines, text[start:i])
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

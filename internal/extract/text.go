package extract

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

var (
	blankRunRe = regexp.MustCompile(`\n{3,}`)
	spaceRunRe = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	wordRe     = regexp.MustCompile(`[A-Za-z][A-Za-z\-']+`)
)

// Normalize collapses horizontal whitespace, trims every line, keeps at most
// one blank line between paragraphs and trims the result.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = spaceRunRe.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankRunRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// WordsOnly keeps lower-cased alphabetic words separated by single spaces.
func WordsOnly(text string) string {
	words := wordRe.FindAllString(text, -1)
	for i, word := range words {
		words[i] = strings.ToLower(word)
	}

	return strings.Join(words, " ")
}

func cleanHumanText(value string) string {
	unescaped := html.UnescapeString(value)
	collapsed := collapseSpaces(unescaped)

	return strings.TrimSpace(collapsed)
}

func collapseSpaces(value string) string {
	var builder strings.Builder
	builder.Grow(len(value))

	previousSpace := false
	for _, r := range value {
		if unicode.IsSpace(r) {
			if previousSpace {
				continue
			}

			builder.WriteRune(' ')
			previousSpace = true

			continue
		}

		builder.WriteRune(r)
		previousSpace = false
	}

	return builder.String()
}

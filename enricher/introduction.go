package enricher

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// FallbackLimit is the excerpt cap when no structural cut point exists.
const FallbackLimit = 500

const minPreambleRunes = 20

var headingRe = regexp.MustCompile(`(?m)^#{1,6}\s`)

// Strategy derives an excerpt from fetched markdown. It must be pure.
type Strategy func(markdown string) string

// ExtractIntroduction picks the introductory excerpt of a markdown document:
//  1. text before the first heading, when it has at least 20 characters;
//  2. otherwise the text under the first heading, up to the next heading or
//     blank line, whichever comes first;
//  3. without any heading, the text up to the first blank line;
//  4. the first 500 characters when nothing else applies.
func ExtractIntroduction(markdown string) string {
	text := strings.ReplaceAll(markdown, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return ""
	}

	var intro string
	if loc := headingRe.FindStringIndex(text); loc != nil {
		preamble := strings.TrimSpace(text[:loc[0]])
		if utf8.RuneCountInString(preamble) >= minPreambleRunes {
			return preamble
		}
		intro = underFirstHeading(text[loc[0]:])
	} else {
		intro = untilBlankLine(text)
	}

	if intro == "" {
		intro = strings.TrimSpace(truncate(strings.TrimSpace(text), FallbackLimit))
	}
	return intro
}

// underFirstHeading expects text to start at a heading line.
func underFirstHeading(text string) string {
	_, body, found := strings.Cut(text, "\n")
	if !found {
		return ""
	}
	body = strings.TrimLeft(body, " \t\n")

	end := -1
	if loc := headingRe.FindStringIndex(body); loc != nil {
		end = loc[0]
	}
	if i := strings.Index(body, "\n\n"); i >= 0 && (end < 0 || i < end) {
		end = i
	}
	if end < 0 {
		return strings.TrimSpace(truncate(body, FallbackLimit))
	}
	return strings.TrimSpace(body[:end])
}

func untilBlankLine(text string) string {
	text = strings.TrimLeft(text, " \t\n")
	if i := strings.Index(text, "\n\n"); i >= 0 {
		return strings.TrimSpace(text[:i])
	}
	return strings.TrimSpace(truncate(text, FallbackLimit))
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

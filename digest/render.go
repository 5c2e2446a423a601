package digest

import (
	"fmt"
	"strings"

	"ai-letter/models"
)

// Render formats a digest as a plain-text email body.
func Render(d models.Digest) string {
	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}

	line(d.Greeting)
	line("")
	line(strings.Repeat("=", 20))
	line("")

	for _, s := range d.Sections {
		line(strings.ToUpper(s.Label))
		line("")
		line(s.Intro)
		line("")
		for i, a := range s.Articles {
			line(fmt.Sprintf("%d. %s", i+1, a.Title))
			line("")
			for _, p := range a.BulletPoints {
				line("• " + p)
			}
			line("")
			line("Read more: " + a.URL)
			line("")
			line(strings.Repeat("-", 10))
			line("")
		}
	}

	line(strings.Repeat("=", 20))
	line("")
	b.WriteString(d.Closing)
	return b.String()
}

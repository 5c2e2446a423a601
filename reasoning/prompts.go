package reasoning

import (
	"encoding/xml"
	"fmt"
	"strings"
)

const CURATION_INSTRUCTION = `
You are the editor of a weekly AI newsletter read by engineers and researchers.
You receive a numbered list of candidate articles for one newsletter section.
Pick the articles that are the most newsworthy, novel and useful to practitioners.

Rules:
- Select between %d and %d articles.
- Refer to an article ONLY by its index attribute. Never invent an index that is not in the list.
- Do not repeat an index.
- For every pick write a one or two sentence rationale in %s, regardless of the article language.
- Prefer concrete results, releases and benchmarks over opinion pieces or event announcements.
- The response MUST be a raw JSON object matching the given schema, without markdown code fences.
`

const SUMMARY_INSTRUCTION = `
You are writing the body of an AI newsletter entry.
Read the article and return between 3 and 5 bullet points.

Each bullet point:
- is a single declarative sentence of at most 30 words,
- states one independent, self-contained fact from the article,
- keeps model names, library names and technical terms in their original form (do not translate them),
- uses a neutral, professional tone without hype or emojis.

Order the bullet points from most to least important.
If the text is a bot check or contains no article, return an empty list.
The response MUST be a raw JSON object matching the given schema, without markdown code fences.
`

const FRAMING_INSTRUCTION = `
You write the framing text of an AI newsletter issue.
You receive the sections of this issue with the titles and sources of their articles.

Return:
- greeting: a friendly opening of one or two sentences,
- intros: one entry per section (use the given category value), each one or two sentences introducing the section,
- closing: a short sign-off of one or two sentences.

Do not summarize individual articles and do not invent facts beyond the titles.
The response MUST be a raw JSON object matching the given schema, without markdown code fences.
`

type xmlArticle struct {
	XMLName     xml.Name `xml:"article"`
	Index       int      `xml:"index,attr"`
	Source      string   `xml:"source"`
	Title       string   `xml:"title"`
	Description string   `xml:"description,omitempty"`
}

func curationSystem(req CurationRequest) string {
	lang := req.Language
	if lang == "" {
		lang = "English"
	}
	return fmt.Sprintf(CURATION_INSTRUCTION, req.Min, req.Max, lang)
}

// curationPrompt renders the batch as <article index='n'> entries.
func curationPrompt(req CurationRequest) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Section: %s\n\n<articles>\n", req.Category)
	for _, it := range req.Items {
		out, err := xml.Marshal(xmlArticle{
			Index:       it.Index,
			Source:      it.Source,
			Title:       it.Title,
			Description: it.Description,
		})
		if err != nil {
			return "", err
		}
		b.Write(out)
		b.WriteByte('\n')
	}
	b.WriteString("</articles>\n")
	if req.Correction != "" {
		fmt.Fprintf(&b, "\nYour previous answer was rejected: %s\nAnswer again following the rules exactly.\n", req.Correction)
	}
	return b.String(), nil
}

func summaryPrompt(req SummaryRequest) string {
	return fmt.Sprintf("Title: %s\nSource: %s\n\n%s", req.Title, req.Source, req.Content)
}

func framingPrompt(req FramingRequest) string {
	var b strings.Builder
	for _, s := range req.Sections {
		fmt.Fprintf(&b, "Section category=%s label=%q\n", s.Category, s.Label)
		for _, a := range s.Articles {
			fmt.Fprintf(&b, "- %s (%s)\n", a.Title, a.Source)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

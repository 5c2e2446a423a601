package digest

import (
	"context"
	"strings"
	"time"

	"ai-letter/config"
	"ai-letter/models"
	"ai-letter/reasoning"
)

const (
	DefaultGreeting = "Hello! Here are this week's most notable AI stories."
	DefaultClosing  = "Thanks for reading. See you next week."
)

// Framer produces the greeting, section intros and closing.
type Framer interface {
	Frame(ctx context.Context, req reasoning.FramingRequest) (*reasoning.FramingResponse, error)
}

// SectionInput is one category's summaries in curation order.
type SectionInput struct {
	Category  string
	Summaries []models.ArticleSummary
}

// Assembler 는 요약 결과와 프레이밍 문구로 Digest 를 조립한다.
type Assembler struct {
	framer Framer
	labels map[string]string
	now    func() time.Time
}

func NewAssembler(f Framer, cats []config.CategoryConfig) *Assembler {
	a := &Assembler{framer: f, labels: make(map[string]string, len(cats)), now: time.Now}
	for _, c := range cats {
		a.labels[c.Name] = c.Label
	}
	return a
}

// Assemble keeps section and article order as given. Sections without
// summaries are left out; the framing call is skipped when nothing remains.
func (a *Assembler) Assemble(ctx context.Context, runID string, inputs []SectionInput) models.Digest {
	d := models.Digest{RunID: runID, GeneratedAt: a.now()}
	for _, in := range inputs {
		if len(in.Summaries) == 0 {
			continue
		}
		d.Sections = append(d.Sections, models.Section{
			Category: in.Category,
			Label:    a.label(in.Category),
			Articles: in.Summaries,
		})
	}
	if len(d.Sections) == 0 {
		return d
	}

	framing := a.frame(ctx, runID, d.Sections)
	d.Greeting = firstNonBlank(framing.Greeting, DefaultGreeting)
	d.Closing = firstNonBlank(framing.Closing, DefaultClosing)
	for i := range d.Sections {
		s := &d.Sections[i]
		s.Intro = firstNonBlank(framing.IntroFor(s.Category), defaultIntro(s))
	}
	return d
}

func (a *Assembler) frame(ctx context.Context, runID string, sections []models.Section) reasoning.FramingResponse {
	if a.framer == nil {
		return reasoning.FramingResponse{}
	}

	req := reasoning.FramingRequest{Sections: make([]reasoning.FramingSection, 0, len(sections))}
	for _, s := range sections {
		fs := reasoning.FramingSection{Category: s.Category, Label: s.Label}
		for _, art := range s.Articles {
			fs.Articles = append(fs.Articles, reasoning.FramingArticle{Title: art.Title, Source: string(art.Source)})
		}
		req.Sections = append(req.Sections, fs)
	}

	resp, err := a.framer.Frame(ctx, req)
	if err != nil || resp == nil {
		fields := config.Fields{"run_id": runID}
		if err != nil {
			fields["error"] = err.Error()
		}
		config.WarnWithFields("framing failed, using default framing text", fields)
		return reasoning.FramingResponse{}
	}
	return *resp
}

func (a *Assembler) label(category string) string {
	if l := a.labels[category]; l != "" {
		return l
	}
	return strings.ToUpper(category)
}

func defaultIntro(s *models.Section) string {
	if len(s.Articles) == 1 {
		return "One story worth your time in " + s.Label + "."
	}
	return "The picks from " + s.Label + " this time."
}

func firstNonBlank(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}

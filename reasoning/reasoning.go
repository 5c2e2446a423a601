package reasoning

import (
	"context"
	"errors"
)

// ErrMalformedOutput is returned when the service answer does not decode into
// the expected structure.
var ErrMalformedOutput = errors.New("malformed reasoning output")

// Reasoner 는 외부 추론 서비스 경계다. 큐레이션/요약/프레이밍 세 가지 호출만 노출한다.
type Reasoner interface {
	Curate(ctx context.Context, req CurationRequest) (*CurationResponse, error)
	Summarize(ctx context.Context, req SummaryRequest) (*SummaryResponse, error)
	Frame(ctx context.Context, req FramingRequest) (*FramingResponse, error)
}

// CurationItem is what the service sees of one batch entry. There is
// deliberately no URL field.
type CurationItem struct {
	Index       int    `json:"index"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

type CurationRequest struct {
	Category string
	// Language of the rationale text, fixed per category.
	Language string
	Items    []CurationItem
	Min      int
	Max      int
	// Correction is set on the single corrective re-request.
	Correction string
}

type CurationChoice struct {
	Index     int    `json:"index"`
	Rationale string `json:"rationale"`
}

type CurationResponse struct {
	Category string           `json:"category"`
	Chosen   []CurationChoice `json:"chosen"`
}

type SummaryRequest struct {
	Title   string
	Source  string
	Content string
}

type SummaryResponse struct {
	BulletPoints []string `json:"bullet_points"`
}

type FramingArticle struct {
	Title  string `json:"title"`
	Source string `json:"source"`
}

type FramingSection struct {
	Category string           `json:"category"`
	Label    string           `json:"label"`
	Articles []FramingArticle `json:"articles"`
}

type FramingRequest struct {
	Sections []FramingSection
}

type SectionIntro struct {
	Category string `json:"category"`
	Intro    string `json:"intro"`
}

type FramingResponse struct {
	Greeting string         `json:"greeting"`
	Intros   []SectionIntro `json:"intros"`
	Closing  string         `json:"closing"`
}

// IntroFor returns the intro generated for category, if any.
func (r FramingResponse) IntroFor(category string) string {
	for _, in := range r.Intros {
		if in.Category == category {
			return in.Intro
		}
	}
	return ""
}

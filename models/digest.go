package models

import "time"

// ArticleSummary 뉴스레터에 포함될 기사 요약
// BulletPoints 순서는 의미가 있으며 각 항목은 독립된 한 문장이다.
type ArticleSummary struct {
	Title        string   `bson:"title" json:"title"`
	URL          string   `bson:"url" json:"url"`
	Source       SourceID `bson:"source" json:"source"`
	BulletPoints []string `bson:"summary_points" json:"summary_points"`
}

// Section 은 카테고리 하나에 해당하는 다이제스트 구역이다.
type Section struct {
	Category string           `bson:"category" json:"category"`
	Label    string           `bson:"label" json:"label"`
	Intro    string           `bson:"intro" json:"intro"`
	Articles []ArticleSummary `bson:"articles" json:"articles"`
}

// Digest 한 번의 파이프라인 실행 결과물
type Digest struct {
	RunID       string    `bson:"run_id" json:"run_id"`
	Greeting    string    `bson:"greeting" json:"greeting"`
	Sections    []Section `bson:"sections" json:"sections"`
	Closing     string    `bson:"closing" json:"closing"`
	GeneratedAt time.Time `bson:"generated_at" json:"generated_at"`
}

// ArticleCount returns the number of summarized articles across all sections.
func (d Digest) ArticleCount() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Articles)
	}
	return n
}

// URLs returns the article URLs in document order.
func (d Digest) URLs() []string {
	urls := make([]string, 0, d.ArticleCount())
	for _, s := range d.Sections {
		for _, a := range s.Articles {
			urls = append(urls, a.URL)
		}
	}
	return urls
}

// IsEmpty reports whether the digest carries no articles.
func (d Digest) IsEmpty() bool {
	return d.ArticleCount() == 0
}

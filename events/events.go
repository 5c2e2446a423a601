package events

import (
	"time"

	"ai-letter/models"
)

// EventType 이벤트 타입 정의
type EventType string

const (
	DigestGenerated EventType = "digest.generated"
)

// BaseEvent 모든 이벤트의 기본 구조
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
}

// DigestSection 은 섹션별 기사 수 요약이다.
type DigestSection struct {
	Category     string `json:"category"`
	ArticleCount int    `json:"article_count"`
}

// DigestGeneratedEvent 다이제스트가 저장되고 이력에 기록된 뒤 발행된다.
type DigestGeneratedEvent struct {
	BaseEvent
	RunID       string          `json:"run_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Sections    []DigestSection `json:"sections"`
	URLs        []string        `json:"urls"`
}

// NewDigestGeneratedEvent 는 digest 로부터 알림 이벤트를 만든다.
func NewDigestGeneratedEvent(d models.Digest, now time.Time) DigestGeneratedEvent {
	ev := DigestGeneratedEvent{
		BaseEvent: BaseEvent{
			ID:        d.RunID,
			Type:      DigestGenerated,
			Timestamp: now,
			Source:    "ai-letter",
			Version:   "1",
		},
		RunID:       d.RunID,
		GeneratedAt: d.GeneratedAt,
		URLs:        d.URLs(),
	}
	for _, s := range d.Sections {
		ev.Sections = append(ev.Sections, DigestSection{Category: s.Category, ArticleCount: len(s.Articles)})
	}
	return ev
}

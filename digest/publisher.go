package digest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-letter/artifacts"
	"ai-letter/config"
	"ai-letter/eventbus"
	"ai-letter/events"
	"ai-letter/metrics"
	"ai-letter/models"
)

// ErrPersistence marks a digest that could not be stored. Nothing is
// recorded in history when it is returned.
var ErrPersistence = errors.New("digest persistence failed")

// HistoryRecorder records delivered URLs. history.Memory implements it.
type HistoryRecorder interface {
	RecordDelivered(ctx context.Context, urls []string, at time.Time) error
}

// Publisher 는 다이제스트 저장 → 발송 이력 기록 → 이벤트 발행 순서를 보장한다.
type Publisher struct {
	store   artifacts.Store
	history HistoryRecorder
	bus     eventbus.EventBus
	topic   eventbus.Topic
	now     func() time.Time
}

type PublisherOption func(*Publisher)

// WithEventBus publishes a digest.generated event after every publish.
func WithEventBus(bus eventbus.EventBus, topic eventbus.Topic) PublisherOption {
	return func(p *Publisher) {
		p.bus = bus
		p.topic = topic
	}
}

func NewPublisher(store artifacts.Store, h HistoryRecorder, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store, history: h, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Publish persists d and only then records its URLs as delivered.
func (p *Publisher) Publish(ctx context.Context, d models.Digest) error {
	art := models.DigestArtifact{Digest: d, Text: Render(d)}
	if err := p.store.SaveDigest(ctx, art); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if err := p.history.RecordDelivered(ctx, d.URLs(), d.GeneratedAt); err != nil {
		return fmt.Errorf("record delivered urls: %w", err)
	}
	metrics.DigestsPublished.Inc()

	config.InfoWithFields("digest published", config.Fields{
		"run_id":   d.RunID,
		"articles": d.ArticleCount(),
		"sections": len(d.Sections),
	})

	p.notify(ctx, d)
	return nil
}

func (p *Publisher) notify(ctx context.Context, d models.Digest) {
	if p.bus == nil {
		return
	}
	evt, err := eventbus.NewJSONEvent(d.RunID, events.NewDigestGeneratedEvent(d, p.now()))
	if err == nil {
		err = p.bus.Publish(ctx, p.topic.Base(), evt)
	}
	if err != nil {
		config.ErrorWithFields("digest event publish failed", config.Fields{
			"run_id": d.RunID,
			"topic":  p.topic.Base(),
			"error":  err.Error(),
		})
	}
}

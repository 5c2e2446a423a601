package eventbus

import (
	"context"
	"encoding/json"
	"errors"
)

// Topic은 기본 토픽 이름과 DLQ 토픽 이름을 관리합니다.
type Topic struct {
	base string
}

func NewTopic(base string) Topic {
	return Topic{base: base}
}

func (t Topic) Base() string {
	return t.base
}

// DLQ는 DLQ 토픽 이름을 반환합니다 (예: my_topic.dlq).
func (t Topic) DLQ() string {
	return t.base + ".dlq"
}

// Event는 Kafka 메시지의 페이로드로 사용되는 구조체입니다.
type Event struct {
	ID        string          `json:"id"`
	Payload   json.RawMessage `json:"payload"`
	LastError string          `json:"last_error,omitempty"`
}

// EventBus 는 다이제스트 발행 알림에 필요한 최소 기능만 노출합니다.
type EventBus interface {
	Publish(ctx context.Context, topic string, event Event) error
	Close()
}

// ErrPublishFailed는 브로커가 메시지 전달을 확인하지 못했을 때 반환됩니다.
var ErrPublishFailed = errors.New("이벤트 발행 실패")

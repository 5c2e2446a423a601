package quota

import (
	"context"
	"errors"
	"sync"
	"time"

	"ai-letter/config"
)

// ErrExhausted 일일 한도를 모두 사용한 경우 반환된다.
var ErrExhausted = errors.New("reasoning quota exhausted for today")

// Limiter 는 추론 서비스 호출(큐레이션/요약/프레이밍 공통)에 대한
// 분당 간격과 일일 한도를 인메모리로 관리한다. 프로세스 재시작 시 카운터는 초기화된다.
type Limiter struct {
	mu sync.Mutex

	dailyLimit int
	usedToday  int
	dayKey     string

	interval time.Duration
	lastCall time.Time

	now func() time.Time
}

// NewFromConfig 는 0 이하 값을 "제한 없음"으로 본다.
func NewFromConfig(q config.SummaryQuotaConfig) *Limiter {
	var interval time.Duration
	if q.RequestsPerMinute > 0 {
		interval = time.Minute / time.Duration(q.RequestsPerMinute)
	}
	daily := q.RequestsPerDay
	if daily < 0 {
		daily = 0
	}
	return &Limiter{dailyLimit: daily, interval: interval, now: time.Now}
}

// Unlimited returns a limiter that never waits.
func Unlimited() *Limiter {
	return &Limiter{now: time.Now}
}

// Reserve blocks until the next call is allowed and books it.
// Returns ErrExhausted when the daily budget is used up, or ctx.Err().
func (l *Limiter) Reserve(ctx context.Context) error {
	for {
		l.mu.Lock()

		now := l.now().UTC()
		if key := now.Format("2006-01-02"); l.dayKey != key {
			l.dayKey = key
			l.usedToday = 0
		}

		if l.dailyLimit > 0 && l.usedToday >= l.dailyLimit {
			l.mu.Unlock()
			return ErrExhausted
		}

		var delay time.Duration
		if l.interval > 0 && !l.lastCall.IsZero() {
			delay = l.lastCall.Add(l.interval).Sub(now)
		}
		if delay <= 0 {
			l.usedToday++
			l.lastCall = now
			l.mu.Unlock()
			return nil
		}

		// 락을 풀고 기다린 뒤 상태를 다시 평가한다.
		l.mu.Unlock()
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// UsedToday returns the number of calls booked in the current UTC day.
func (l *Limiter) UsedToday() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dayKey != l.now().UTC().Format("2006-01-02") {
		return 0
	}
	return l.usedToday
}

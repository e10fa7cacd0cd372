package llm

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type answer struct {
	text string
	err  error
}

// stubProvider replays answers in order and repeats the last one.
type stubProvider struct {
	answers []answer
	delay   time.Duration

	mu       sync.Mutex
	calls    int
	requests []Request

	inFlight    int32
	maxInFlight int32
}

func (s *stubProvider) Complete(ctx context.Context, req Request) (string, error) {
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&s.maxInFlight)
		if n <= peak || atomic.CompareAndSwapInt32(&s.maxInFlight, peak, n) {
			break
		}
	}

	s.mu.Lock()
	i := s.calls
	s.calls++
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if i >= len(s.answers) {
		i = len(s.answers) - 1
	}
	return s.answers[i].text, s.answers[i].err
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

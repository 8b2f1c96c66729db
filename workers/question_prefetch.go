package workers

import (
	"context"
	"log"
	"time"

	"trivia-duel-system/services"
)

// QuestionPrefetcher keeps a small buffer of generated questions so the
// question endpoint rarely pays generator latency, and short generator
// outages are absorbed by the buffered stock. It implements
// services.QuestionGenerator and can be dropped in front of any generator.
type QuestionPrefetcher struct {
	generator services.QuestionGenerator
	buffer    chan *services.TriviaQuestion
}

func NewQuestionPrefetcher(generator services.QuestionGenerator, size int) *QuestionPrefetcher {
	if size <= 0 {
		size = 4
	}
	return &QuestionPrefetcher{
		generator: generator,
		buffer:    make(chan *services.TriviaQuestion, size),
	}
}

// Start tops the buffer up on every tick until ctx is canceled.
func (p *QuestionPrefetcher) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.refill(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refill(ctx)
		}
	}
}

func (p *QuestionPrefetcher) refill(ctx context.Context) {
	for len(p.buffer) < cap(p.buffer) {
		item, err := p.generator.Generate(ctx)
		if err != nil {
			log.Printf("[Prefetch] generator error: %v", err)
			return
		}
		select {
		case p.buffer <- item:
		default:
			return
		}
	}
}

// Generate drains the buffer first and falls back to a direct call.
func (p *QuestionPrefetcher) Generate(ctx context.Context) (*services.TriviaQuestion, error) {
	select {
	case item := <-p.buffer:
		return item, nil
	default:
		return p.generator.Generate(ctx)
	}
}

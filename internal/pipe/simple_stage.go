package pipe

import (
	"context"
	"sync"
)

type simpleStage[R any] struct {
	fn          func(ctx context.Context, r *R) ([]*R, error)
	concurrency int
	reportError func(err error)
}

type StageOption[R any] func(s *simpleStage[R])

func Concurrency[R any](concurrency int) StageOption[R] {
	return func(s *simpleStage[R]) {
		if concurrency > 0 {
			s.concurrency = concurrency
		}
	}
}

func (s *simpleStage[R]) process(ctx context.Context, inCh <-chan *R, outCh chan<- *R) {
	defer close(outCh)

	wg := &sync.WaitGroup{}
	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range inCh {
				if ctx.Err() != nil {
					// keep draining so the upstream stage can finish
					continue
				}

				outs, err := s.fn(ctx, r)
				if err != nil {
					s.reportError(err)
					continue
				}

				SendRecords(ctx, outs, outCh)
			}
		}()
	}
	wg.Wait()
}

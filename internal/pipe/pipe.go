package pipe

import (
	"context"
	"sync"
)

const (
	defaultConcurrency = 5
)

// Pipe runs records produced by a source through a chain of concurrent
// stages into a sink. Records leave a stage in completion order, not in the
// order they entered it.
type Pipe[R any] struct {
	source Source[R]
	stages []pipeStage[R]

	errOnce sync.Once
	err     error
	cancel  context.CancelFunc
}

type Source[R any] func(ctx context.Context) ([]*R, error)
type Sink[R any] func(*R) error

type pipeStage[R any] interface {
	process(ctx context.Context, inCh <-chan *R, outCh chan<- *R)
}

func New[R any](source Source[R]) *Pipe[R] {
	return &Pipe[R]{
		source: source,
	}
}

func (p *Pipe[R]) Map(fn func(ctx context.Context, r *R) (*R, error), opts ...StageOption[R]) {
	p.FanOut(func(ctx context.Context, in *R) ([]*R, error) {
		out, err := fn(ctx, in)
		if err != nil {
			return nil, err
		}

		return []*R{out}, nil
	}, opts...)
}

func (p *Pipe[R]) FanOut(fn func(ctx context.Context, r *R) ([]*R, error), opts ...StageOption[R]) {
	stage := &simpleStage[R]{
		fn:          fn,
		concurrency: defaultConcurrency,
		reportError: p.reportError,
	}

	for _, opt := range opts {
		opt(stage)
	}

	p.stages = append(p.stages, stage)
}

func (p *Pipe[R]) Filter(fn func(r *R) bool, opts ...StageOption[R]) {
	p.FanOut(func(_ context.Context, in *R) ([]*R, error) {
		if fn(in) {
			return []*R{in}, nil
		}

		return nil, nil
	}, opts...)
}

// Run starts the source and every stage, feeds the sink from the calling
// goroutine and returns once all records are drained or the first error
// occurs. Cancelling ctx stops every stage.
func (p *Pipe[R]) Run(parent context.Context, sink Sink[R]) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	p.cancel = cancel

	outCh := make(chan *R)
	go p.startSource(ctx, outCh)

	for _, stage := range p.stages {
		inCh := outCh
		outCh = make(chan *R)
		go stage.process(ctx, inCh, outCh)
	}

	for record := range outCh {
		if err := sink(record); err != nil {
			p.reportError(err)
			break
		}
	}

	// Unblock stages still sending after an early exit.
	cancel()
	for range outCh {
	}

	if p.err != nil {
		return p.err
	}
	return parent.Err()
}

func (p *Pipe[R]) startSource(ctx context.Context, outCh chan<- *R) {
	defer close(outCh)
	records, err := p.source(ctx)
	if err != nil {
		p.reportError(err)
		return
	}

	SendRecords(ctx, records, outCh)
}

func (p *Pipe[R]) reportError(err error) {
	p.errOnce.Do(func() {
		p.err = err
		if p.cancel != nil {
			p.cancel()
		}
	})
}

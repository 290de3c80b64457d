package dataflow

import (
	"context"
	"sync"
	"time"
)

// Stream is a read-only channel of messages.
type Stream[T any] <-chan T

// Generate runs fn in its own goroutine and streams every value it emits.
// emit reports false once ctx is done; fn should return at that point.
// The returned channel yields fn's error, or nil, after the stream closes.
func Generate[T any](ctx context.Context, fn func(emit func(T) bool) error, opts ...Option) (Stream[T], <-chan error) {
	cfg := buildConfig(opts)
	out := make(chan T, cfg.bufferSize)
	errc := make(chan error, 1)

	emit := func(v T) bool {
		select {
		case <-ctx.Done():
			return false
		case out <- v:
			return true
		}
	}

	go func() {
		defer close(errc)
		err := fn(emit)
		close(out)
		errc <- err
	}()
	return out, errc
}

// run applies fn to msg honoring the retry configuration.
func run[T any](ctx context.Context, cfg *config, msg T, fn func(T) error) error {
	err := fn(msg)
	for i := 1; err != nil && i <= cfg.maxRetries; i++ {
		if cfg.backoff != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.backoff(i)):
			}
		}
		err = fn(msg)
	}
	return err
}

// Map transforms the stream using the provided function.
// Supports parallelism via WithWorkers; output order is not preserved when workers > 1.
func Map[In, Out any](ctx context.Context, input Stream[In], fn func(In) (Out, error), opts ...Option) Stream[Out] {
	cfg := buildConfig(opts)

	out := make(chan Out, cfg.bufferSize)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-input:
				if !ok {
					return
				}

				var res Out
				err := run(ctx, cfg, msg, func(m In) error {
					var ferr error
					res, ferr = fn(m)
					return ferr
				})
				if err != nil {
					// unhandled errors drop the item too
					if cfg.errorHandler != nil {
						cfg.errorHandler(err)
					}
					continue
				}

				select {
				case <-ctx.Done():
					return
				case out <- res:
				}
			}
		}
	}

	wg.Add(cfg.workers)
	for i := 0; i < cfg.workers; i++ {
		go worker()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// ForEach executes an action for every item in the stream.
// It blocks until the stream is exhausted or ctx is cancelled, and returns the
// first error the error handler did not swallow.
func ForEach[T any](ctx context.Context, input Stream[T], fn func(T) error, opts ...Option) error {
	cfg := buildConfig(opts)

	var wg sync.WaitGroup
	var errOnce sync.Once
	var firstErr error

	worker := func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-input:
				if !ok {
					return
				}

				err := run(ctx, cfg, msg, fn)
				if err == nil {
					continue
				}
				if cfg.errorHandler != nil && cfg.errorHandler(err) {
					continue
				}
				errOnce.Do(func() {
					firstErr = err
				})
			}
		}
	}

	wg.Add(cfg.workers)
	for i := 0; i < cfg.workers; i++ {
		go worker()
	}

	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return firstErr
}

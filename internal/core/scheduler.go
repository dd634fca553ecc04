package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultBatchSize is the number of items dispatched concurrently per chunk.
const DefaultBatchSize = 10

// Chunk splits a list of items into chunks of at most chunkSize.
func Chunk[T any](items []T, chunkSize int) [][]T {
	if chunkSize <= 0 {
		return [][]T{items}
	}
	var chunks [][]T
	for i := 0; i < len(items); i += chunkSize {
		end := min(i+chunkSize, len(items))
		chunks = append(chunks, items[i:end])
	}
	return chunks
}

// Outcome is the settled result of one unit of work.
type Outcome[T, R any] struct {
	Index  int
	Item   T
	Result R
	Err    error
}

// Work is one unit of work applied to an item.
type Work[T, R any] func(ctx context.Context, item T) (R, error)

// Runner applies a unit of work across a list, either serially or in
// fixed-size concurrent chunks.
type Runner struct {
	Serial    bool
	BatchSize int
}

func (r Runner) batchSize() int {
	if r.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return r.BatchSize
}

// Process runs fn over items with the runner's discipline. settle is called
// on the calling goroutine, in item order, for every outcome.
func Process[T, R any](ctx context.Context, r Runner, items []T, fn Work[T, R], settle func(Outcome[T, R])) error {
	if r.Serial {
		return ProcessSerial(ctx, items, fn, settle)
	}
	return ProcessBatched(ctx, items, r.batchSize(), fn, settle)
}

// ProcessSerial handles items one at a time and stops at the first failure.
func ProcessSerial[T, R any](ctx context.Context, items []T, fn Work[T, R], settle func(Outcome[T, R])) error {
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := fn(ctx, item)
		out := Outcome[T, R]{Index: i, Item: item, Result: res, Err: err}
		if settle != nil {
			settle(out)
		}
		if err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

// ProcessBatched dispatches each chunk concurrently and waits for the whole
// chunk before starting the next. A failed item is logged and the run goes
// on; the returned error joins every item failure.
func ProcessBatched[T, R any](ctx context.Context, items []T, batchSize int, fn Work[T, R], settle func(Outcome[T, R])) error {
	var errs []error
	offset := 0
	for n, chunk := range Chunk(items, batchSize) {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}

		outcomes := make([]Outcome[T, R], len(chunk))
		var wg sync.WaitGroup
		for i, item := range chunk {
			wg.Add(1)
			go func(i int, item T) {
				defer wg.Done()
				res, err := fn(ctx, item)
				outcomes[i] = Outcome[T, R]{Index: offset + i, Item: item, Result: res, Err: err}
			}(i, item)
		}
		wg.Wait()

		failed := 0
		for _, out := range outcomes {
			if out.Err != nil {
				failed++
				errs = append(errs, fmt.Errorf("item %d: %w", out.Index, out.Err))
			}
			if settle != nil {
				settle(out)
			}
		}
		if failed > 0 {
			log.Warn().
				Int("batch", n+1).
				Int("failed", failed).
				Int("size", len(chunk)).
				Msg("Failed while processing batch. Continuing...")
		}
		offset += len(chunk)
	}
	return errors.Join(errs...)
}

package envelope

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// ParallelConfig controls parallel batch processing
type ParallelConfig struct {
	// Enabled enables parallel processing
	Enabled bool

	// MaxWorkers is the maximum number of worker goroutines
	// If 0, defaults to runtime.NumCPU()
	MaxWorkers int

	// MinItemsForParallel is the minimum number of items to use parallel processing
	// Below this threshold, sequential processing is used
	// Defaults to 4
	MinItemsForParallel int
}

// Validate checks if the parallel configuration is valid
func (p *ParallelConfig) Validate() error {
	if !p.Enabled {
		return nil // Nothing to validate if disabled
	}

	if p.MaxWorkers < 0 {
		return errors.New("parallel max workers cannot be negative")
	}
	if p.MaxWorkers > 1024 {
		return errors.New("parallel max workers must not exceed 1024")
	}
	if p.MinItemsForParallel < 1 {
		return errors.New("parallel min items threshold must be at least 1")
	}
	if p.MinItemsForParallel > 1000 {
		return errors.New("parallel min items threshold must not exceed 1000")
	}

	return nil
}

// DefaultParallelConfig returns the default parallel processing configuration
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		Enabled:             true,
		MaxWorkers:          runtime.NumCPU(),
		MinItemsForParallel: 4,
	}
}

// BatchError reports the item of a batch that failed
type BatchError struct {
	Index int   // Position of the failed item in the input
	Err   error // Underlying error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch item %d: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// EncryptBatch encrypts every plaintext with c. Results keep input order.
func (c *Cipher) EncryptBatch(ctx context.Context, plaintexts []string, cfg ParallelConfig) ([]string, error) {
	return runBatch(ctx, plaintexts, cfg, c.Encrypt)
}

// DecryptBatch decrypts every envelope with c. Results keep input order.
func (c *Cipher) DecryptBatch(ctx context.Context, envelopes []string, cfg ParallelConfig) ([]string, error) {
	return runBatch(ctx, envelopes, cfg, c.Decrypt)
}

// runBatch applies fn to every input, in parallel when cfg allows it.
// The first failure stops the remaining work and is returned as a *BatchError.
func runBatch(ctx context.Context, inputs []string, cfg ParallelConfig, fn func(string) (string, error)) ([]string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	results := make([]string, len(inputs))
	if len(inputs) == 0 {
		return results, nil
	}

	// Determine number of workers
	numWorkers := cfg.MaxWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	// Limit workers to number of items
	if numWorkers > len(inputs) {
		numWorkers = len(inputs)
	}

	// Check if parallel processing is worth it
	if !cfg.Enabled || len(inputs) < cfg.MinItemsForParallel {
		for i, in := range inputs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out, err := fn(in)
			if err != nil {
				return nil, &BatchError{Index: i, Err: err}
			}
			results[i] = out
		}
		return results, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Parallel processing
	var wg sync.WaitGroup
	jobChan := make(chan int)
	errChan := make(chan error, numWorkers)

	fail := func(err error) {
		select {
		case errChan <- err:
		default:
		}
		cancel()
	}

	// Start workers
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					// Convert panic to error
					fail(fmt.Errorf("panic in batch worker: %v", r))
				}
			}()
			for idx := range jobChan {
				out, err := fn(inputs[idx])
				if err != nil {
					fail(&BatchError{Index: idx, Err: err})
					return
				}
				results[idx] = out
			}
		}()
	}

	// Send jobs
send:
	for i := range inputs {
		select {
		case jobChan <- i:
		case <-ctx.Done():
			break send
		}
	}
	close(jobChan)

	// Wait for completion
	wg.Wait()
	close(errChan)

	// Check for errors
	if err, ok := <-errChan; ok {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

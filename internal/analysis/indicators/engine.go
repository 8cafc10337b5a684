// Package indicators provides technical indicator calculations with parallel processing.
package indicators

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"spread-backtester/internal/models"
)

// Indicator defines the interface for single-value technical indicators.
type Indicator interface {
	Name() string
	Calculate(candles []models.Candle) ([]float64, error)
	Period() int
}

// MultiValueIndicator defines the interface for indicators that return multiple values.
type MultiValueIndicator interface {
	Name() string
	Calculate(candles []models.Candle) (map[string][]float64, error)
	Period() int
}

// Results holds the output of one engine run, keyed by indicator name.
type Results struct {
	Single map[string][]float64
	Multi  map[string]map[string][]float64
}

// Engine provides parallel indicator calculation using a worker pool.
type Engine struct {
	workers     int
	indicators  map[string]Indicator
	multiIndics map[string]MultiValueIndicator
	mu          sync.RWMutex
}

// NewEngine creates a new indicator engine with the specified number of workers.
func NewEngine(workers int) *Engine {
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		workers:     workers,
		indicators:  make(map[string]Indicator),
		multiIndics: make(map[string]MultiValueIndicator),
	}
}

// RegisterIndicator registers a single-value indicator.
func (e *Engine) RegisterIndicator(ind Indicator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.indicators[ind.Name()] = ind
}

// RegisterMultiIndicator registers a multi-value indicator.
func (e *Engine) RegisterMultiIndicator(ind MultiValueIndicator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.multiIndics[ind.Name()] = ind
}

// CalculateAll calculates all registered indicators in parallel. The first
// indicator failure is returned and the partial results are discarded.
func (e *Engine) CalculateAll(ctx context.Context, candles []models.Candle) (*Results, error) {
	e.mu.RLock()
	jobs := make([]func() error, 0, len(e.indicators)+len(e.multiIndics))
	results := &Results{
		Single: make(map[string][]float64, len(e.indicators)),
		Multi:  make(map[string]map[string][]float64, len(e.multiIndics)),
	}
	var mu sync.Mutex
	for _, ind := range e.indicators {
		ind := ind
		jobs = append(jobs, func() error {
			values, err := ind.Calculate(candles)
			if err != nil {
				return fmt.Errorf("%s: %w", ind.Name(), err)
			}
			mu.Lock()
			results.Single[ind.Name()] = values
			mu.Unlock()
			return nil
		})
	}
	for _, ind := range e.multiIndics {
		ind := ind
		jobs = append(jobs, func() error {
			values, err := ind.Calculate(candles)
			if err != nil {
				return fmt.Errorf("%s: %w", ind.Name(), err)
			}
			mu.Lock()
			results.Multi[ind.Name()] = values
			mu.Unlock()
			return nil
		})
	}
	e.mu.RUnlock()

	if err := e.run(ctx, jobs); err != nil {
		return nil, err
	}
	return results, nil
}

// run executes jobs on the worker pool and returns the first error.
func (e *Engine) run(ctx context.Context, jobs []func() error) error {
	work := make(chan func() error, len(jobs))
	for _, job := range jobs {
		work <- job
	}
	close(work)

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() { firstErr = err })
	}

	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range work {
				select {
				case <-ctx.Done():
					fail(ctx.Err())
					return
				default:
					if err := job(); err != nil {
						fail(err)
					}
				}
			}
		}()
	}

	wg.Wait()
	return firstErr
}

// Calculate calculates a specific indicator by name.
func (e *Engine) Calculate(ctx context.Context, name string, candles []models.Candle) ([]float64, error) {
	e.mu.RLock()
	ind, ok := e.indicators[name]
	e.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("indicator %s not found", name)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return ind.Calculate(candles)
	}
}

// CalculateMulti calculates a specific multi-value indicator by name.
func (e *Engine) CalculateMulti(ctx context.Context, name string, candles []models.Candle) (map[string][]float64, error) {
	e.mu.RLock()
	ind, ok := e.multiIndics[name]
	e.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("multi-value indicator %s not found", name)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return ind.Calculate(candles)
	}
}

// ListIndicators returns the sorted names of all registered indicators.
func (e *Engine) ListIndicators() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.indicators)+len(e.multiIndics))
	for name := range e.indicators {
		names = append(names, name)
	}
	for name := range e.multiIndics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

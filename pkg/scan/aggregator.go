package scan

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Result orders.
const (
	OrderCompletion = "completion"
	OrderIndex      = "index"
)

var (
	// ErrUnsupportedFormat is returned for unknown output formats.
	ErrUnsupportedFormat = errors.New("unsupported output format")
	// ErrUnsupportedOrder is returned for unknown result orders.
	ErrUnsupportedOrder = errors.New("unsupported result order")
)

// Aggregator collects results as they complete. It is safe for concurrent use.
type Aggregator struct {
	mu      sync.Mutex
	results []Result
}

// NewAggregator creates an aggregator sized for n results.
func NewAggregator(n int) *Aggregator {
	return &Aggregator{results: make([]Result, 0, n)}
}

// Add records one result.
func (a *Aggregator) Add(results ...Result) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.results = append(a.results, results...)
}

// Results returns a copy of the collected results in the given order:
// OrderCompletion (as added) or OrderIndex (by job ordinal).
func (a *Aggregator) Results(order string) ([]Result, error) {
	a.mu.Lock()
	out := slices.Clone(a.results)
	a.mu.Unlock()

	switch order {
	case OrderCompletion, "":
		return out, nil
	case OrderIndex:
		slices.SortStableFunc(out, func(x, y Result) int { return x.Index - y.Index })

		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOrder, order)
	}
}

// Summary condenses a scan run.
type Summary struct {
	Jobs          int
	Succeeded     int
	Failed        int
	ByKind        map[ErrorKind]int
	TotalSeen     int64
	TotalExcluded int64
}

// Summary counts results by outcome.
func (a *Aggregator) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	summary := Summary{Jobs: len(a.results), ByKind: make(map[ErrorKind]int)}

	for _, result := range a.results {
		if result.Failed() {
			summary.Failed++
			summary.ByKind[result.ErrorKind]++

			continue
		}

		summary.Succeeded++
		summary.TotalSeen += result.TotalSeen
		summary.TotalExcluded += result.TotalExcluded
	}

	return summary
}

// Encode writes results as a single document in the given format.
func Encode(w io.Writer, results []Result, format string) error {
	if results == nil {
		results = []Result{}
	}

	switch format {
	case FormatJSON, "":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		err := encoder.Encode(results)
		if err != nil {
			return fmt.Errorf("encode json results: %w", err)
		}

		return nil
	case FormatYAML:
		data, err := yaml.Marshal(results)
		if err != nil {
			return fmt.Errorf("encode yaml results: %w", err)
		}

		_, err = w.Write(data)
		if err != nil {
			return fmt.Errorf("write yaml results: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Package benchmarks provides synthetic translation workloads and a harness
// that runs them on a simulated system.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/czhu95/zsim/config"
	"github.com/czhu95/zsim/stats"
	"github.com/czhu95/zsim/system"
	"github.com/czhu95/zsim/timing/core"
)

// Result holds the timing results for a single benchmark run.
type Result struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// Translations is the number of translations issued by all cores
	Translations uint64 `json:"translations"`

	// Cycles is the cycle at which the last core finished
	Cycles uint64 `json:"cycles"`

	// Hits and Misses are summed over the TLBs of all cores
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`

	// AvgLatency is the mean number of cycles a translation took
	AvgLatency float64 `json:"avg_latency"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single workload.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Setup adjusts the system configuration, e.g. the schedule
	Setup func(c *config.Config)

	// Records is the translation trace to issue
	Records []core.Record
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// System is the configuration every benchmark starts from
	System *config.Config

	// Output is where to write results (default: os.Stdout)
	Output io.Writer
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		System: config.Default(),
		Output: os.Stdout,
	}
}

// Harness runs benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.System == nil {
		config.System = DefaultConfig().System
	}
	return &Harness{config: config}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() ([]Result, error) {
	results := make([]Result, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result, err := h.Run(bench)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	return results, nil
}

// Run executes a single benchmark on a freshly built system.
func (h *Harness) Run(bench Benchmark) (Result, error) {
	cfg := h.config.System.Clone()
	if bench.Setup != nil {
		bench.Setup(cfg)
	}

	net, err := cfg.BuildNetwork()
	if err != nil {
		return Result{}, fmt.Errorf("benchmark %s: %w", bench.Name, err)
	}

	sys, err := system.MakeBuilder().WithConfig(cfg).WithNetwork(net).Build()
	if err != nil {
		return Result{}, fmt.Errorf("benchmark %s: %w", bench.Name, err)
	}

	start := time.Now()
	if err := sys.Run(bench.Records); err != nil {
		return Result{}, fmt.Errorf("benchmark %s: %w", bench.Name, err)
	}
	wallTime := time.Since(start)

	result := Result{
		Name:        bench.Name,
		Description: bench.Description,
		Cycles:      sys.Cycles(),
		WallTime:    wallTime,
	}

	var translationCycles uint64
	for _, c := range sys.Cores {
		s := c.Stats()
		result.Translations += s.Translations
		translationCycles += s.TranslationCycles
	}

	for _, t := range sys.TLBs {
		result.Hits += counter(sys.Stats, t.Name(), "array", "hits")
		result.Misses += counter(sys.Stats, t.Name(), "array", "misses")
	}

	if result.Translations > 0 {
		result.AvgLatency = float64(translationCycles) / float64(result.Translations)
	}

	return result, nil
}

func counter(root *stats.Aggregate, path ...string) uint64 {
	v, _ := stats.Value(root, path...)
	return v
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []Result) {
	_, _ = fmt.Fprintln(h.config.Output, "=== zsim TLB Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Translations: %d\n", r.Translations)
		_, _ = fmt.Fprintf(h.config.Output, "  Cycles:       %d\n", r.Cycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Hits:         %d\n", r.Hits)
		_, _ = fmt.Fprintf(h.config.Output, "  Misses:       %d\n", r.Misses)
		_, _ = fmt.Fprintf(h.config.Output, "  Avg Latency:  %.3f\n", r.AvgLatency)
		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []Result) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,translations,cycles,hits,misses,avg_latency")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%d,%d,%.3f\n",
			r.Name,
			r.Translations,
			r.Cycles,
			r.Hits,
			r.Misses,
			r.AvgLatency,
		)
	}
}

// Report is the complete output format for benchmark results.
type Report struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []Result `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Cores is the number of simulated cores
	Cores int `json:"cores"`

	// TLBLines is the capacity of each TLB
	TLBLines int `json:"tlb_lines"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// TotalTranslations is the sum of all translations issued
	TotalTranslations uint64 `json:"total_translations"`

	// MissRate is the fraction of TLB lookups that missed
	MissRate float64 `json:"miss_rate"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []Result) error {
	var translations, hits, misses uint64
	var totalWallTime time.Duration
	for _, r := range results {
		translations += r.Translations
		hits += r.Hits
		misses += r.Misses
		totalWallTime += r.WallTime
	}

	missRate := float64(0)
	if hits+misses > 0 {
		missRate = float64(misses) / float64(hits+misses)
	}

	report := Report{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Cores:     h.config.System.Cores,
			TLBLines:  h.config.System.TLB.Lines,
		},
		Results: results,
		Summary: ReportSummary{
			TotalBenchmarks:   len(results),
			TotalTranslations: translations,
			MissRate:          missRate,
			TotalWallTime:     totalWallTime,
		},
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

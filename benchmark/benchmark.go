package benchmark

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-frcnn/detector"
	"github.com/nvr-ai/go-frcnn/images"
	"github.com/pkg/errors"
)

// Detector is the part of detector.Detector a benchmark drives.
type Detector interface {
	Detect(ctx context.Context, img *images.Raster) (detector.Table, error)
}

// Scenario is one benchmark configuration.
type Scenario struct {
	Name       string            `json:"name"`
	Resolution images.Resolution `json:"resolution"`
	Iterations int               `json:"iterations"`
	WarmupRuns int               `json:"warmup_runs"`
}

// Scenarios returns one scenario per resolution.
func Scenarios(resolutions []images.Resolution, iterations, warmup int) []Scenario {
	out := make([]Scenario, len(resolutions))
	for i, r := range resolutions {
		out[i] = Scenario{Name: r.Name, Resolution: r, Iterations: iterations, WarmupRuns: warmup}
	}
	return out
}

// Suite runs scenarios against one detector and keeps their results.
type Suite struct {
	detector  Detector
	source    *images.Raster
	outputDir string
	log       logs.Log

	mu      sync.RWMutex
	results []PerformanceMetrics
}

// NewSuite creates a suite.
//
// Arguments:
//   - det: The detector under test.
//   - source: The image resized to each scenario's resolution. When nil a
//     mid-gray frame is used, as for warm-up.
//   - outputDir: Where SaveResults writes.
//   - log: The logger.
//
// Returns:
//   - *Suite: The suite.
func NewSuite(det Detector, source *images.Raster, outputDir string, log logs.Log) *Suite {
	return &Suite{detector: det, source: source, outputDir: outputDir, log: log}
}

// frame returns the benchmark input for a resolution.
func (s *Suite) frame(r images.Resolution) *images.Raster {
	if s.source == nil {
		return images.Filled(r.Width, r.Height, 128)
	}
	resized := images.ResizeImage(s.source.RGBA(), r.Width, r.Height, images.BilinearFilter)
	return images.FromImage(resized)
}

// RunScenario executes a single benchmark scenario.
//
// Failed iterations are counted in ErrorRate and left out of the latency
// statistics. A cancelled context stops the run.
func (s *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	if scenario.Iterations <= 0 {
		return nil, errors.Errorf("scenario %s: iterations must be positive", scenario.Name)
	}
	img := s.frame(scenario.Resolution)

	for i := 0; i < scenario.WarmupRuns; i++ {
		if _, err := s.detector.Detect(ctx, img); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warnf("Scenario %s warmup run %d failed: %v", scenario.Name, i, err)
		}
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	metrics := &PerformanceMetrics{
		Scenario:  scenario,
		Timestamp: time.Now(),
	}
	samples := make([]time.Duration, 0, scenario.Iterations)
	failures := 0

	start := time.Now()
	for i := 0; i < scenario.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t := time.Now()
		dets, err := s.detector.Detect(ctx, img)
		if err != nil {
			failures++
			continue
		}
		samples = append(samples, time.Since(t))
		metrics.DetectionCount += len(dets)
	}
	metrics.TotalDuration = time.Since(start)

	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	metrics.Latency = NewLatencyStats(samples)
	if metrics.TotalDuration > 0 {
		metrics.FramesPerSecond = float64(len(samples)) / metrics.TotalDuration.Seconds()
	}
	metrics.ErrorRate = float64(failures) / float64(scenario.Iterations)
	metrics.MemoryStats = memoryDelta(startMem, endMem)
	metrics.CPUStats = CPUMetrics{NumCPU: runtime.NumCPU(), GOMAXPROCS: runtime.GOMAXPROCS(0)}

	s.mu.Lock()
	s.results = append(s.results, *metrics)
	s.mu.Unlock()
	return metrics, nil
}

// RunAll executes the scenarios in order, printing one line per scenario to w.
// A failing scenario is logged and skipped.
func (s *Suite) RunAll(ctx context.Context, scenarios []Scenario, w io.Writer) error {
	for _, scenario := range scenarios {
		m, err := s.RunScenario(ctx, scenario)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Errorf("Scenario %s failed: %v", scenario.Name, err)
			continue
		}
		fmt.Fprintf(w, "%-8s %-28s %7.2f FPS  p50 %-10v p95 %-10v errors %.1f%%\n",
			scenario.Name, scenario.Resolution.String(), m.FramesPerSecond,
			m.Latency.P50.Round(time.Microsecond), m.Latency.P95.Round(time.Microsecond), m.ErrorRate*100)
	}
	return nil
}

// Results returns all benchmark results.
func (s *Suite) Results() []PerformanceMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]PerformanceMetrics, len(s.results))
	copy(results, s.results)
	return results
}

// SaveResults writes the results as JSON and a CSV summary.
//
// Returns:
//   - string: The JSON file path.
//   - error: If the directory or files cannot be written.
func (s *Suite) SaveResults() (string, error) {
	results := s.Results()

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create output directory")
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(s.outputDir, fmt.Sprintf("benchmark_results_%s.json", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write results file")
	}

	summaryFile := filepath.Join(s.outputDir, fmt.Sprintf("benchmark_summary_%s.csv", timestamp))
	if err := saveSummaryCSV(summaryFile, results); err != nil {
		return "", errors.Wrap(err, "failed to save summary CSV")
	}

	s.log.Infof("Results saved to %s and %s", resultsFile, summaryFile)
	return resultsFile, nil
}

func saveSummaryCSV(filename string, results []PerformanceMetrics) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	w.Write([]string{"scenario", "width", "height", "fps", "mean_ms", "p50_ms", "p95_ms", "detections", "error_rate"})
	ms := func(d time.Duration) string {
		return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', 2, 64)
	}
	for _, r := range results {
		w.Write([]string{
			r.Scenario.Name,
			strconv.Itoa(r.Scenario.Resolution.Width),
			strconv.Itoa(r.Scenario.Resolution.Height),
			strconv.FormatFloat(r.FramesPerSecond, 'f', 2, 64),
			ms(r.Latency.Mean),
			ms(r.Latency.P50),
			ms(r.Latency.P95),
			strconv.Itoa(r.DetectionCount),
			strconv.FormatFloat(r.ErrorRate, 'f', 4, 64),
		})
	}
	w.Flush()
	return w.Error()
}

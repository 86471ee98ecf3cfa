package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/evobee/config"
	"github.com/pthm-cable/evobee/telemetry"
)

// evalRecord is one optimize_log.csv row.
type evalRecord struct {
	Eval               int     `csv:"eval"`
	Fitness            float64 `csv:"fitness"`
	Rate               float64 `csv:"pollinations_per_tick"`
	LearningRate       float64 `csv:"learning_rate"`
	Aversion           float64 `csv:"aversion"`
	ConstancyThreshold float64 `csv:"constancy_threshold"`
	ElapsedSec         float64 `csv:"elapsed_s"`
}

// search wraps the evaluator with logging and best-so-far tracking.
type search struct {
	space  *Space
	eval   *FitnessEvaluator
	log    *telemetry.CSVFile
	budget int

	start time.Time
	count int
	best  float64
	bestX []float64
}

// objective scores a point in unit coordinates.
func (s *search) objective(u []float64) float64 {
	raw := s.space.FromUnit(u)
	fitness := s.eval.Evaluate(raw)
	rate := s.eval.LastRate()
	s.count++

	if fitness < s.best {
		s.best = fitness
		s.bestX = raw
	}

	elapsed := time.Since(s.start)
	rec := evalRecord{
		Eval:               s.count,
		Fitness:            fitness,
		Rate:               rate,
		LearningRate:       raw[0],
		Aversion:           raw[1],
		ConstancyThreshold: raw[2],
		ElapsedSec:         elapsed.Seconds(),
	}
	if err := telemetry.AppendCSV(s.log, []evalRecord{rec}); err != nil {
		slog.Error("failed to log evaluation", "eval", s.count, "error", err)
	}

	eta := time.Duration(s.budget-s.count) * (elapsed / time.Duration(s.count))
	slog.Info("evaluation",
		"eval", s.count,
		"of", s.budget,
		"rate", rate,
		"best_rate", -s.best,
		"elapsed", formatDuration(elapsed),
		"eta", formatDuration(eta),
	)
	return fitness
}

// formatDuration formats a duration as 1h02m03s, or 2m03s below an hour.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	sec := (d % time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, sec)
	}
	return fmt.Sprintf("%dm%02ds", m, sec)
}

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	pollinator := flag.String("pollinator", "honeybee", "Pollinators entry to tune")
	maxTicks := flag.Int("max-ticks", 0, "Ticks per run (0 = use config)")
	seeds := flag.Int("seeds", 3, "Seeds per evaluation")
	maxEvals := flag.Int("max-evals", 100, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	if *outputDir == "" {
		slog.Error("--output is required")
		os.Exit(2)
	}
	if err := run(*configPath, *pollinator, *maxTicks, *seeds, *maxEvals, *population, *outputDir); err != nil {
		slog.Error("optimisation failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, pollinator string, maxTicks, seeds, maxEvals, population int, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	base, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := base.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	space := LearningSpace(pollinator)
	current, err := space.Read(base)
	if err != nil {
		return err
	}

	evalSeeds := make([]int64, seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}

	logFile, err := telemetry.CreateCSV(filepath.Join(outputDir, "optimize_log.csv"))
	if err != nil {
		return fmt.Errorf("creating log: %w", err)
	}
	defer logFile.Close()

	if population == 0 {
		// 4 + floor(3 ln n)
		population = 4 + int(3*math.Log(float64(space.Dim())))
	}

	s := &search{
		space:  space,
		eval:   NewFitnessEvaluator(space, configPath, maxTicks, evalSeeds),
		log:    logFile,
		budget: maxEvals,
		start:  time.Now(),
		best:   math.Inf(1),
	}

	slog.Info("starting CMA-ES",
		"pollinator", pollinator,
		"dim", space.Dim(),
		"population", population,
		"max_evals", maxEvals,
		"seeds", seeds,
	)

	result, err := optimize.Minimize(
		optimize.Problem{Func: s.objective},
		space.ToUnit(space.Clamp(current)),
		&optimize.Settings{FuncEvaluations: maxEvals},
		&optimize.CmaEsChol{InitStepSize: 0.3, Population: population},
	)
	if err != nil {
		slog.Warn("optimisation stopped", "error", err)
	}

	best := s.bestX
	if best == nil && result != nil {
		best = space.FromUnit(result.X)
	}
	if best == nil {
		return fmt.Errorf("no evaluations completed")
	}

	attrs := []any{"evals", s.count, "elapsed", formatDuration(time.Since(s.start)), "best_rate", -s.best}
	for i, p := range space.Params {
		attrs = append(attrs, p.Name, best[i])
	}
	slog.Info("optimisation complete", attrs...)

	if err := space.Apply(base, best); err != nil {
		return err
	}
	path := filepath.Join(outputDir, "best_config.yaml")
	if err := base.WriteYAML(path); err != nil {
		return fmt.Errorf("writing best config: %w", err)
	}
	slog.Info("best config saved", "path", path)
	return nil
}

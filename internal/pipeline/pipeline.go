package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/taskprogress/internal/progress"
)

// ErrIncomplete reports that workers stopped before every unit finished.
var ErrIncomplete = errors.New("workers stopped before all units finished")

// Config controls the demo build.
type Config struct {
	// Workers is the number of compile goroutines.
	Workers int
	// Units is the default number of compile units per build.
	Units int
	// NoiseRatio is the chance of a scratch file before each artifact.
	NoiseRatio float64
	// Seed makes artifact streams reproducible; zero draws a random seed.
	Seed uint64
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Units <= 0 {
		c.Units = 8
	}
	if c.NoiseRatio < 0 {
		c.NoiseRatio = 0
	}
	if c.NoiseRatio > 1 {
		c.NoiseRatio = 1
	}
	return c
}

// Request describes one build.
type Request struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Units int       `json:"units"`
}

// Result summarizes a finished build.
type Result struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	Units     int           `json:"units"`
	Artifacts int           `json:"artifacts"`
	Scratch   int           `json:"scratch"`
	Duration  time.Duration `json:"duration"`
}

// Pipeline runs builds. Run must be called from the goroutine that owns the
// stack carried by its context.
type Pipeline struct {
	cfg    Config
	logger *zap.Logger
	rng    *rand.Rand
}

// New constructs a Pipeline.
func New(cfg Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Pipeline{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Run executes req as a two-step task: compile fans units out to workers and
// link finishes the build.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.Name == "" {
		req.Name = "build"
	}
	if req.Units <= 0 {
		req.Units = p.cfg.Units
	}
	started := time.Now()
	res := Result{ID: req.ID, Name: req.Name, Units: req.Units}
	logger := p.logger.With(zap.String("build_id", req.ID.String()), zap.String("build", req.Name))

	build := progress.Start(ctx, req.Name, progress.WithTotal(2))
	defer build.Close()

	build.Advance("compile")
	stats, err := p.compile(ctx, planUnits(req.Units, p.cfg.NoiseRatio, p.rng))
	res.Artifacts, res.Scratch = stats.artifacts, stats.scratch
	if err != nil {
		logger.Warn("build canceled during compile", zap.Error(err))
		return res, err
	}

	build.Advance("link")
	link := progress.Start(ctx, "link", progress.WithTotal(1))
	link.Advance("write binary")
	link.Close()

	res.Duration = time.Since(started)
	logger.Info("build finished",
		zap.Int("units", res.Units),
		zap.Int("artifacts", res.Artifacts),
		zap.Int("scratch", res.Scratch),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// compile tracks units on the caller's stack, advancing once per finished unit
// while workers report their own progress on forked stacks.
func (p *Pipeline) compile(ctx context.Context, units []Unit) (unitStats, error) {
	tracker := progress.Start(ctx, "units", progress.WithTotal(int64(len(units))))
	defer tracker.Close()

	var total unitStats
	results := dispatch(ctx, p.cfg.Workers, units, compileUnit)
	for r := range results {
		total.artifacts += r.artifacts
		total.scratch += r.scratch
		tracker.Advance(r.unit)
	}
	if err := ctx.Err(); err != nil {
		return total, fmt.Errorf("compile: %w", err)
	}
	if n := tracker.StepIndex() + 1; n != int64(len(units)) {
		return total, fmt.Errorf("compile: %w", ErrIncomplete)
	}
	return total, nil
}

type unitStats struct {
	unit      string
	artifacts int
	scratch   int
}

// compileUnit runs on a worker goroutine; ctx carries that worker's stack.
func compileUnit(ctx context.Context, unit Unit) unitStats {
	stats := unitStats{unit: unit.Name}
	task := progress.Start(ctx, "compile "+unit.Name, progress.WithTotal(2))
	defer task.Close()

	task.Advance("parse")
	task.Advance("emit")

	outputs := progress.StartOnSetContext(ctx, "artifacts", unit.Artifacts)
	defer outputs.Close()
	for _, file := range unit.Stream {
		if outputs.Expects(file) {
			stats.artifacts++
		} else {
			stats.scratch++
		}
		outputs.AdvanceSingle(file, "write "+file)
		checksum := progress.Start(ctx, "checksum "+file)
		checksum.Close()
	}
	return stats
}

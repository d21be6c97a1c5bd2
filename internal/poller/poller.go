package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Job is one unit of periodic work.
type Job func(ctx context.Context) error

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // time between cycle starts (default: 15m)
	Concurrency int           // jobs running at once (default: 1)
	Timeout     time.Duration // per-job limit; 0 means none
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    15 * time.Minute,
		Concurrency: 1,
	}
}

// CycleResult summarizes one cycle.
type CycleResult struct {
	Jobs     int
	Failed   int
	Duration time.Duration
}

type namedJob struct {
	name string
	run  Job
}

// Poller periodically runs its jobs.
type Poller struct {
	cfg    Config
	jobs   []namedJob
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cycles atomic.Int64
}

// New creates a new Poller.
func New(cfg Config, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{cfg: cfg, logger: logger}
}

// Add registers a job. Jobs must be added before Start.
func (p *Poller) Add(name string, job Job) {
	p.jobs = append(p.jobs, namedJob{name: name, run: job})
}

// Cycles returns the number of completed cycles.
func (p *Poller) Cycles() int64 {
	return p.cycles.Load()
}

// Start runs a first cycle immediately and then one per interval.
func (p *Poller) Start(ctx context.Context) error {
	if len(p.jobs) == 0 {
		return errors.New("poller has no jobs")
	}
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("poller started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
		"jobs", len(p.jobs),
	)
	return nil
}

// Stop cancels running jobs and waits for the loop to exit.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("poller stopped", "cycles", p.cycles.Load())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the loop exits, which happens once the Start context is
// cancelled.
func (p *Poller) Wait() {
	p.wg.Wait()
}

func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.RunOnce(p.ctx)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.RunOnce(p.ctx)
		}
	}
}

// RunOnce runs every job once with bounded concurrency.
func (p *Poller) RunOnce(ctx context.Context) CycleResult {
	start := time.Now()

	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	var failed atomic.Int64

	for _, job := range p.jobs {
		wg.Add(1)
		go func(job namedJob) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				failed.Add(1)
				return
			}

			if err := p.runJob(ctx, job); err != nil {
				p.logger.Warn("job failed",
					"job", job.name,
					"err", err,
				)
				failed.Add(1)
			}
		}(job)
	}

	wg.Wait()
	p.cycles.Add(1)

	res := CycleResult{
		Jobs:     len(p.jobs),
		Failed:   int(failed.Load()),
		Duration: time.Since(start),
	}
	p.logger.Info("poll cycle complete",
		"jobs", res.Jobs,
		"failed", res.Failed,
		"duration", res.Duration,
	)
	return res
}

func (p *Poller) runJob(ctx context.Context, job namedJob) error {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}
	return job.run(ctx)
}

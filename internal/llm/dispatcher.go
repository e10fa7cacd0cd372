package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/scan-io-git/logicscan/internal/chunker"
	"github.com/scan-io-git/logicscan/internal/metrics"
	"github.com/scan-io-git/logicscan/pkg/shared/config"
)

const (
	DefaultConcurrency = 3
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 2 * time.Second
)

// Options controls the dispatcher.
type Options struct {
	Model       string
	Temperature float32
	Concurrency int
	MaxAttempts int
	RetryDelay  time.Duration
	// RequestsPerSecond limits model calls across workers. Zero disables the limit.
	RequestsPerSecond float64
	MaxSnippetChars   int
}

func (o Options) normalize() Options {
	o.Model = config.SetThen(o.Model, DefaultModel)
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.MaxSnippetChars <= 0 {
		o.MaxSnippetChars = DefaultMaxSnippetChars
	}
	return o
}

// OptionsFromConfig reads the llm section of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	llmCfg := cfg.LLM
	opts := Options{
		Model:             llmCfg.Model,
		Concurrency:       llmCfg.Concurrency,
		MaxAttempts:       llmCfg.MaxAttempts,
		RetryDelay:        llmCfg.RetryDelay,
		RequestsPerSecond: llmCfg.RequestsPerSecond,
		MaxSnippetChars:   llmCfg.MaxSnippetChars,
	}
	if llmCfg.Temperature != nil {
		opts.Temperature = *llmCfg.Temperature
	}
	return opts.normalize()
}

// JobsFor turns the chunks of a file into dispatcher jobs.
func JobsFor(chunks []chunker.Chunk, maxSnippetChars int) []Job {
	jobs := make([]Job, 0, len(chunks))
	for _, c := range chunks {
		jobs = append(jobs, Job{
			File:       c.File,
			ChunkIndex: c.Index,
			Total:      c.Total,
			Snippet:    CapSnippet(c.Content, maxSnippetChars),
		})
	}
	return jobs
}

// Dispatcher runs chunk analyses on a bounded pool of workers.
type Dispatcher struct {
	provider Provider
	opts     Options
	limiter  *rate.Limiter
	metrics  *metrics.Metrics
	logger   hclog.Logger
}

// NewDispatcher creates a dispatcher. Nil metrics and logger are replaced with private ones.
func NewDispatcher(provider Provider, opts Options, m *metrics.Metrics, logger hclog.Logger) *Dispatcher {
	opts = opts.normalize()
	if m == nil {
		m = metrics.New(nil)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	d := &Dispatcher{
		provider: provider,
		opts:     opts,
		metrics:  m,
		logger:   logger,
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return d
}

// Options returns the effective options.
func (d *Dispatcher) Options() Options {
	return d.opts
}

// Dispatch analyzes every job and returns one outcome per job, in completion
// order. A chunk that keeps failing becomes a Failed outcome and never aborts
// the others. The returned error is only set when ctx is done.
func (d *Dispatcher) Dispatch(ctx context.Context, jobs []Job) ([]Outcome, error) {
	var (
		mu       sync.Mutex
		outcomes = make([]Outcome, 0, len(jobs))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			outcome := d.analyze(gctx, job)
			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	d.logger.Debug("dispatch finished", "jobs", len(jobs), "outcomes", len(outcomes))
	return outcomes, ctx.Err()
}

// analyze runs up to MaxAttempts model calls for one job. Transport errors and
// unparsable answers are retried alike after RetryDelay.
func (d *Dispatcher) analyze(ctx context.Context, job Job) Outcome {
	prompt := BuildPrompt(job.File, job.Snippet, job.ChunkIndex, job.Total)
	req := Request{
		Model:       d.opts.Model,
		Prompt:      prompt,
		Temperature: d.opts.Temperature,
		JSON:        true,
	}

	var raw, reason string
	attempts := 0
	for attempts < d.opts.MaxAttempts {
		if attempts > 0 {
			if err := sleepContext(ctx, d.opts.RetryDelay); err != nil {
				reason = err.Error()
				break
			}
		}
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				reason = err.Error()
				break
			}
		}
		attempts++

		start := time.Now()
		text, err := d.provider.Complete(ctx, req)
		d.metrics.LLMLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			d.metrics.LLMAttempts.WithLabelValues(metrics.AttemptTransportError).Inc()
			d.logger.Warn("model call failed",
				"file", job.File, "chunk", job.ChunkIndex, "attempt", attempts, "max_attempts", d.opts.MaxAttempts, "error", err)
			raw, reason = err.Error(), ReasonTransport
			continue
		}

		found, err := ParseAnalysis(text)
		if err != nil {
			d.metrics.LLMAttempts.WithLabelValues(metrics.AttemptParseError).Inc()
			d.logger.Warn("model output could not be parsed",
				"file", job.File, "chunk", job.ChunkIndex, "attempt", attempts, "max_attempts", d.opts.MaxAttempts, "error", err)
			raw, reason = text, parseReason(err)
			continue
		}

		d.metrics.LLMAttempts.WithLabelValues(metrics.AttemptOK).Inc()
		d.metrics.LLMCalls.WithLabelValues(metrics.OutcomeParsed).Inc()
		d.metrics.Findings.Add(float64(len(found)))
		return Outcome{Job: job, Result: Parsed{Findings: found, Raw: text}, Attempts: attempts}
	}

	d.metrics.LLMCalls.WithLabelValues(metrics.OutcomeFailed).Inc()
	d.logger.Error("giving up on chunk", "file", job.File, "chunk", job.ChunkIndex, "attempts", attempts, "reason", reason)
	return Outcome{Job: job, Result: Failed{Raw: raw, Reason: reason}, Attempts: attempts}
}

func parseReason(err error) string {
	var perr *ParseError
	if errors.As(err, &perr) {
		return perr.Reason
	}
	return fmt.Sprintf("%s: %v", ReasonInvalidJSON, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"taskmatch/internal/graph"
	"taskmatch/internal/metrics"
	"taskmatch/internal/models"
	"taskmatch/internal/normalize"
	"taskmatch/internal/validate"
)

const defaultBatchConcurrency = 4

// SnapshotFetcher is the graph accessor. Unknown projects must yield an
// empty snapshot rather than an error.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, projectID string) (*graph.Snapshot, error)
}

// Outcome is the result of classifying one envelope. Batch is set for push
// events and for envelopes that produced no events; callers render it as
// {"results": [...]}.
type Outcome struct {
	ProjectID string
	Event     string
	Batch     bool
	Results   []models.ClassificationResult
}

// Pipeline wires the fixed classification steps together.
type Pipeline struct {
	fetcher     SnapshotFetcher
	classifier  Classifier
	validator   *validate.Validator
	metrics     *metrics.Metrics
	logger      *slog.Logger
	concurrency int
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithValidator(v *validate.Validator) Option {
	return func(p *Pipeline) {
		if v != nil {
			p.validator = v
		}
	}
}

// WithConcurrency bounds how many commits of one push are matched at once.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func NewPipeline(fetcher SnapshotFetcher, classifier Classifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:     fetcher,
		classifier:  classifier,
		logger:      slog.Default(),
		concurrency: defaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.classifier == nil {
		p.classifier = NewDeterministic(nil)
	}
	if p.validator == nil {
		p.validator = validate.New(p.logger)
	}
	return p
}

// Classify runs the pipeline for one envelope. It fails only with a
// *graph.ConfigurationError or a context error; every other problem is folded
// into well-formed results.
func (p *Pipeline) Classify(ctx context.Context, env normalize.Envelope) (Outcome, error) {
	started := time.Now()
	defer func() { p.metrics.ObserveClassifyDuration(time.Since(started)) }()

	projectID := normalize.ProjectID(env.Payload)
	outcome := Outcome{ProjectID: projectID, Event: env.Event}

	snap, err := p.fetchSnapshot(ctx, projectID)
	if err != nil {
		return outcome, err
	}
	p.metrics.ObserveSnapshot(snap.Len())

	events := normalize.Normalize(env.Event, env.Payload)
	p.metrics.ObserveEvents(env.Event, len(events))
	kind, _ := models.ParseEventType(env.Event)
	outcome.Batch = kind == models.EventPush || len(events) == 0

	results, err := p.classifyAll(ctx, events, snap)
	if err != nil {
		return outcome, err
	}
	outcome.Results = results

	p.logger.Debug("classified envelope",
		"project", projectID,
		"event", env.Event,
		"events", len(events),
		"nodes", snap.Len(),
		"duration", time.Since(started))
	return outcome, nil
}

func (p *Pipeline) fetchSnapshot(ctx context.Context, projectID string) (*graph.Snapshot, error) {
	if p.fetcher == nil {
		return graph.Empty(projectID), nil
	}
	snap, err := p.fetcher.FetchSnapshot(ctx, projectID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if graph.IsConfigurationError(err) {
			return nil, err
		}
		return nil, graph.StoreUnavailable(projectID, err)
	}
	if snap == nil {
		snap = graph.Empty(projectID)
	}
	return snap, nil
}

func (p *Pipeline) classifyAll(ctx context.Context, events []models.NormalizedEvent, snap *graph.Snapshot) ([]models.ClassificationResult, error) {
	results := make([]models.ClassificationResult, len(events))
	if len(events) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, ev := range events {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := p.classifier.Classify(gctx, ev, snap)
			if err != nil {
				return err
			}
			results[i] = p.check(result, ev)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("classify %d events: %w", len(events), err)
	}
	return results, nil
}

func (p *Pipeline) check(result models.ClassificationResult, ev models.NormalizedEvent) models.ClassificationResult {
	validated, err := p.validator.Validate(result)
	if err != nil {
		p.logger.Error("classification result rejected", "subject", ev.Identity, "error", err)
		subject := validate.SubjectOf(result)
		if subject.ID == "" {
			subject.ID = ev.Identity
		}
		validated = validate.Fallback(subject)
	}
	p.metrics.ObserveClassification(string(ev.Type), outcomeLabel(validated))
	return validated
}

func outcomeLabel(result models.ClassificationResult) string {
	switch {
	case result.Reason == validate.InvalidResponseReason:
		return metrics.OutcomeFallback
	case result.WasTask && result.Confidence >= 1:
		return metrics.OutcomeExplicit
	case result.WasTask:
		return metrics.OutcomeFuzzy
	default:
		return metrics.OutcomeNoMatch
	}
}

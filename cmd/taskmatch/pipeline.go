package main

import (
	"fmt"
	"log/slog"

	"taskmatch/internal/classifier"
	"taskmatch/internal/config"
	"taskmatch/internal/match"
	"taskmatch/internal/metrics"
	"taskmatch/internal/validate"
)

// newClassifier builds the classifier selected by classifier.mode.
func newClassifier(cfg *config.Config, validator *validate.Validator, logger *slog.Logger) (classifier.Classifier, error) {
	engine := match.NewEngine(match.Options{
		Threshold: cfg.Match.Threshold,
		PathBonus: cfg.Match.PathBonus,
	})

	switch cfg.Classifier.Mode {
	case "", config.ClassifierDeterministic:
		return classifier.NewDeterministic(engine), nil
	case config.ClassifierRemote:
		return classifier.NewRemote(classifier.RemoteOptions{
			URL:     cfg.Classifier.URL,
			Token:   cfg.Classifier.Token,
			Timeout: cfg.Classifier.Timeout.Duration,
			Retries: cfg.Classifier.Retries,
		}, validator, logger.With("component", "remote_classifier"))
	default:
		return nil, fmt.Errorf("unknown classifier mode %q", cfg.Classifier.Mode)
	}
}

func newPipeline(cfg *config.Config, fetcher classifier.SnapshotFetcher, m *metrics.Metrics, logger *slog.Logger) (*classifier.Pipeline, error) {
	validator := validate.New(logger.With("component", "validator"))
	c, err := newClassifier(cfg, validator, logger)
	if err != nil {
		return nil, err
	}
	return classifier.NewPipeline(fetcher, c,
		classifier.WithConcurrency(cfg.Match.BatchConcurrency),
		classifier.WithValidator(validator),
		classifier.WithMetrics(m),
		classifier.WithLogger(logger.With("component", "pipeline")),
	), nil
}

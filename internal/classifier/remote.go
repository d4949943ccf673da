package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"

	"taskmatch/internal/graph"
	"taskmatch/internal/models"
	"taskmatch/internal/validate"
)

const (
	defaultRemoteTimeout = 20 * time.Second
	defaultRemoteRetries = 2
	remoteBackoffBase    = 200 * time.Millisecond
	remoteBackoffMax     = 5 * time.Second
)

// RemoteOptions configures the HTTP classifier adapter.
type RemoteOptions struct {
	URL     string
	Token   string
	Timeout time.Duration
	Retries int
}

// Remote posts the event and snapshot to an external classifier service and
// validates whatever comes back. Transport failures become fallback results.
type Remote struct {
	client    *resty.Client
	url       string
	retries   uint64
	validator *validate.Validator
	logger    *slog.Logger
}

type remoteRequest struct {
	Project   string                 `json:"project"`
	Event     models.NormalizedEvent `json:"event"`
	Nodes     []models.TaskNode      `json:"nodes"`
	Edges     []models.Edge          `json:"edges"`
	Relations []models.Relation      `json:"relations"`
}

func NewRemote(opts RemoteOptions, validator *validate.Validator, logger *slog.Logger) (*Remote, error) {
	if opts.URL == "" {
		return nil, errors.New("remote classifier url is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRemoteTimeout
	}
	if opts.Retries < 0 || opts.Retries > 10 {
		opts.Retries = defaultRemoteRetries
	}
	if validator == nil {
		validator = validate.New(logger)
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if opts.Token != "" {
		client.SetAuthToken(opts.Token)
	}

	return &Remote{
		client:    client,
		url:       opts.URL,
		retries:   uint64(opts.Retries),
		validator: validator,
		logger:    logger,
	}, nil
}

func (r *Remote) Classify(ctx context.Context, ev models.NormalizedEvent, snap *graph.Snapshot) (models.ClassificationResult, error) {
	if snap == nil {
		snap = graph.Empty("")
	}
	nodes := snap.Nodes()
	subject := validate.Subject{ID: ev.Identity, EventType: ev.Type, NodeIDs: make([]string, 0, len(nodes))}
	for _, node := range nodes {
		subject.NodeIDs = append(subject.NodeIDs, node.ID)
	}
	payload := remoteRequest{
		Project:   snap.Project(),
		Event:     ev,
		Nodes:     nodes,
		Edges:     snap.Edges(),
		Relations: snap.Relations(),
	}

	backoff := retry.WithMaxRetries(r.retries, retry.WithMaxDuration(remoteBackoffMax, retry.NewExponential(remoteBackoffBase)))
	var body []byte
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := r.client.R().SetContext(ctx).SetBody(payload).Post(r.url)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return retry.RetryableError(err)
		}
		if retryableStatus(resp.StatusCode()) {
			return retry.RetryableError(fmt.Errorf("classifier returned %s", resp.Status()))
		}
		if resp.IsError() {
			return fmt.Errorf("classifier returned %s", resp.Status())
		}
		body = resp.Body()
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.ClassificationResult{}, ctxErr
		}
		r.logger.Warn("remote classifier unavailable", "subject", ev.Identity, "error", err)
		return validate.Fallback(subject), nil
	}

	return r.validator.ParseResponse(body, subject), nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"taskmatch/internal/blobstore"
	"taskmatch/internal/classifier"
	"taskmatch/internal/metrics"
	"taskmatch/internal/store"
)

const (
	allowRemoteEnvKey        = "TASKMATCH_ALLOW_REMOTE"
	readHeaderTimeout        = 5 * time.Second
	readTimeout              = 30 * time.Second
	writeTimeout             = 90 * time.Second
	idleTimeout              = 60 * time.Second
	shutdownTimeout          = 10 * time.Second
	classifyConcurrencyLimit = 16
	importConcurrencyLimit   = 1
	defaultDedupeSize        = 1024
	defaultDedupeTTL         = 10 * time.Minute
)

// Store is the local database behind the server: fixtures, deliveries and info.
type Store interface {
	store.GraphStore
	store.DeliveryLog
	ImportGraph(ctx context.Context, fixture *store.Fixture) (*store.ImportSummary, error)
	DeleteProject(ctx context.Context, projectID string) error
	StoreInfo(ctx context.Context) (*store.StoreInfo, error)
}

// Options carries the static settings reported by /v1/info and used by the
// auth and webhook layers.
type Options struct {
	Version        string
	DBPath         string
	StoreDriver    string
	ClassifierMode string
	APITokenHash   string
	WebhookSecret  string
	DedupeSize     int
	DedupeTTL      time.Duration
}

// Server wraps HTTP handlers for the taskmatch API.
type Server struct {
	addr            string
	store           Store
	snapshots       classifier.SnapshotFetcher
	pipeline        *classifier.Pipeline
	archive         blobstore.DeliveryArchive
	metrics         *metrics.Metrics
	logger          *slog.Logger
	opts            Options
	seen            *expirable.LRU[string, struct{}]
	tokens          *tokenCache
	classifyLimiter chan struct{}
	importLimiter   chan struct{}
}

// New creates a new server instance. Graph reads go to st until
// ConfigureSnapshotSource points them elsewhere.
func New(addr string, st Store, pipeline *classifier.Pipeline, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DedupeSize <= 0 {
		opts.DedupeSize = defaultDedupeSize
	}
	if opts.DedupeTTL <= 0 {
		opts.DedupeTTL = defaultDedupeTTL
	}
	opts.APITokenHash = strings.TrimSpace(opts.APITokenHash)

	var snapshots classifier.SnapshotFetcher
	if st != nil {
		snapshots = st
	}

	return &Server{
		addr:            addr,
		store:           st,
		snapshots:       snapshots,
		pipeline:        pipeline,
		logger:          logger,
		opts:            opts,
		seen:            expirable.NewLRU[string, struct{}](opts.DedupeSize, nil, opts.DedupeTTL),
		tokens:          newTokenCache(),
		classifyLimiter: make(chan struct{}, classifyConcurrencyLimit),
		importLimiter:   make(chan struct{}, importConcurrencyLimit),
	}
}

// ConfigureSnapshotSource sets the accessor used by graph reads.
func (s *Server) ConfigureSnapshotSource(fetcher classifier.SnapshotFetcher) {
	if fetcher != nil {
		s.snapshots = fetcher
	}
}

// ConfigureArchive enables archiving of raw webhook bodies.
func (s *Server) ConfigureArchive(archive blobstore.DeliveryArchive) {
	s.archive = archive
}

// ConfigureMetrics mounts /metrics and counts webhook deliveries.
func (s *Server) ConfigureMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.withAuth(s.routes()))
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		err := apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many concurrent %s requests", name),
		}
		s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
		return false
	}
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

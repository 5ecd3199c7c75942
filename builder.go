package goSession

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jonboulle/clockwork"

	"github.com/MrEthical07/goSession/internal/transport"
	"github.com/MrEthical07/goSession/session"
)

// Builder assembles a Manager. Configure it during initialization, then call Build
// once.
type Builder struct {
	config Config

	backend    session.Backend
	httpClient *http.Client
	eventSink  EventSink
	logger     *slog.Logger
	clock      clockwork.Clock

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBaseURL sets API.BaseURL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.API.BaseURL = baseURL
	return b
}

// WithBackend sets the persistence medium for the session pair. Required.
func (b *Builder) WithBackend(backend session.Backend) *Builder {
	b.backend = backend
	return b
}

// WithHTTPClient overrides the HTTP client. Its Timeout wins over API.Timeout.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithEventSink sets where lifecycle events are delivered.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock injects the clock used for validation timestamps and the offline
// staleness window.
func (b *Builder) WithClock(clock clockwork.Clock) *Builder {
	b.clock = clock
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the request latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a Manager in PhaseReconciling. It
// performs no I/O; call Manager.Reconcile to settle the initial state.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.backend == nil {
		return nil, errors.New("session backend required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := b.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.API.Timeout}
	}

	m := &Manager{
		config:  cfg,
		store:   session.NewStore(b.backend, cfg.Session.KeyPrefix, logger.With("component", "session_store")),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
		clock:   clock,
		phase:   PhaseReconciling,
	}
	m.events = newEventDispatcher(cfg.Events, b.eventSink, logger.With("component", "events"), func() {
		m.metricInc(MetricEventDropped)
	})

	client, err := transport.New(transport.Config{
		BaseURL:    cfg.API.BaseURL,
		HTTPClient: httpClient,
		Tokens:     m,
		UserAgent:  cfg.API.UserAgent,
		Observer:   m.observeRequest,
		Logger:     logger.With("component", "transport"),
	})
	if err != nil {
		m.events.Close()
		return nil, err
	}
	m.client = client
	m.deps = m.buildFlowDeps()
	m.profiles = newProfileService(m)

	b.built = true
	return m, nil
}

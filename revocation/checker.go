package revocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/workerhealth/cache"
	"github.com/jonwraymond/workerhealth/observe"
	"github.com/jonwraymond/workerhealth/resilience"
)

// Result is the outcome of a revocation check.
type Result struct {
	Valid  bool    `json:"valid"`
	Status Outcome `json:"status"`
	Reason string  `json:"reason,omitempty"`
	Cached bool    `json:"cached,omitempty"`
	Method Method  `json:"method,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Entry is the cached form of a completed verification.
type Entry struct {
	CertificateID string  `json:"certificate_id"`
	Status        Outcome `json:"status"`
	Reason        string  `json:"reason,omitempty"`
	CheckedAt     int64   `json:"checked_at"`
	ExpiresAt     int64   `json:"expiresAt"`
	Method        Method  `json:"method"`
}

// Result converts a cached entry to a cached Result.
func (e Entry) Result() Result {
	return Result{
		Valid:  e.Status == OutcomeGood,
		Status: e.Status,
		Reason: e.Reason,
		Cached: true,
		Method: e.Method,
	}
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerifier registers the verifier for method.
func WithVerifier(method Method, v Verifier) Option {
	return func(c *Checker) {
		c.verifiers[method] = v
	}
}

// WithExecutor replaces the default bulkhead and circuit breaker around
// verifier calls.
func WithExecutor(e *resilience.Executor) Option {
	return func(c *Checker) {
		c.executor = e
	}
}

// WithInstrumentation sets tracing, metrics and logging.
func WithInstrumentation(inst observe.Instrumentation) Option {
	return func(c *Checker) {
		c.inst = inst
	}
}

// Checker verifies certificates against a Verifier with caching and
// per-certificate request coalescing.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: verifier failures become results per the failure mode; only
// nil certificates are returned as errors.
type Checker struct {
	cache     cache.Cache
	verifiers map[Method]Verifier
	executor  *resilience.Executor
	inst      observe.Instrumentation
	group     singleflight.Group
	now       func() time.Time
}

// NewChecker creates a Checker backed by store.
func NewChecker(store cache.Cache, opts ...Option) (*Checker, error) {
	if store == nil {
		return nil, ErrNilCache
	}

	c := &Checker{
		cache:     store,
		verifiers: make(map[Method]Verifier),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.inst = c.inst.Named("revocation")

	if c.executor == nil {
		logger := c.inst.Logger
		c.executor = resilience.NewExecutor(
			resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
				MaxConcurrent: 32,
				MaxWait:       time.Second,
			})),
			resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
				Name: "revocation-verifier",
				OnStateChange: func(name string, from, to resilience.State) {
					logger.Warn(context.Background(), "verifier circuit changed state",
						observe.F("breaker", name),
						observe.F("from", from.String()),
						observe.F("to", to.String()),
					)
				},
			})),
		)
	}
	return c, nil
}

// VerifyCertificate checks the first link of cert's chain against its issuer.
// Disabled verification and chains shorter than two certificates are
// accepted without contacting the verifier.
func (c *Checker) VerifyCertificate(ctx context.Context, cert *Certificate, cfg Config) Result {
	if !cfg.Enabled {
		return Result{Valid: true, Status: OutcomeDisabled}
	}

	chain := cert.Chain()
	if len(chain) < 2 {
		return Result{Valid: true, Status: OutcomeInsufficientChain}
	}

	// Both links are non-nil.
	result, _ := c.VerifyOCSP(ctx, chain[0], chain[1], cfg)
	return result
}

// VerifyOCSP returns the cached status of cert or asks the verifier for the
// configured method. Concurrent calls for the same certificate share one
// verifier call; each caller then applies its own failure mode.
func (c *Checker) VerifyOCSP(ctx context.Context, cert, issuer *Certificate, cfg Config) (Result, error) {
	if cert == nil || issuer == nil {
		return Result{}, ErrNilCertificate
	}
	cfg = cfg.withDefaults()
	start := c.now()
	key := CacheKey(cert.PEM)

	ctx, span := c.inst.Tracer.StartSpan(ctx, observe.SpanVerify,
		attribute.String("workerhealth.certificate_id", key),
		attribute.String("workerhealth.method", string(cfg.Method)),
	)

	if entry, ok := c.lookup(ctx, key); ok {
		result := entry.Result()
		c.finish(ctx, span, result, start)
		return result, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		return c.verify(context.WithoutCancel(ctx), key, cert, issuer, cfg)
	})
	span.SetAttributes(attribute.Bool("workerhealth.coalesced", shared))

	var result Result
	if err != nil {
		result = c.failure(ctx, key, cfg, err)
	} else {
		result = v.(Result)
	}
	c.finish(ctx, span, result, start)
	return result, nil
}

// verify calls the verifier and caches a successful answer.
func (c *Checker) verify(ctx context.Context, key string, cert, issuer *Certificate, cfg Config) (Result, error) {
	verifier, ok := c.verifiers[cfg.Method]
	if !ok {
		return Result{}, fmt.Errorf("%w %q", ErrNoVerifier, cfg.Method)
	}

	resp, err := resilience.Call(ctx, c.executor, func(ctx context.Context) (Response, error) {
		return resilience.CallWithTimeout(ctx, cfg.Timeout, func(ctx context.Context) (Response, error) {
			return verifier.CheckStatus(ctx, cert.PEM, CheckOptions{CA: issuer.PEM, Timeout: cfg.Timeout})
		})
	})
	if err != nil {
		return Result{}, err
	}

	status := resp.Status
	if status != OutcomeGood && status != OutcomeRevoked {
		status = OutcomeUnknown
	}

	now := c.now()
	entry := Entry{
		CertificateID: key,
		Status:        status,
		Reason:        resp.Reason,
		CheckedAt:     now.UnixMilli(),
		ExpiresAt:     now.Add(cfg.CacheTTL).UnixMilli(),
		Method:        cfg.Method,
	}
	c.store(ctx, entry, cfg.CacheTTL)

	result := entry.Result()
	result.Cached = false
	return result, nil
}

func (c *Checker) lookup(ctx context.Context, key string) (Entry, bool) {
	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.inst.Logger.Warn(ctx, "revocation cache read failed", observe.F("certificate_id", key), observe.Err(err))
		return Entry{}, false
	}
	if !ok {
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.inst.Logger.Warn(ctx, "discarding corrupt revocation cache entry", observe.F("certificate_id", key), observe.Err(err))
		return Entry{}, false
	}
	return entry, true
}

func (c *Checker) store(ctx context.Context, entry Entry, ttl time.Duration) {
	data, err := json.Marshal(entry)
	if err == nil {
		err = c.cache.Set(ctx, entry.CertificateID, data, ttl)
	}
	if err != nil {
		c.inst.Logger.Warn(ctx, "revocation cache write failed", observe.F("certificate_id", entry.CertificateID), observe.Err(err))
	}
}

func (c *Checker) failure(ctx context.Context, key string, cfg Config, err error) Result {
	fields := []observe.Field{
		observe.F("certificate_id", key),
		observe.F("method", string(cfg.Method)),
		observe.Err(err),
	}

	what := "revocation check failed"
	if errors.Is(err, resilience.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		what = "revocation check timed out"
		fields = append(fields, observe.F("timeout", cfg.Timeout.String()))
	}

	if cfg.FailureMode == FailClosed {
		c.inst.Logger.Error(ctx, what+", rejecting certificate", fields...)
		return Result{Valid: false, Status: OutcomeError, Method: cfg.Method, Error: err.Error()}
	}
	c.inst.Logger.Warn(ctx, what+", allowing certificate", fields...)
	return Result{Valid: true, Status: OutcomeErrorAllowed, Method: cfg.Method, Error: err.Error()}
}

// finish records metrics and ends the verification span.
func (c *Checker) finish(ctx context.Context, span trace.Span, result Result, start time.Time) {
	c.inst.Metrics.RecordVerification(ctx, observe.VerificationOutcome{
		Method:   string(result.Method),
		Status:   string(result.Status),
		Cached:   result.Cached,
		Duration: c.now().Sub(start),
	})
	span.SetAttributes(
		attribute.String("workerhealth.status", string(result.Status)),
		attribute.Bool("workerhealth.cached", result.Cached),
	)
	c.inst.Tracer.EndSpan(span, nil)
}

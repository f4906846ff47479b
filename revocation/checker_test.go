package revocation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/workerhealth/cache"
	"github.com/jonwraymond/workerhealth/observe"
	"github.com/jonwraymond/workerhealth/resilience"
)

// countingCache counts reads and writes of an underlying cache.
type countingCache struct {
	cache.Cache
	gets atomic.Int32
	sets atomic.Int32
}

func (c *countingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.gets.Add(1)
	return c.Cache.Get(ctx, key)
}

func (c *countingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.sets.Add(1)
	return c.Cache.Set(ctx, key, value, ttl)
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("store offline")
}
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("store offline")
}
func (brokenCache) Delete(context.Context, string) error { return nil }

type recordingMetrics struct {
	mu  sync.Mutex
	out []observe.VerificationOutcome
}

func (m *recordingMetrics) RecordCollection(context.Context, observe.CollectionOutcome) {}
func (m *recordingMetrics) RecordLateResponse(context.Context)                       {}
func (m *recordingMetrics) RecordVerification(_ context.Context, o observe.VerificationOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out = append(m.out, o)
}

func staticVerifier(resp Response, err error, calls *atomic.Int32) Verifier {
	return VerifierFunc(func(context.Context, []byte, CheckOptions) (Response, error) {
		if calls != nil {
			calls.Add(1)
		}
		return resp, err
	})
}

func newTestChecker(t *testing.T, store cache.Cache, v Verifier, opts ...Option) *Checker {
	t.Helper()
	opts = append([]Option{WithVerifier(MethodOCSP, v)}, opts...)
	c, err := NewChecker(store, opts...)
	if err != nil {
		t.Fatalf("NewChecker() error = %v", err)
	}
	return c
}

func TestNewChecker_NilCache(t *testing.T) {
	if _, err := NewChecker(nil); err != ErrNilCache {
		t.Errorf("NewChecker(nil) error = %v, want ErrNilCache", err)
	}
}

func TestVerifyCertificate_Disabled(t *testing.T) {
	var calls atomic.Int32
	c := newTestChecker(t, cache.NewMemoryCache(cache.DefaultPolicy()), staticVerifier(Response{Status: OutcomeRevoked}, nil, &calls))
	leaf, _ := newTestPKI(t, "", "").pair()

	got := c.VerifyCertificate(context.Background(), leaf, Config{Enabled: false})
	if !got.Valid || got.Status != OutcomeDisabled {
		t.Errorf("got %+v, want valid disabled", got)
	}
	if calls.Load() != 0 {
		t.Error("verifier must not be called when disabled")
	}
}

func TestVerifyCertificate_InsufficientChain(t *testing.T) {
	var calls atomic.Int32
	c := newTestChecker(t, cache.NewMemoryCache(cache.DefaultPolicy()), staticVerifier(Response{Status: OutcomeRevoked}, nil, &calls))
	pki := newTestPKI(t, "", "")

	root := &Certificate{PEM: pki.caPEM}
	root.Issuer = root

	for name, cert := range map[string]*Certificate{
		"nil":         nil,
		"no issuer":   {PEM: pki.leafPEM},
		"self-signed": root,
	} {
		got := c.VerifyCertificate(context.Background(), cert, DefaultConfig())
		if !got.Valid || got.Status != OutcomeInsufficientChain {
			t.Errorf("%s: got %+v, want valid insufficient-chain", name, got)
		}
	}
	if calls.Load() != 0 {
		t.Error("verifier must not be called for short chains")
	}
}

func TestVerifyCertificate_Classification(t *testing.T) {
	tests := []struct {
		name   string
		resp   Response
		valid  bool
		status Outcome
		reason string
	}{
		{"good", Response{Status: OutcomeGood}, true, OutcomeGood, ""},
		{"revoked", Response{Status: OutcomeRevoked, Reason: "keyCompromise"}, false, OutcomeRevoked, "keyCompromise"},
		{"unknown", Response{Status: OutcomeUnknown}, false, OutcomeUnknown, ""},
		{"odd status", Response{Status: "pending"}, false, OutcomeUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestChecker(t, cache.NewMemoryCache(cache.DefaultPolicy()), staticVerifier(tt.resp, nil, nil))
			leaf, _ := newTestPKI(t, "", "").pair()

			got := c.VerifyCertificate(context.Background(), leaf, DefaultConfig())
			if got.Valid != tt.valid || got.Status != tt.status || got.Reason != tt.reason {
				t.Errorf("got %+v", got)
			}
			if got.Cached {
				t.Error("first lookup should not be cached")
			}
			if got.Method != MethodOCSP {
				t.Errorf("Method = %q", got.Method)
			}
		})
	}
}

func TestVerifyOCSP_NilCertificate(t *testing.T) {
	c := newTestChecker(t, cache.NewMemoryCache(cache.DefaultPolicy()), staticVerifier(Response{}, nil, nil))
	leaf, issuer := newTestPKI(t, "", "").pair()

	if _, err := c.VerifyOCSP(context.Background(), nil, issuer, DefaultConfig()); err != ErrNilCertificate {
		t.Errorf("nil cert error = %v", err)
	}
	if _, err := c.VerifyOCSP(context.Background(), leaf, nil, DefaultConfig()); err != ErrNilCertificate {
		t.Errorf("nil issuer error = %v", err)
	}
}

func TestVerifyOCSP_CachesResult(t *testing.T) {
	var calls atomic.Int32
	store := &countingCache{Cache: cache.NewMemoryCache(cache.DefaultPolicy())}
	c := newTestChecker(t, store, staticVerifier(Response{Status: OutcomeGood}, nil, &calls))
	fixed := time.UnixMilli(1_700_000_000_000)
	c.now = func() time.Time { return fixed }
	leaf, issuer := newTestPKI(t, "", "").pair()
	cfg := DefaultConfig()
	cfg.CacheTTL = 10 * time.Minute

	first, _ := c.VerifyOCSP(context.Background(), leaf, issuer, cfg)
	second, _ := c.VerifyOCSP(context.Background(), leaf, issuer, cfg)

	if first.Cached || !second.Cached {
		t.Errorf("Cached = (%v, %v), want (false, true)", first.Cached, second.Cached)
	}
	if !second.Valid || second.Status != OutcomeGood {
		t.Errorf("cached result = %+v", second)
	}
	if calls.Load() != 1 || store.sets.Load() != 1 {
		t.Errorf("verifier calls = %d, cache writes = %d, want 1 and 1", calls.Load(), store.sets.Load())
	}

	data, ok, err := store.Get(context.Background(), CacheKey(leaf.PEM))
	if err != nil || !ok {
		t.Fatalf("cache entry missing: ok=%v err=%v", ok, err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry.CertificateID != CacheKey(leaf.PEM) || entry.Method != MethodOCSP {
		t.Errorf("entry = %+v", entry)
	}
	if entry.CheckedAt != fixed.UnixMilli() || entry.ExpiresAt != fixed.Add(10*time.Minute).UnixMilli() {
		t.Errorf("entry times = (%d, %d)", entry.CheckedAt, entry.ExpiresAt)
	}
}

func TestVerifyOCSP_CoalescesConcurrentCalls(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	verifier := VerifierFunc(func(ctx context.Context, _ []byte, _ CheckOptions) (Response, error) {
		calls.Add(1)
		<-release
		return Response{Status: OutcomeGood}, nil
	})

	store := &countingCache{Cache: cache.NewMemoryCache(cache.DefaultPolicy())}
	c := newTestChecker(t, store, verifier)
	leaf, issuer := newTestPKI(t, "", "").pair()

	const callers = 5
	var wg sync.WaitGroup
	results := make([]Result, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.VerifyOCSP(context.Background(), leaf, issuer, DefaultConfig())
		}(i)
	}

	// Every caller has missed the cache; give them a moment to join the flight.
	deadline := time.Now().Add(2 * time.Second)
	for store.gets.Load() < callers && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("verifier calls = %d, want 1", calls.Load())
	}
	if store.sets.Load() != 1 {
		t.Errorf("cache writes = %d, want 1", store.sets.Load())
	}
	for i, r := range results {
		if !r.Valid || r.Status != OutcomeGood {
			t.Errorf("caller %d got %+v", i, r)
		}
	}

	// The flight is gone; a later call is served from the cache.
	again, _ := c.VerifyOCSP(context.Background(), leaf, issuer, DefaultConfig())
	if !again.Cached || calls.Load() != 1 {
		t.Errorf("follow-up = %+v, calls = %d", again, calls.Load())
	}
}

func TestVerifyOCSP_FailureModes(t *testing.T) {
	verr := errors.New("responder unreachable")

	tests := []struct {
		mode   FailureMode
		valid  bool
		status Outcome
	}{
		{"", true, OutcomeErrorAllowed},
		{FailOpen, true, OutcomeErrorAllowed},
		{FailClosed, false, OutcomeError},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			store := &countingCache{Cache: cache.NewMemoryCache(cache.DefaultPolicy())}
			c := newTestChecker(t, store, staticVerifier(Response{}, verr, nil))
			leaf, issuer := newTestPKI(t, "", "").pair()

			got, err := c.VerifyOCSP(context.Background(), leaf, issuer, Config{Enabled: true, FailureMode: tt.mode})
			if err != nil {
				t.Fatalf("VerifyOCSP() error = %v", err)
			}
			if got.Valid != tt.valid || got.Status != tt.status {
				t.Errorf("got %+v", got)
			}
			if got.Error == "" {
				t.Error("failure result should carry the error text")
			}
			if store.sets.Load() != 0 {
				t.Error("failures must not be cached")
			}
		})
	}
}

func TestVerifyOCSP_Timeout(t *testing.T) {
	verifier := VerifierFunc(func(ctx context.Context, _ []byte, _ CheckOptions) (Response, error) {
		<-ctx.Done()
		return Response{}, ctx.Err()
	})
	var logs bytes.Buffer
	c := newTestChecker(t, cache.NewMemoryCache(cache.DefaultPolicy()), verifier,
		WithInstrumentation(observe.Instrumentation{Logger: observe.NewLoggerWithWriter("debug", &logs)}))
	leaf, issuer := newTestPKI(t, "", "").pair()

	cfg := Config{Enabled: true, Timeout: 20 * time.Millisecond, FailureMode: FailClosed}
	start := time.Now()
	got, _ := c.VerifyOCSP(context.Background(), leaf, issuer, cfg)

	if got.Valid || got.Status != OutcomeError {
		t.Errorf("got %+v, want fail-closed error", got)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout not enforced, took %v", elapsed)
	}
	if !strings.Contains(logs.String(), "timed out") {
		t.Errorf("log = %q, want a timeout entry", logs.String())
	}
}

func TestVerifyOCSP_VerifierIgnoringDeadline(t *testing.T) {
	finished := make(chan struct{})
	verifier := VerifierFunc(func(context.Context, []byte, CheckOptions) (Response, error) {
		defer close(finished)
		time.Sleep(60 * time.Millisecond)
		return Response{Status: OutcomeRevoked, Reason: "keyCompromise"}, nil
	})
	store := cache.NewMemoryCache(cache.DefaultPolicy())
	c := newTestChecker(t, store, verifier)
	leaf, issuer := newTestPKI(t, "", "").pair()

	cfg := Config{Enabled: true, Timeout: 10 * time.Millisecond, FailureMode: FailOpen}
	got, _ := c.VerifyOCSP(context.Background(), leaf, issuer, cfg)
	<-finished

	if !got.Valid || got.Status != OutcomeErrorAllowed || got.Reason != "" {
		t.Errorf("got %+v, want fail-open error-allowed without the late answer", got)
	}
	if _, ok, _ := store.Get(context.Background(), CacheKey(leaf.PEM)); ok {
		t.Error("a late verifier answer must not be cached")
	}
}

func TestVerifyOCSP_MissingVerifierFollowsFailureMode(t *testing.T) {
	c := newTestChecker(t, cache.NewMemoryCache(cache.DefaultPolicy()), staticVerifier(Response{Status: OutcomeGood}, nil, nil))
	leaf, issuer := newTestPKI(t, "", "").pair()

	got, _ := c.VerifyOCSP(context.Background(), leaf, issuer, Config{Enabled: true, Method: MethodCRL, FailureMode: FailClosed})
	if got.Valid || got.Status != OutcomeError {
		t.Errorf("got %+v", got)
	}
}

func TestVerifyOCSP_CircuitOpens(t *testing.T) {
	var calls atomic.Int32
	exec := resilience.NewExecutor(resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Hour,
	})))
	c := newTestChecker(t, cache.NewMemoryCache(cache.DefaultPolicy()),
		staticVerifier(Response{}, errors.New("boom"), &calls), WithExecutor(exec))
	leaf, issuer := newTestPKI(t, "", "").pair()

	for i := 0; i < 5; i++ {
		got, _ := c.VerifyOCSP(context.Background(), leaf, issuer, DefaultConfig())
		if got.Status != OutcomeErrorAllowed {
			t.Fatalf("call %d: got %+v", i, got)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("verifier calls = %d, want 2 before the circuit opened", calls.Load())
	}
	if exec.CircuitBreaker().State() != resilience.StateOpen {
		t.Errorf("circuit state = %v", exec.CircuitBreaker().State())
	}
}

func TestVerifyOCSP_CacheErrorsDegrade(t *testing.T) {
	var calls atomic.Int32
	c := newTestChecker(t, brokenCache{}, staticVerifier(Response{Status: OutcomeGood}, nil, &calls))
	leaf, issuer := newTestPKI(t, "", "").pair()

	got, err := c.VerifyOCSP(context.Background(), leaf, issuer, DefaultConfig())
	if err != nil || !got.Valid || got.Status != OutcomeGood {
		t.Errorf("got (%+v, %v)", got, err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d", calls.Load())
	}
}

func TestVerifyOCSP_CorruptEntryIsMiss(t *testing.T) {
	var calls atomic.Int32
	store := cache.NewMemoryCache(cache.DefaultPolicy())
	c := newTestChecker(t, store, staticVerifier(Response{Status: OutcomeRevoked}, nil, &calls))
	leaf, issuer := newTestPKI(t, "", "").pair()

	if err := store.Set(context.Background(), CacheKey(leaf.PEM), []byte("{"), time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, _ := c.VerifyOCSP(context.Background(), leaf, issuer, DefaultConfig())
	if got.Cached || got.Status != OutcomeRevoked || calls.Load() != 1 {
		t.Errorf("got %+v, calls = %d", got, calls.Load())
	}
}

func TestVerifyOCSP_RecordsMetrics(t *testing.T) {
	metrics := &recordingMetrics{}
	c := newTestChecker(t, cache.NewMemoryCache(cache.DefaultPolicy()),
		staticVerifier(Response{Status: OutcomeGood}, nil, nil),
		WithInstrumentation(observe.Instrumentation{Metrics: metrics}))
	leaf, issuer := newTestPKI(t, "", "").pair()

	_, _ = c.VerifyOCSP(context.Background(), leaf, issuer, DefaultConfig())
	_, _ = c.VerifyOCSP(context.Background(), leaf, issuer, DefaultConfig())

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if len(metrics.out) != 2 {
		t.Fatalf("recorded %d verifications", len(metrics.out))
	}
	if metrics.out[0].Cached || !metrics.out[1].Cached || metrics.out[1].Status != "good" {
		t.Errorf("outcomes = %+v", metrics.out)
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
	for _, cfg := range []Config{
		{FailureMode: "maybe"},
		{Method: "dns"},
		{Timeout: -1},
	} {
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Validate(%+v) = %v, want ErrInvalidConfig", cfg, err)
		}
	}
}

func TestParseFailureMode(t *testing.T) {
	if m, err := ParseFailureMode("fail-closed"); err != nil || m != FailClosed {
		t.Errorf("ParseFailureMode(fail-closed) = (%q, %v)", m, err)
	}
	if _, err := ParseFailureMode("closed"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("ParseFailureMode(closed) error = %v", err)
	}
}

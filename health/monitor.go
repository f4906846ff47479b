package health

import (
	"context"
	"sync"
	"time"
)

// MonitorConfig configures the check monitor.
type MonitorConfig struct {
	// Timeout is the maximum time to wait for all checks.
	// Default: 10 seconds
	Timeout time.Duration

	// Parallel runs health checks in parallel when true.
	// Default: true
	Parallel bool
}

// Monitor runs registered checkers and records each result into a Registry
// under the checker's registered name.
type Monitor struct {
	config   MonitorConfig
	registry *Registry
	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string
}

// NewMonitor creates a monitor that reports into registry.
func NewMonitor(registry *Registry, config ...MonitorConfig) *Monitor {
	cfg := MonitorConfig{
		Timeout:  10 * time.Second,
		Parallel: true,
	}
	if len(config) > 0 {
		cfg = config[0]
		if cfg.Timeout <= 0 {
			cfg.Timeout = 10 * time.Second
		}
	}

	return &Monitor{
		config:   cfg,
		registry: registry,
		checkers: make(map[string]Checker),
	}
}

// Register adds a checker. The component is marked loading until its first
// check completes.
func (m *Monitor) Register(name string, checker Checker) error {
	if err := m.registry.InitializeLoading(name, ""); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.checkers[name]; !exists {
		m.order = append(m.order, name)
	}
	m.checkers[name] = checker
	return nil
}

// Unregister removes a checker. Its last recorded status stays in the registry.
func (m *Monitor) Unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.checkers, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// CheckerNames returns the names of all registered checkers.
func (m *Monitor) CheckerNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}

// Check runs a single named checker and records its result.
func (m *Monitor) Check(ctx context.Context, name string) (Result, error) {
	m.mu.RLock()
	checker, ok := m.checkers[name]
	m.mu.RUnlock()

	if !ok {
		return Result{}, ErrCheckerNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	result := m.runCheck(ctx, checker)
	m.record(name, result)
	return result, nil
}

// CheckAll runs every registered checker, records the results and returns them.
func (m *Monitor) CheckAll(ctx context.Context) map[string]Result {
	m.mu.RLock()
	checkers := make(map[string]Checker, len(m.checkers))
	for name, checker := range m.checkers {
		checkers[name] = checker
	}
	m.mu.RUnlock()

	results := make(map[string]Result, len(checkers))
	if len(checkers) == 0 {
		return results
	}

	ctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	if m.config.Parallel {
		var wg sync.WaitGroup
		var mu sync.Mutex

		for name, checker := range checkers {
			wg.Add(1)
			go func(name string, checker Checker) {
				defer wg.Done()
				result := m.runCheck(ctx, checker)
				mu.Lock()
				results[name] = result
				mu.Unlock()
			}(name, checker)
		}

		wg.Wait()
	} else {
		for name, checker := range checkers {
			results[name] = m.runCheck(ctx, checker)
		}
	}

	for name, result := range results {
		m.record(name, result)
	}
	return results
}

// Run calls CheckAll immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.CheckAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckAll(ctx)
		}
	}
}

func (m *Monitor) record(name string, result Result) {
	level := result.Status
	if !level.Valid() {
		level = LevelUnknown
	}
	// name was validated by Register
	_ = m.registry.SetStatus(name, level, result.Message, result.Error)
}

func (m *Monitor) runCheck(ctx context.Context, checker Checker) Result {
	start := time.Now()

	resultCh := make(chan Result, 1)

	go func() {
		result := checker.Check(ctx)
		result.Duration = time.Since(start)
		if result.Timestamp.IsZero() {
			result.Timestamp = start
		}
		resultCh <- result
	}()

	select {
	case result := <-resultCh:
		return result
	case <-ctx.Done():
		return Result{
			Status:    LevelError,
			Message:   "check timed out",
			Error:     ErrCheckTimeout,
			Duration:  time.Since(start),
			Timestamp: start,
		}
	}
}

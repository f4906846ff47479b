package health

import (
	"sync"
	"time"
)

// ComponentStatus is the latest reported state of one component in one
// execution context.
type ComponentStatus struct {
	Status      Level
	Message     string
	Err         error // set only when Status is LevelError
	LastChecked time.Time
}

// NamedStatus pairs a component name with its status.
type NamedStatus struct {
	Name string
	ComponentStatus
}

// Registry holds the component statuses of a single execution context.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: only SetStatus and its wrappers fail, and only on malformed input.
type Registry struct {
	mu       sync.RWMutex
	statuses map[string]*ComponentStatus
	order    []string // insertion order
	now      func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		statuses: make(map[string]*ComponentStatus),
		now:      time.Now,
	}
}

// SetStatus replaces the status of the named component. Any non-empty
// name is accepted, including one made only of whitespace.
func (r *Registry) SetStatus(name string, level Level, message string, err error) error {
	if name == "" {
		return &InvalidArgumentError{Op: "SetStatus", Name: name, Reason: "component name must be a non-empty string"}
	}
	if !level.Valid() {
		return &InvalidArgumentError{Op: "SetStatus", Name: name, Reason: "unrecognized status level " + string(level)}
	}
	if level != LevelError {
		err = nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.statuses[name]; !exists {
		r.order = append(r.order, name)
	}
	r.statuses[name] = &ComponentStatus{
		Status:      level,
		Message:     message,
		Err:         err,
		LastChecked: r.now(),
	}
	return nil
}

// ReportHealthy marks the component healthy.
func (r *Registry) ReportHealthy(name, message string) error {
	return r.SetStatus(name, LevelHealthy, message, nil)
}

// ReportWarning marks the component as warning.
func (r *Registry) ReportWarning(name, message string) error {
	return r.SetStatus(name, LevelWarning, message, nil)
}

// ReportError marks the component failed. An empty message defaults to the
// error text.
func (r *Registry) ReportError(name string, err error, message string) error {
	if message == "" && err != nil {
		message = err.Error()
	}
	return r.SetStatus(name, LevelError, message, err)
}

// InitializeLoading marks the component as loading.
func (r *Registry) InitializeLoading(name, message string) error {
	if message == "" {
		message = "Initializing"
	}
	return r.SetStatus(name, LevelLoading, message, nil)
}

// MarkLoaded marks a loading component healthy.
func (r *Registry) MarkLoaded(name, message string) error {
	if message == "" {
		message = "Loaded successfully"
	}
	return r.SetStatus(name, LevelHealthy, message, nil)
}

// MarkFailed marks a loading component failed.
func (r *Registry) MarkFailed(name string, err error, message string) error {
	if message == "" {
		if err != nil {
			message = err.Error()
		} else {
			message = "Failed to load"
		}
	}
	return r.SetStatus(name, LevelError, message, err)
}

// Status returns the status of the named component.
func (r *Registry) Status(name string) (ComponentStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.statuses[name]
	if !ok {
		return ComponentStatus{}, false
	}
	return *s, true
}

// AllStatuses returns every component in insertion order.
func (r *Registry) AllStatuses() []NamedStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]NamedStatus, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, NamedStatus{Name: name, ComponentStatus: *r.statuses[name]})
	}
	return out
}

// ComponentsByStatus returns the components currently at level, in insertion order.
func (r *Registry) ComponentsByStatus(level Level) []NamedStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []NamedStatus
	for _, name := range r.order {
		if s := r.statuses[name]; s.Status == level {
			out = append(out, NamedStatus{Name: name, ComponentStatus: *s})
		}
	}
	return out
}

// StatusSummary counts components per level. All five levels are present.
func (r *Registry) StatusSummary() map[Level]int {
	counts := make(map[Level]int, 5)
	for _, l := range Levels() {
		counts[l] = 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.statuses {
		counts[s.Status]++
	}
	return counts
}

// Summaries serializes every component for the given worker index.
func (r *Registry) Summaries(workerIndex int) []NamedSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]NamedSummary, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, NamedSummary{Name: name, Summary: r.statuses[name].Summary(workerIndex)})
	}
	return out
}

// Len returns the number of components.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Reset discards every status.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.statuses = make(map[string]*ComponentStatus)
	r.order = nil
}

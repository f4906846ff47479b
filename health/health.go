package health

import (
	"context"
	"time"
)

// Level is the health level of a component.
type Level string

const (
	// LevelHealthy indicates the component is functioning normally.
	LevelHealthy Level = "healthy"
	// LevelWarning indicates the component is functioning but with issues.
	LevelWarning Level = "warning"
	// LevelError indicates the component is not functioning properly.
	LevelError Level = "error"
	// LevelLoading indicates the component is still starting up.
	LevelLoading Level = "loading"
	// LevelUnknown indicates nothing is known about the component yet.
	LevelUnknown Level = "unknown"
)

// Levels returns every valid level, lowest priority first.
func Levels() []Level {
	return []Level{LevelHealthy, LevelUnknown, LevelLoading, LevelWarning, LevelError}
}

// ParseLevel converts a string into a Level.
func ParseLevel(s string) (Level, bool) {
	l := Level(s)
	return l, l.Valid()
}

// Valid reports whether l is one of the five known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelHealthy, LevelWarning, LevelError, LevelLoading, LevelUnknown:
		return true
	default:
		return false
	}
}

// Priority orders levels for aggregation: error > warning > loading > unknown > healthy.
// Unrecognized levels rank with unknown.
func (l Level) Priority() int {
	switch l {
	case LevelError:
		return 4
	case LevelWarning:
		return 3
	case LevelLoading:
		return 2
	case LevelHealthy:
		return 0
	default:
		return 1
	}
}

// String returns the string representation of the level.
func (l Level) String() string {
	return string(l)
}

// higher returns whichever of a and b has the greater priority.
func higher(a, b Level) Level {
	if b.Priority() > a.Priority() {
		return b
	}
	return a
}

// Result contains the outcome of a health check.
type Result struct {
	// Status is the health level.
	Status Level

	// Message provides additional context about the status.
	Message string

	// Details contains arbitrary metadata about the check.
	Details map[string]any

	// Duration is how long the check took.
	Duration time.Duration

	// Timestamp is when the check was performed.
	Timestamp time.Time

	// Error is the error if the check failed.
	Error error
}

// Healthy creates a healthy result.
func Healthy(message string) Result {
	return Result{
		Status:    LevelHealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Warning creates a warning result.
func Warning(message string) Result {
	return Result{
		Status:    LevelWarning,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Unhealthy creates an error result.
func Unhealthy(message string, err error) Result {
	return Result{
		Status:    LevelError,
		Message:   message,
		Error:     err,
		Timestamp: time.Now(),
	}
}

// WithDetails adds details to a result.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Checker is the interface for health checks.
type Checker interface {
	// Name returns the name of this checker.
	Name() string

	// Check performs the health check and returns the result.
	Check(ctx context.Context) Result
}

// CheckerFunc is an adapter to allow ordinary functions to be used as Checkers.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc creates a new CheckerFunc.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

// Name returns the name of this checker.
func (f *CheckerFunc) Name() string {
	return f.name
}

// Check performs the health check.
func (f *CheckerFunc) Check(ctx context.Context) Result {
	return f.fn(ctx)
}

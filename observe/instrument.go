package observe

// Instrumentation bundles the telemetry handles a component needs.
// Zero fields are filled with no-op implementations by OrNop.
type Instrumentation struct {
	Tracer  Tracer
	Metrics Metrics
	Logger  Logger
}

// NewInstrumentation builds tracer, metrics and logger from an Observer.
func NewInstrumentation(obs Observer) (Instrumentation, error) {
	if obs == nil {
		return Instrumentation{}, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return Instrumentation{}, err
	}

	return Instrumentation{
		Tracer:  NewTracer(obs.Tracer()),
		Metrics: metrics,
		Logger:  obs.Logger(),
	}, nil
}

// Nop returns instrumentation that records nothing.
func Nop() Instrumentation {
	return Instrumentation{
		Tracer:  NewNoopTracer(),
		Metrics: NewNoopMetrics(),
		Logger:  NewNopLogger(),
	}
}

// OrNop replaces missing handles with no-op ones.
func (i Instrumentation) OrNop() Instrumentation {
	if i.Tracer == nil {
		i.Tracer = NewNoopTracer()
	}
	if i.Metrics == nil {
		i.Metrics = NewNoopMetrics()
	}
	if i.Logger == nil {
		i.Logger = NewNopLogger()
	}
	return i
}

// Named returns a copy whose logger tags every entry with component.
func (i Instrumentation) Named(component string) Instrumentation {
	i = i.OrNop()
	i.Logger = i.Logger.With(F("component", component))
	return i
}

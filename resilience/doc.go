// Package resilience guards calls to slow or unreliable dependencies.
//
// A Timeout bounds how long a caller waits, a CircuitBreaker stops calling a
// dependency that keeps failing, and a Bulkhead caps how many calls are in
// flight. An Executor stacks the three:
//
//	exec := resilience.NewExecutorFromConfig(resilience.ExecutorConfig{
//	    Name:          "ocsp",
//	    Timeout:       5 * time.Second,
//	    MaxFailures:   5,
//	    ResetTimeout:  30 * time.Second,
//	    MaxConcurrent: 16,
//	})
//
//	resp, err := resilience.Call(ctx, exec, func(ctx context.Context) (*Response, error) {
//	    return responder.Query(ctx, req)
//	})
package resilience

// Package health tracks component health inside one execution context and
// merges the views of many contexts into one.
//
// # Registry
//
// Each execution context (the main goroutine set or one worker) owns a
// Registry mapping component names to their latest ComponentStatus:
//
//	reg := health.NewRegistry()
//	_ = reg.InitializeLoading("replication", "")
//	_ = reg.MarkLoaded("replication", "")
//	_ = reg.Component("db.rest").Error("listener failed", err)
//
// A status is one of five levels: healthy, warning, error, loading, unknown.
//
// # Aggregation
//
// Statuses from several contexts are exchanged as Summary values keyed by
// "component@label", where label is "main" or "worker-N". Aggregate reduces
// such a flat map to one AggregatedStatus per component. The overall status is
// the highest-priority level present (error > warning > loading > unknown >
// healthy); contexts that disagree with it are listed as Abnormalities.
//
// RollUp then folds a component and its dotted sub-components ("app",
// "app.rest", "app.static") into one GroupStatus.
//
// # Checks
//
// A Monitor runs Checkers periodically and records their results into a
// Registry, so pull-style checks and push-style reports share one view.
//
// # HTTP Endpoints
//
//	r := chi.NewRouter()
//	health.RegisterRoutes(r, reg, collector)
package health

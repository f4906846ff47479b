package collector

import (
	"context"

	"github.com/jonwraymond/workerhealth/bus"
	"github.com/jonwraymond/workerhealth/health"
	"github.com/jonwraymond/workerhealth/observe"
)

// CollectAcrossThreads returns every known component status keyed
// "component@label". The local snapshot is always present; peer snapshots
// are added for every peer that answered in time.
func (c *Collector) CollectAcrossThreads(ctx context.Context) map[string]health.Summary {
	self := c.threads.Current()
	out := make(map[string]health.Summary)
	addSnapshot(out, self.Label(), c.registry.Summaries(self.WorkerIndex()))

	responses, err := c.Collect(ctx)
	if err != nil {
		c.inst.Logger.Warn(ctx, "cross-thread collection failed, using local status only", observe.Err(err))
		return out
	}

	for _, resp := range responses {
		label := responseLabel(resp)
		for _, e := range resp.Statuses {
			out[health.QualifiedName(e.Name, label)] = e.Summary
		}
	}
	return out
}

// AggregatedStatus collects across threads and aggregates per component.
func (c *Collector) AggregatedStatus(ctx context.Context) map[string]health.AggregatedStatus {
	return health.Aggregate(c.CollectAcrossThreads(ctx))
}

// StatusFor rolls up base and its dotted sub-components across threads.
func (c *Collector) StatusFor(ctx context.Context, base string) health.GroupStatus {
	return health.RollUp(base, c.AggregatedStatus(ctx))
}

func addSnapshot(out map[string]health.Summary, label string, snapshot []health.NamedSummary) {
	for _, s := range snapshot {
		out[health.QualifiedName(s.Name, label)] = s.Summary
	}
}

// responseLabel derives the thread label from what the responder reports
// about itself, falling back to the transport's sender id.
func responseLabel(m bus.Message) string {
	if m.IsMainThread {
		return health.MainLabel
	}
	if m.WorkerIndex >= 0 && !m.From.IsMain() {
		return health.ThreadLabel(m.WorkerIndex)
	}
	return m.From.Label()
}

// Package collector gathers component health from every execution context.
//
// Each context runs one Collector on its own bus endpoint. A Collector
// answers STATUS_REQUEST messages with its local registry snapshot and, when
// asked via Collect, broadcasts a request and waits for peer responses until
// every peer has answered or the collection timeout fires. A timeout is a
// partial result, not an error.
//
// CollectAcrossThreads merges the local snapshot with every collected peer
// snapshot into a flat map keyed "component@label". It never fails: when the
// broadcast itself fails the result holds local data only.
//
// # Usage
//
//	hub := bus.NewHub(4)
//	defer hub.Close()
//
//	c, err := collector.New(collector.Config{}, registry, hub.Main(), hub.Main())
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	status := c.AggregatedStatus(ctx)
package collector

// Package bus carries status messages between execution contexts.
//
// Every context (the main context and each worker) owns one Bus endpoint.
// Hub connects endpoints inside a single process; NATSBus connects
// processes through a NATS server. Both deliver each inbound message to the
// handlers subscribed for its type, one message at a time per endpoint.
package bus

// Package metrics maintains live rolling statistics per endpoint.
//
// Each endpoint owns a shard holding two fixed-capacity ring windows — a
// short window for recent views and a long window for historical views.
// Running sums (count, successes, latency sum, latency sum of squares) are
// kept alongside the rings so mean and standard deviation are O(1) on read;
// percentiles sort a bounded snapshot copy of the window instead.
//
// Shards are written by the single scheduling loop that owns the endpoint.
// Readers (the alert tick, the HTTP API, the WebSocket hub) take immutable
// Aggregated value snapshots, never references into shard state.
package metrics

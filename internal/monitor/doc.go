// Package monitor wires the probing pipeline together: scheduler feeds
// the aggregator, an evaluation ticker snapshots windows, scores them,
// runs the alert rules, and publishes transitions to the broadcaster.
package monitor

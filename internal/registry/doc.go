// Package registry loads and validates the set of endpoints to monitor.
//
// The endpoint list is read once per monitoring session from a JSON file and
// is immutable afterwards. Load rejects the whole file if any entry fails
// validation, naming the entry and field — the pipeline never starts with a
// partially valid endpoint set.
package registry

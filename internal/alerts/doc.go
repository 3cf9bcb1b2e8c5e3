// Package alerts evaluates threshold rules against endpoint scores and
// metrics. Each (endpoint, rule) pair carries its own small state
// machine with sustain counts in both directions, so a single noisy
// tick neither raises nor clears an alert.
package alerts

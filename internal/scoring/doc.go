// Package scoring turns aggregated endpoint metrics into quality scores.
// Scoring is a pure computation: the same metrics and weights always
// produce the same components, and no state is kept between calls.
package scoring

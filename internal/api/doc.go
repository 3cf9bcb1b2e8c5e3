// Package api serves the REST surface for the display layer: endpoint
// inventory, window metrics, current scores, and active alerts, all as
// JSON under /api/v1.
package api

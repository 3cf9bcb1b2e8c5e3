// Package ws streams live endpoint scores and alert events to
// WebSocket clients. Each client gets a bounded send buffer; a client
// that cannot keep up is disconnected rather than allowed to stall the
// broadcast loop.
package ws

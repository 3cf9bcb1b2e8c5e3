// Package notify delivers alert events to external webhook targets.
// The notifier is an ordinary broadcaster subscriber: it consumes its
// own bounded queue, so slow or failing webhooks never back up the
// alert pipeline.
package notify

// Package broadcast fans alert events out to subscribers over bounded
// channels. Delivery never blocks: a subscriber that falls behind loses
// the newest events and the loss is counted per subscriber.
package broadcast

// Package scheduler drives probing: one timing loop per endpoint with
// jittered intervals, bounded globally by a weighted semaphore so a
// large endpoint set cannot stampede the network.
package scheduler

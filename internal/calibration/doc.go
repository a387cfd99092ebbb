// Package calibration learns each vehicle type's physical length from the
// gaps observed at the moment the tracked car clears its neighbours.
//
// Sampling is edge-triggered: a two-state machine (Clear, NotClear) fires
// once on the NotClear -> Clear transition. Accepted clearances feed a
// bounded window per vehicle type which is trimmed from both ends and
// summarised by its median.
//
// Estimates live for the lifetime of the Calibrator and are never evicted.
// A session sees a few dozen vehicle types at most.
//
// The Calibrator is single-threaded: it is driven from the tick loop and
// owns its table exclusively.
package calibration

// Package radar assembles one proximity frame per simulation tick.
//
// An Engine turns a TickInput into a Frame by computing each active car's
// signed distance from the tracked car, ranking the cars inside the radar
// radius, feeding the proximity flag to the length calibrator and attaching
// the calibrated length of every car's vehicle type. Frames are immutable
// once returned. A FrameStore keeps the last good frame for readers on other
// goroutines.
package radar

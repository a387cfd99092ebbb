// Package telemetry decodes the sim's data feeds: per-tick car position
// records arriving as JSON lines, and the tyre temperature logs the sim
// writes to disk.
package telemetry

// Package trackpos converts per-car lap-fraction samples into signed
// relative distances on a closed circuit.
//
// Sign convention: a positive delta means the other car is BEHIND the
// tracked car by that many metres along the direction of travel; a
// negative delta means it is AHEAD. Every consumer (ranking, span
// rendering, calibration clearance) goes through the helpers in this
// package rather than re-deriving the sign.
//
// No allocation, no state. Callers validate inputs once at their boundary
// with ValidateTrackLength and ValidateLapFraction.
package trackpos

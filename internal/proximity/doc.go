// Package proximity ranks the cars near the tracked car by signed relative
// distance and locates its nearest neighbours on either side.
//
// Ordering follows the trackpos sign convention: entries are sorted by
// descending delta, so cars behind come first, then self, then cars ahead.
// Ties are broken by ascending car index so the order is deterministic.
package proximity

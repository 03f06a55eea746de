// Package drag turns low-level pointer events into a paired
// start/move/end callback stream.
//
// A Controller owns at most one Session at a time. Moves are coalesced to
// one callback per frame when throttling is enabled; the frame source is a
// FrameScheduler so hosts can drive it from a wall clock (ClockScheduler),
// an owner event loop, or explicitly in tests (ManualScheduler).
//
// Guarantee: every start callback is followed by exactly one end callback,
// and move callbacks only happen between the two.
package drag

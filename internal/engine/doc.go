// ABOUTME: Real-time audio engines driven once per quantum
// ABOUTME: Recorder, calibrator, noise generator and mixer behind one Graph
// Package engine runs the per-quantum audio work of a rehearsal session.
//
// A Graph owns every engine and is called from the device callback. The
// callback path never blocks, never logs and, once warmed up, never
// allocates: structural changes arrive as Commands on a bounded channel that
// is drained at quantum entry, scalar parameters are read once per quantum
// from atomics (see Params), and results leave as Notifications through a
// bounded channel with non-blocking sends.
//
// Capture storage comes from a CapturePool that the control loop keeps
// topped up, so a take of any length is recorded without allocating on the
// audio thread.
package engine

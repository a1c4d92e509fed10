// Package transport owns the rehearsal timeline: whether it is playing,
// where transport zero sits on the audio clock, and which items should be
// sounding.
//
// The Scheduler is not safe for concurrent use. A single cooperative loop
// calls every method and runs Pass on a short period, creating mixer voices
// just before they are due so only a handful are ever pending.
package transport

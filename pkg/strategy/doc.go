// Package strategy runs named steps grouped into strategies, falling back
// from one strategy to the next when a step fails.
//
// A Strategy is plain data: an ordered list of step names, the recovery
// steps to run when one of them fails, and the strategy to try next. Steps
// are looked up by name in a registry, so the same few operations can be
// recombined into different chains:
//
//	full-update ──fail──▶ selective-update ──fail──▶ restore-and-exit
//
// The engine stops at the first strategy whose steps all succeed. A
// strategy marked Exit ends the run as failed even when its own steps
// succeed; it is how the chain restores state before giving up.
//
// Errors classified fatal by errors.IsFatal, and context cancellation, stop
// the engine at once without recovery or fallback.
package strategy

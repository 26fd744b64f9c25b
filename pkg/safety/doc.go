// Package safety decides whether a freshly built system can be switched to
// while the machine is in use.
//
// The analyzer reads the closure diff between the running system and the
// candidate (nvd output) and applies a few substring heuristics:
//
//   - a GPU driver whose major or minor version moves needs a reboot and is
//     unsafe to apply immediately
//   - any kernel change needs a reboot
//   - desktop packages that change while the user has an active graphical
//     session are unsafe to apply immediately
//
// Rules only ever add caution. When something cannot be determined, such as
// the session list or the diff itself, the analyzer assumes the worse case.
// A Report never blocks a deploy; it is shown next to the deploy prompt.
package safety

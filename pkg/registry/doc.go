// Package registry provides a generic, type-safe name -> value table. The
// updater keeps its named steps in one so strategies can refer to them by
// name.
package registry

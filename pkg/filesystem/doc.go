// Package filesystem provides the small file API the lock snapshot store and
// the build executor need, with an OS implementation and an afero-backed one
// for tests.
package filesystem

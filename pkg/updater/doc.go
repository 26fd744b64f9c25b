// Package updater wires the fleetup components into one update run.
//
// A run backs up flake.lock, refreshes the flake inputs, checks and builds
// every host, and on failure restores the lock and retries with some inputs
// held back. Once a build succeeds the lock change is committed, the local
// candidate system is diffed against the running one and classified by the
// safety analyzer, and the operator picks what to deploy.
//
// All state of a run lives in a RunContext passed to every step. The backup
// is removed when Run returns, however it returns.
package updater

// Package snapshot keeps the undo point for one update run.
//
// Before the inputs are refreshed the lock file is copied byte for byte to a
// private temp file. If the update or the build fails the copy is written
// back, and at the end of the run the copy is removed whatever happened.
//
//	store := snapshot.NewStore(fs, lockPath, vcsBackend)
//	h, err := store.Backup()
//	defer store.Cleanup(h)
//	...
//	if failed {
//		err = store.Restore(h)
//	}
//
// Restore and Cleanup accept a nil handle, which is what Backup returns when
// there was no lock file to save.
package snapshot

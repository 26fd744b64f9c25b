package filesystem

import "io/fs"

// FS is the file access surface used by fleetup
type FS interface {
	Stat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error

	// WriteTemp writes data to a new uniquely named file in dir (the system
	// temp directory when dir is empty) and returns its path.
	WriteTemp(dir, pattern string, data []byte) (string, error)

	Remove(name string) error
	Readlink(name string) (string, error)
}

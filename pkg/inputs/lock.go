package inputs

import (
	"encoding/json"
	"sort"

	"github.com/arthur-debert/fleetup/pkg/errors"
	"github.com/arthur-debert/fleetup/pkg/filesystem"
)

// RootNode is the lock graph's entry node. It is never an update candidate.
const RootNode = "root"

// LockGraph is the part of flake.lock fleetup reads
type LockGraph struct {
	Nodes   map[string]json.RawMessage `json:"nodes"`
	Root    string                     `json:"root"`
	Version int                        `json:"version"`
}

// LoadGraph parses the lock file at path
func LoadGraph(fsys filesystem.FS, path string) (*LockGraph, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrLockIO, "read %s", path)
	}
	return ParseGraph(data)
}

// ParseGraph decodes lock file bytes
func ParseGraph(data []byte) (*LockGraph, error) {
	var g LockGraph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, errors.Wrap(err, errors.ErrLockParse, "parse lock file")
	}
	if g.Nodes == nil {
		return nil, errors.New(errors.ErrLockParse, "lock file has no nodes")
	}
	return &g, nil
}

// Names returns every node name except root, sorted
func (g *LockGraph) Names() []string {
	root := g.Root
	if root == "" {
		root = RootNode
	}
	names := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		if name == root || name == RootNode {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package updater

import (
	"github.com/arthur-debert/fleetup/pkg/deploy"
	"github.com/arthur-debert/fleetup/pkg/safety"
	"github.com/arthur-debert/fleetup/pkg/snapshot"
	"github.com/arthur-debert/fleetup/pkg/vcs"
	"github.com/oklog/ulid/v2"
)

// RunContext is the working state of one run
type RunContext struct {
	ID        string
	ExtraArgs []string

	// Backup is the run's undo point, nil when there was no lock file
	Backup      *snapshot.Handle
	BackedUp    bool
	Restores    int // one per failed mutation attempt
	LockSettled bool

	// Exclusions are the inputs held back by the selective retry
	Exclusions []string
	AllBuilt   bool
	LockDiff   string
	LockCommit vcs.CommitAction

	Candidate string
	Diff      string
	Safety    *safety.Report

	// Strategy names the update strategy that succeeded
	Strategy    string
	RemoteHosts []string
	Plan        deploy.Plan
	Deployed    bool
}

// NewRunID returns a sortable unique run identifier
func NewRunID() string {
	return ulid.Make().String()
}

func newRunContext(id string, extraArgs []string) *RunContext {
	if id == "" {
		id = NewRunID()
	}
	return &RunContext{ID: id, ExtraArgs: extraArgs}
}

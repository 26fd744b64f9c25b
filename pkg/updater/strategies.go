package updater

import "github.com/arthur-debert/fleetup/pkg/strategy"

// Strategy names
const (
	FullUpdate      = "full-update"
	SelectiveUpdate = "selective-update"
	RestoreAndExit  = "restore-and-exit"
	Deploy          = "deploy"
)

// UpdateChain returns full-update -> selective-update -> restore-and-exit
func UpdateChain() *strategy.Strategy {
	restoreAndExit := &strategy.Strategy{
		Name:           RestoreAndExit,
		Steps:          []string{StepRestore, StepAlert},
		SuccessMessage: "Lock file restored",
		FailureMessage: "Update failed, lock file restored",
		Exit:           true,
	}
	selective := &strategy.Strategy{
		Name:           SelectiveUpdate,
		Steps:          []string{StepUpdateSelected, StepUpdateExtraPackages, StepFlakeCheck, StepBuild},
		SuccessMessage: "Update succeeded with exclusions",
		FailureMessage: "Selective update failed",
		Fallback:       restoreAndExit,
	}
	return &strategy.Strategy{
		Name:           FullUpdate,
		Steps:          []string{StepBackup, StepUpdateAll, StepUpdateExtraPackages, StepFlakeCheck, StepBuild},
		SuccessMessage: "All inputs updated and built",
		FailureMessage: "Full update failed, retrying with exclusions",
		OnFailure:      []string{StepRestore},
		Fallback:       selective,
	}
}

// DeployStrategy runs after an update strategy succeeded
func DeployStrategy() *strategy.Strategy {
	return &strategy.Strategy{
		Name:           Deploy,
		Steps:          []string{StepCommitLock, StepCheckSafety, StepShowDiffAndPrompt, StepRemoteGC},
		SuccessMessage: "Done",
		FailureMessage: "Deployment failed",
	}
}

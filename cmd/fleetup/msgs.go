package fleetup

import (
	_ "embed"
	"strings"
)

// Short messages (one-liners)
const (
	// Command descriptions
	MsgRootShort       = "Update, build and deploy a flake-based NixOS fleet"
	MsgUpdateShort     = "Update flake inputs, build every host and offer to deploy"
	MsgInputsShort     = "List flake inputs and the selective update set"
	MsgSafetyShort     = "Check whether activating a built system disrupts this machine"
	MsgConfigShort     = "Inspect the fleetup configuration"
	MsgConfigShowShort = "Print the effective configuration"
	MsgConfigDefShort  = "Print the built-in default configuration"
	MsgVersionShort    = "Print version information"
	MsgCompletionShort = "Generate shell completion script"

	// Status messages
	MsgInputsHeader     = "Inputs in %s:"
	MsgInputItem        = "  %s"
	MsgInputExcluded    = "  %s (held back)"
	MsgSelectiveSummary = "A selective update would refresh %d of %d inputs."
	MsgSafetyClear      = "No disruptive changes detected"
	MsgSafetyTitle      = "Activating %s now may disrupt this machine"
	MsgSafetyReboot     = "A reboot is recommended after activation"
	MsgSafetyBoot       = "Prefer the boot goal for this build"
	MsgVersionFormat    = "fleetup %s (commit %s, built %s)\n"

	// Error messages
	MsgErrInitPaths  = "failed to initialize paths: %w"
	MsgErrLoadConfig = "failed to load configuration: %w"
	MsgErrUpdater    = "failed to set up the updater: %w"
	MsgErrInputs     = "failed to list inputs: %w"
	MsgErrFormat     = "unknown format %q (want toml or yaml)"
	MsgErrEncode     = "failed to encode configuration: %w"

	// Flag descriptions
	MsgFlagVerbose = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagFlake   = "Flake directory (defaults to $FLEETUP_FLAKE or the nearest flake.nix)"
	MsgFlagExclude = "Glob pattern of inputs to hold back (repeatable)"
	MsgFlagFormat  = "Output format: toml or yaml"

	// Warnings
	MsgFallbackWarning = "Warning: no flake.nix found above the working directory, using %s\n"
)

// Long messages from embedded files
var (
	//go:embed msgs/root-long.txt
	msgRootLongRaw string
	MsgRootLong    = strings.TrimSpace(msgRootLongRaw)

	//go:embed msgs/update-long.txt
	msgUpdateLongRaw string
	MsgUpdateLong    = strings.TrimSpace(msgUpdateLongRaw)

	//go:embed msgs/safety-long.txt
	msgSafetyLongRaw string
	MsgSafetyLong    = strings.TrimSpace(msgSafetyLongRaw)

	//go:embed msgs/completion-long.txt
	msgCompletionLongRaw string
	MsgCompletionLong    = strings.TrimSpace(msgCompletionLongRaw)
)

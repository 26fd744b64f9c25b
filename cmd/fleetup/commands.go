package fleetup

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/arthur-debert/fleetup/internal/version"
	"github.com/arthur-debert/fleetup/pkg/cobrax/topics"
	"github.com/arthur-debert/fleetup/pkg/config"
	"github.com/arthur-debert/fleetup/pkg/filesystem"
	"github.com/arthur-debert/fleetup/pkg/logging"
	"github.com/arthur-debert/fleetup/pkg/paths"
	"github.com/arthur-debert/fleetup/pkg/runner"
	"github.com/arthur-debert/fleetup/pkg/safety"
	"github.com/arthur-debert/fleetup/pkg/ui"
	"github.com/arthur-debert/fleetup/pkg/updater"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

//go:embed topics/*.md
var topicFiles embed.FS

// ExitError carries a process exit status. The outcome has already been
// reported when Silent is set.
type ExitError struct {
	Code   int
	Err    error
	Silent bool
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// App holds the collaborators the commands use. Nil fields get the real
// implementations; tests swap in fakes.
type App struct {
	FS       filesystem.FS
	Runner   runner.Runner
	Sessions safety.SessionInventory
	User     string
	TempDir  string
	// Color forces styling on or off; nil detects a terminal
	Color *bool
}

// NewRootCmd creates the root command with the real collaborators
func NewRootCmd() *cobra.Command {
	return NewRootCmdWith(&App{})
}

// NewRootCmdWith creates the root command around app
func NewRootCmdWith(app *App) *cobra.Command {
	var (
		verbosity int
		flakeDir  string
	)
	env := &cmdEnv{app: app}

	rootCmd := &cobra.Command{
		Use:     "fleetup [-- builder-args...]",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Version: version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			p, err := initPaths(cmd.ErrOrStderr(), flakeDir)
			if err != nil {
				return err
			}
			env.paths = p
			logging.SetupLogger(verbosity, p.LogFilePath())
			log.Debug().Str("command", cmd.Name()).Str("flake", p.FlakeRoot()).Msg("Command started")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.runUpdate(cmd, args)
		},
		Args:              cobra.ArbitraryArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", MsgFlagVerbose)
	rootCmd.PersistentFlags().StringVar(&flakeDir, "flake", "", MsgFlagFlake)

	rootCmd.AddGroup(&cobra.Group{ID: "core", Title: "COMMANDS:"})
	rootCmd.AddGroup(&cobra.Group{ID: "misc", Title: "MISC:"})

	rootCmd.AddCommand(newUpdateCmd(env))
	rootCmd.AddCommand(newInputsCmd(env))
	rootCmd.AddCommand(newSafetyCmd(env))
	rootCmd.AddCommand(newConfigCmd(env))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	sub, err := fs.Sub(topicFiles, "topics")
	if err == nil {
		manager, err := topics.Load(sub, topics.Options{Renderer: topics.NewGlamourRenderer()})
		if err == nil {
			manager.Install(rootCmd)
		}
	}

	return rootCmd
}

// initPaths resolves the flake root and warns when the fallback was used
func initPaths(stderr io.Writer, flakeDir string) (*paths.Paths, error) {
	p, err := paths.New(flakeDir)
	if err != nil {
		return nil, fmt.Errorf(MsgErrInitPaths, err)
	}
	if p.UsedFallback() {
		_, _ = fmt.Fprintf(stderr, MsgFallbackWarning, p.FlakeRoot())
	}
	return p, nil
}

// cmdEnv is the state shared by the subcommands of one invocation
type cmdEnv struct {
	app   *App
	paths *paths.Paths
}

func (e *cmdEnv) console(cmd *cobra.Command) *ui.Console {
	out := cmd.OutOrStdout()
	if e.app.Color != nil {
		return ui.NewWithColor(out, *e.app.Color)
	}
	return ui.New(out)
}

func (e *cmdEnv) config() (*config.Config, error) {
	cfg, err := config.Load(e.paths.FlakeRoot(), e.paths.ConfigDir())
	if err != nil {
		return nil, fmt.Errorf(MsgErrLoadConfig, err)
	}
	return cfg, nil
}

// runner returns the injected runner or an exec runner that announces every
// streamed command on the console
func (e *cmdEnv) runner(cmd *cobra.Command, console *ui.Console) runner.Runner {
	if e.app.Runner != nil {
		return e.app.Runner
	}
	r := runner.NewExecRunner()
	r.Stdout = cmd.OutOrStdout()
	r.Stderr = cmd.ErrOrStderr()
	r.OnStart = func(c runner.Command) {
		if !c.Quiet {
			console.Running(c.String())
		}
	}
	return r
}

func (e *cmdEnv) updater(cmd *cobra.Command, console *ui.Console) (*updater.Updater, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	u, err := updater.New(updater.Deps{
		Config:    cfg,
		FlakeRoot: e.paths.FlakeRoot(),
		FS:        e.app.FS,
		Runner:    e.runner(cmd, console),
		Console:   console,
		Input:     cmd.InOrStdin(),
		Sessions:  e.app.Sessions,
		User:      e.app.User,
		TempDir:   e.app.TempDir,
	})
	if err != nil {
		return nil, fmt.Errorf(MsgErrUpdater, err)
	}
	return u, nil
}

func newUpdateCmd(env *cmdEnv) *cobra.Command {
	return &cobra.Command{
		Use:     "update [-- builder-args...]",
		Short:   MsgUpdateShort,
		Long:    MsgUpdateLong,
		GroupID: "core",
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.runUpdate(cmd, args)
		},
	}
}

func (e *cmdEnv) runUpdate(cmd *cobra.Command, args []string) error {
	runID := updater.NewRunID()
	logging.WithRun(runID)

	console := e.console(cmd)
	u, err := e.updater(cmd, console)
	if err != nil {
		return err
	}

	outcome, err := u.Run(cmd.Context(), updater.RunOptions{ID: runID, BuildArgs: args})
	if err != nil {
		log.Error().Err(err).Str("run", runID).Msg("Update run aborted")
	}
	if code := outcome.ExitCode(); code != updater.ExitOK {
		return &ExitError{Code: code, Err: err, Silent: true}
	}
	return nil
}

func newInputsCmd(env *cmdEnv) *cobra.Command {
	var exclude []string

	cmd := &cobra.Command{
		Use:     "inputs",
		Short:   MsgInputsShort,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			console := env.console(cmd)
			u, err := env.updater(cmd, console)
			if err != nil {
				return err
			}
			all, excluded, selected, err := u.Inputs(exclude)
			if err != nil {
				return fmt.Errorf(MsgErrInputs, err)
			}

			held := make(map[string]bool, len(excluded))
			for _, name := range excluded {
				held[name] = true
			}
			console.Action(MsgInputsHeader, env.paths.LockFilePath())
			for _, name := range all {
				if held[name] {
					console.Warning(MsgInputExcluded, name)
				} else {
					console.Info(MsgInputItem, name)
				}
			}
			console.Info(MsgSelectiveSummary, len(selected), len(all))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&exclude, "exclude", nil, MsgFlagExclude)
	return cmd
}

func newSafetyCmd(env *cmdEnv) *cobra.Command {
	return &cobra.Command{
		Use:     "safety <candidate>",
		Short:   MsgSafetyShort,
		Long:    MsgSafetyLong,
		GroupID: "core",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			console := env.console(cmd)
			u, err := env.updater(cmd, console)
			if err != nil {
				return err
			}

			report := u.Assess(cmd.Context(), args[0])
			if report.Safe() {
				console.Success(MsgSafetyClear)
				return nil
			}
			lines := append([]string(nil), report.Warnings...)
			if report.RequiresReboot {
				lines = append(lines, MsgSafetyReboot)
			}
			if report.UnsafeImmediate {
				lines = append(lines, MsgSafetyBoot)
			}
			console.Box(fmt.Sprintf(MsgSafetyTitle, args[0]), lines)
			return nil
		},
	}
}

func newConfigCmd(env *cmdEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   MsgConfigShort,
		GroupID: "misc",
	}

	var format string
	show := &cobra.Command{
		Use:   "show",
		Short: MsgConfigShowShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := config.NewKoanf(env.paths.FlakeRoot(), env.paths.ConfigDir())
			if err != nil {
				return fmt.Errorf(MsgErrLoadConfig, err)
			}
			out, err := encodeConfig(k.Raw(), format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	show.Flags().StringVar(&format, "format", "toml", MsgFlagFormat)
	_ = show.RegisterFlagCompletionFunc("format", cobra.FixedCompletions([]string{"toml", "yaml"}, cobra.ShellCompDirectiveNoFileComp))

	defaults := &cobra.Command{
		Use:   "defaults",
		Short: MsgConfigDefShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), config.DefaultContent())
			return err
		},
	}

	cmd.AddCommand(show, defaults)
	return cmd
}

func encodeConfig(raw map[string]interface{}, format string) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch strings.ToLower(format) {
	case "toml":
		out, err = toml.Marshal(raw)
	case "yaml", "yml":
		out, err = yaml.Marshal(raw)
	default:
		return nil, fmt.Errorf(MsgErrFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf(MsgErrEncode, err)
	}
	return out, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   MsgVersionShort,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		// No paths or logging needed
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), MsgVersionFormat, version.Version, version.Commit, version.Date)
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 MsgCompletionShort,
		Long:                  MsgCompletionLong,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		GroupID:               "misc",
		PersistentPreRun:      func(cmd *cobra.Command, args []string) {},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
}

// ExitCode maps an Execute error to the process exit status
func ExitCode(err error) int {
	if err == nil {
		return updater.ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return updater.ExitFailure
}

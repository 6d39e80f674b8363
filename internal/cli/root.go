package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cargox-labs/cargox/internal/branding"
	"github.com/cargox-labs/cargox/internal/config"
	"github.com/cargox-labs/cargox/internal/executor"
	"github.com/cargox-labs/cargox/internal/installer"
	"github.com/cargox-labs/cargox/internal/paths"
	"github.com/cargox-labs/cargox/internal/pipeline"
	"github.com/cargox-labs/cargox/internal/registry"
)

// buildInfo is injected via ldflags into main.
type buildInfo struct {
	version string
	commit  string
	date    string
}

// rootFlags holds the parsed command-line flags.
type rootFlags struct {
	bin             string
	force           bool
	quiet           bool
	buildFromSource bool
	verbose         bool
	configFile      string
}

// invocation is everything needed to run one crate.
type invocation struct {
	request  pipeline.Request
	settings config.Settings
	verbose  bool
	build    buildInfo
	stderr   io.Writer
}

// runFunc executes an invocation. Tests substitute it to observe parsing.
type runFunc func(ctx context.Context, inv invocation) (executor.Status, error)

func newRootCmd(info buildInfo, run runFunc) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   branding.CLIName() + " [flags] <crate[@version]> [args...]",
		Short: branding.Description(),
		Long: branding.DisplayName() + ` runs a binary from a crate, installing the requested version on demand.

The crate spec is "name", "name@latest" or "name@<semver range>". A bare
version such as "name@1.2.3" pins exactly that version. Everything after the
crate spec is passed to the binary unchanged.

Binaries are installed with cargo-binstall when it is available and with
cargo install otherwise, into a private directory that can be moved with
` + paths.OverrideEnvVar() + `.`,
		Example: `  ` + branding.CLIName() + ` bat README.md
  ` + branding.CLIName() + ` --bin rg ripgrep@14 -n TODO
  ` + branding.CLIName() + ` -s cargo-nextest@latest --help`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", info.version, info.commit, info.date),
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd.Flags(), flags.configFile)
			if err != nil {
				return err
			}

			inv := invocation{
				request: pipeline.Request{
					Spec: args[0],
					Args: args[1:],
					Options: installer.Options{
						Force:           flags.force,
						Quiet:           settings.Quiet,
						BuildFromSource: settings.BuildFromSource,
						Bin:             flags.bin,
					},
				},
				settings: settings,
				verbose:  flags.verbose,
				build:    info,
				stderr:   cmd.ErrOrStderr(),
			}

			status, err := run(cmd.Context(), inv)
			if err != nil {
				return err
			}
			if status.Signaled {
				fmt.Fprintln(cmd.ErrOrStderr(), "process terminated by signal")
				return &ExitError{Code: 1}
			}
			if status.Code != 0 {
				return &ExitError{Code: status.Code}
			}
			return nil
		},
	}

	cmd.SetVersionTemplate("{{.Name}} version {{.Version}}\n")

	f := cmd.Flags()
	f.SetInterspersed(false)
	f.StringVarP(&flags.bin, "bin", "b", "", "Binary to run when the crate provides several")
	f.BoolVarP(&flags.force, "force", "f", false, "Reinstall even if the version is already installed")
	f.BoolVarP(&flags.quiet, "quiet", "q", false, "Pass --quiet to the installer")
	f.BoolVarP(&flags.buildFromSource, "build-from-source", "s", false, "Build with cargo install instead of cargo-binstall")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	f.StringVar(&flags.configFile, "config", "", "Config file (default is <user config dir>/"+branding.CLIName()+"/config.yaml)")

	return cmd
}

// loadSettings reads the config file with the quiet and build-from-source
// flags taking precedence.
func loadSettings(flags *pflag.FlagSet, path string) (config.Settings, error) {
	loader := config.NewLoader()
	if err := loader.BindFlags(map[string]*pflag.Flag{
		config.KeyQuiet:           flags.Lookup("quiet"),
		config.KeyBuildFromSource: flags.Lookup("build-from-source"),
	}); err != nil {
		return config.Settings{}, err
	}
	return loader.Load(path)
}

// newLogger builds the stderr logger for an invocation.
func newLogger(w io.Writer, level string, verbose bool) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	if verbose {
		lvl = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: branding.CLIName(),
		Level:  lvl,
	}), nil
}

// runPipeline wires the real components and runs the invocation.
func runPipeline(ctx context.Context, inv invocation) (executor.Status, error) {
	logger, err := newLogger(inv.stderr, inv.settings.LogLevel, inv.verbose)
	if err != nil {
		return executor.Status{}, err
	}

	resolver := paths.NewResolver()
	client := registry.New(
		registry.WithBaseURL(inv.settings.RegistryURL),
		registry.WithUserAgent(branding.UserAgent(inv.build.version)),
	)
	logger.Debug("using registry", "url", client.BaseURL())
	orch := installer.New(resolver,
		installer.WithLogger(logger),
		installer.WithCargoTool(inv.settings.CargoTool),
		installer.WithBinstallTool(inv.settings.BinstallTool),
	)

	p := pipeline.New(client, resolver, orch, &executor.Executor{}, pipeline.WithLogger(logger))
	return p.Run(ctx, inv.request)
}

// Execute runs the root command with build info injected via ldflags.
// Errors are printed with their cause chain; use ExitCode for the status.
func Execute(version, commit, date string) error {
	cmd := newRootCmd(buildInfo{version: version, commit: commit, date: date}, runPipeline)
	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Err != nil {
		PrintError(os.Stderr, err)
	}
	return err
}

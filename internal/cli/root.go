package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/cruciblehq/tessera/internal"
	"github.com/cruciblehq/tessera/internal/config"
)

// Represents the root command for tessera.
var RootCmd struct {
	Quiet     bool         `short:"q" help:"Suppress informational output."`
	Verbose   bool         `short:"v" help:"Enable verbose output."`
	Debug     bool         `short:"d" help:"Enable debug output."`
	Config    string       `short:"c" help:"Project configuration file. Defaults to ./tessera.yaml, then the user configuration." placeholder:"PATH" type:"path"`
	Toolchain ToolchainCmd `cmd:"" help:"Resolve and verify the pinned toolchain."`
	Env       EnvCmd       `cmd:"" help:"Print the build environment of one output."`
	Matrix    MatrixCmd    `cmd:"" help:"List the variants of the build matrix."`
	Build     BuildCmd     `cmd:"" help:"Build the matrix."`
	Package   PackageCmd   `cmd:"" help:"Package a built binary into an OCI image archive."`
	Test      TestCmd      `cmd:"" help:"Run the Complement suite against image archives."`
	Publish   PublishCmd   `cmd:"" help:"Push an image archive to a registry."`
	Features  FeaturesCmd  `cmd:"" help:"List the cargo features declared by the workspace."`
	Version   VersionCmd   `cmd:"" help:"Show version information."`
}

// Parses arguments, configures logging, and runs the selected subcommand.
func Execute() error {

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kongCtx := kong.Parse(&RootCmd,
		kong.Name(internal.Name),
		kong.Description("Build-matrix orchestrator for the Conduit homeserver.\n\nResolves the pinned toolchain, builds every allocator, profile and target variant, packages images and runs the Complement suite against them."),
		kong.UsageOnError(),
		kong.Vars{
			"version": internal.VersionString(),
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	configureLogger()

	return kongCtx.Run()
}

// Configures the global logger based on CLI flags.
func configureLogger() {
	if RootCmd.Debug {
		internal.SetDebug(true)
	}
	if RootCmd.Quiet {
		internal.SetQuiet(true)
	}
	if RootCmd.Verbose {
		internal.SetVerbose(true)
	}
	slog.SetDefault(internal.NewLogger(os.Stderr))
}

// Loads the project configuration named by --config.
func loadConfig() (*config.Config, error) {
	return config.Load(RootCmd.Config)
}

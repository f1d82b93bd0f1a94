package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/objgate/internal/app"
	"github.com/roach88/objgate/internal/config"
	"github.com/roach88/objgate/internal/ir"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string
	User    string
	Token   string

	// appOptions are passed to app.Build. Tests use them to pin ids and
	// clocks.
	appOptions []app.Option
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the objgate CLI.
func NewRootCommand(appOpts ...app.Option) *cobra.Command {
	opts := &RootOptions{appOptions: appOpts}

	cmd := &cobra.Command{
		Use:   "objgate",
		Short: "objgate - rule-guarded object store",
		Long: `A rule-guarded object store that fans writes out to several storage
drivers, routes reads to authoritative ones and keeps an audit log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "config file (YAML); defaults to in-memory drivers")
	cmd.PersistentFlags().StringVar(&opts.User, "user", "", "caller user name")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", "", "caller bearer token (HS256 JWT)")

	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewModelsCommand(opts))

	return cmd
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// open loads the configuration and builds the application. Diagnostics go
// to stderr; debug level under --verbose.
func (o *RootOptions) open(cmd *cobra.Command) (*app.App, ir.Meta, error) {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	cfg := config.Default()
	if o.Config != "" {
		loaded, err := config.Load(o.Config)
		if err != nil {
			return nil, ir.Meta{}, WrapExitError(ExitCommandError, "loading config", err)
		}
		cfg = loaded
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	opts := append([]app.Option{app.WithLogger(logger)}, o.appOptions...)
	a, err := app.Build(ctx, cfg, opts...)
	if err != nil {
		return nil, ir.Meta{}, WrapExitError(ExitCommandError, "starting objgate", err)
	}

	meta, err := a.Meta(o.User, o.Token)
	if err != nil {
		a.Close()
		return nil, ir.Meta{}, err
	}
	return a, meta, nil
}

// Package cli defines the scrapp command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"scrapp.io/client/internal/apperr"
	"scrapp.io/client/internal/config"
	"scrapp.io/client/internal/core"
	"scrapp.io/client/internal/logging"
)

// errReported marks a failure the command already showed to the user.
var errReported = errors.New("failure already reported")

var version = "dev" // set via ldflags at build time

type rootOptions struct {
	configPath string
	verbose    bool

	app *App
}

func (o *rootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if o.verbose {
		level = "DEBUG"
	}
	logger, err := logging.New(level)
	if err != nil {
		return err
	}

	app, err := NewApp(cmd.Context(), cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return err
	}
	o.app = app
	return nil
}

func (o *rootOptions) close() {
	if o.app == nil {
		return
	}
	o.app.Close()
	_ = o.app.Logger.Sync()
	o.app = nil
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scrapp",
		Short: "Scrapp recycling assistant client",
		Long: `scrapp talks to the Scrapp backend: classify a photo of an item,
ask follow-up questions about disposing of it, and browse or write
community posts.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file (default $SCRAPP_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Log at debug level")

	rootCmd.AddCommand(newLoginCmd(opts))
	rootCmd.AddCommand(newRegisterCmd(opts))
	rootCmd.AddCommand(newLogoutCmd(opts))
	rootCmd.AddCommand(newWhoamiCmd(opts))
	rootCmd.AddCommand(newCategoriesCmd())
	rootCmd.AddCommand(newPostsCmd(opts))
	rootCmd.AddCommand(newPostCmd(opts))
	rootCmd.AddCommand(newClassifyCmd(opts))
	rootCmd.AddCommand(newChatCmd(opts))
	return rootCmd
}

// Run executes the command line in args and returns the process exit code.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts := &rootOptions{}
	defer opts.close()

	rootCmd := newRootCmd(opts)
	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if opts.app != nil {
		opts.app.Logger.Debug("Command failed", zap.Error(err))
	}
	if !errors.Is(err, errReported) {
		fmt.Fprintln(stderr, "Error:", apperr.UserMessage(err))
	}
	if core.IsUnauthorized(err) || errors.Is(err, core.ErrLoginRequired) {
		fmt.Fprintln(stderr, "Your session is missing or has expired. Run `scrapp login` and try again.")
	}
	return 1
}

// Execute runs the root command. Called from main.
func Execute() {
	os.Exit(Run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

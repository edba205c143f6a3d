package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"timecapsule/internal/logging"
)

const (
	Version = "1.0.0"

	// Environment variable for passphrase
	PassphraseEnvVar = "TIMECAPSULE_PASSPHRASE"
)

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	verbose bool
	debug   bool
	envFile string

	log     logging.Logger
	openTTY func() (io.ReadCloser, error)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints a command failure. It is always shown, whatever the
// verbosity flags.
func reportError(w io.Writer, err error) {
	logging.Logger{Out: w}.Errorf("%v", err)
}

func newRootCmd() *cobra.Command {
	return newRootCommand(&rootOptions{openTTY: openControllingTTY})
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "timecapsule",
		Short: "Encrypt data once, unlock it with any one of several keys or passwords",
		Long: `timecapsule encrypts a payload under a random master key and wraps that
master key separately for every credential you give it: raw 256-bit key files,
passwords, or both. Any single credential unlocks the payload on its own.

Capsules are JSON documents. Their labels are stored in the clear.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.log = logging.Logger{
				Verbose: opts.verbose,
				Debug:   opts.debug,
				Out:     cmd.ErrOrStderr(),
			}
			opts.log.Debugf("Running %s with verbose=%t, debug=%t", cmd.CommandPath(), opts.verbose, opts.debug)

			if opts.envFile != "" {
				if err := godotenv.Load(opts.envFile); err != nil {
					return fmt.Errorf("failed to load env file: %w", err)
				}
				opts.log.Debugf("Loaded environment from %s", opts.envFile)
			}
			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "enable debug output")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "load environment variables (e.g. "+PassphraseEnvVar+") from a .env file")

	root.AddCommand(newLockCmd(opts))
	root.AddCommand(newUnlockCmd(opts))
	root.AddCommand(newInspectCmd(opts))
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "timecapsule version %s\n", Version)
		},
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/kmchat/kmchat/internal/common/apperrors"
	"github.com/kmchat/kmchat/internal/common/logtrace"
	"github.com/kmchat/kmchat/internal/config"
	"github.com/spf13/cobra"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// Global flags
	jsonOutput bool
	configFile string
)

// Version is the CLI version, overridden at build time with -ldflags.
var Version = "v0.1.0"

var okLabel = color.New(color.FgGreen)
var errorLabel = color.New(color.FgRed)

// ErrNoConfig tells the user to create a config file first.
var ErrNoConfig = apperrors.New(`kmchat config file not found. Configure kmchat with "kmchat config init" first.`).
	SetExitCode(apperrors.ExitValidation)

// handledError marks an error whose notice was already printed.
type handledError struct {
	err error
}

func (h handledError) Error() string { return h.err.Error() }
func (h handledError) Unwrap() error { return h.err }

func handled(err error) error {
	if err == nil {
		return nil
	}
	return handledError{err: err}
}

// loaded holds the configuration read by the persistent pre-run.
var loaded *config.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kmchat [command] [flags]",
	Short: "kmchat - a command line client for a hosted chat backend",
	Long: `kmchat logs in to a chat backend, creates and opens conversations, and sends
messages into them. The session is kept between runs until you log out.

Examples:
  # Write a config file
  kmchat config init --app-id 2c3b81318c62 --backend https://chat.example.com

  # Log in and send a message
  kmchat login --user u1 --password p1
  kmchat send "hi"

  # Open a conversation by its channel key
  kmchat conversation open CH42`,
	PersistentPreRunE: preRunHandlePersistents,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "", "", "Path to configuration file to override default")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newVisitorCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newConversationCmd())
	rootCmd.AddCommand(newSendCmd())
}

// Execute runs the root command and exits with the code carried by the error.
// This is called by main.main().
func Execute() {
	rootCmd.SilenceErrors = true // Prevent Cobra from printing the error
	rootCmd.SilenceUsage = true  // Prevent Cobra from printing usage on error

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(reportError(os.Stdout, os.Stderr, err))
	}
}

// reportError prints err unless it was already shown and returns the exit code.
func reportError(stdout, stderr io.Writer, err error) int {
	code := apperrors.ExitCodeOf(err)
	var h handledError
	if errors.As(err, &h) && !jsonOutput {
		return code
	}
	if jsonOutput {
		printJSON(stdout, map[string]any{
			"error":     err.Error(),
			"exit_code": code,
		})
	} else {
		errorLabel.Fprintf(stderr, "Error: %v\n", err)
	}
	return code
}

// preRunHandlePersistents loads the configuration and the logger for commands that
// talk to the backend.
func preRunHandlePersistents(cmd *cobra.Command, args []string) error {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" || c.Name() == "version" {
			logtrace.InitLogger(logtrace.Options{Level: "warn", Out: os.Stderr})
			return nil
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNoConfig
		}
		return apperrors.New(err.Error()).SetExitCode(apperrors.ExitValidation)
	}
	logtrace.InitLogger(logtrace.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Out: os.Stderr})
	loaded = cfg
	return nil
}

// newVersionCmd creates and returns a new version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kmchat",
		Run: func(cmd *cobra.Command, args []string) {
			configPath := configFile
			if configPath == "" {
				var err error
				if configPath, err = config.DefaultPath(); err != nil {
					configPath = "unknown"
				}
			}

			if jsonOutput {
				printJSON(cmd.OutOrStdout(), map[string]string{
					"version":        Version,
					"config_file":    configPath,
					"config_version": config.FormatVersion,
				})
			} else {
				cmd.Printf("kmchat %s\n", Version)
				cmd.Printf("Config file: %s\n", configPath)
			}
		},
	}
}

// printJSON prints data as indented JSON
func printJSON(w io.Writer, data any) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(jsonData))
}

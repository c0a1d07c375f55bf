package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/kmchat/kmchat/internal/common/apperrors"
	"github.com/kmchat/kmchat/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or show the kmchat configuration",
	}
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

// resolveConfigPath returns the --config path or the default location.
func resolveConfigPath() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	return config.DefaultPath()
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a new configuration file",
		Long: `Write a new configuration file with the application id and backend URL.
Optional values are filled with defaults and can be edited in the file afterwards.

Example:
  kmchat config init --app-id 2c3b81318c62 --backend https://chat.example.com`,
		RunE: runConfigInit,
	}
	cmd.Flags().String("app-id", "", "Application id issued by the chat backend")
	cmd.Flags().String("backend", "", "Backend URL, e.g. https://chat.example.com")
	cmd.Flags().String("log-level", "info", "Log level (trace, debug, info, warn, error, disabled)")
	cmd.Flags().String("state-dir", "", "Directory for the session state file")
	cmd.Flags().Bool("insecure", false, "Skip TLS certificate verification")
	cmd.Flags().Bool("force", false, "Overwrite an existing configuration file")
	return cmd
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return apperrors.New(fmt.Sprintf("config file %s already exists, use --force to overwrite", path)).
			SetExitCode(apperrors.ExitValidation)
	}

	cfg := config.Default()
	cfg.AppID, _ = cmd.Flags().GetString("app-id")
	backend, _ := cmd.Flags().GetString("backend")
	cfg.Backend.URL = config.MorphServer(backend)
	cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	cfg.State.Dir, _ = cmd.Flags().GetString("state-dir")
	cfg.Backend.InsecureSkipVerify, _ = cmd.Flags().GetBool("insecure")

	if err := cfg.Validate(); err != nil {
		return apperrors.New(err.Error()).SetExitCode(apperrors.ExitValidation)
	}
	if err := cfg.Write(path); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(cmd.OutOrStdout(), map[string]string{
			"status":      "success",
			"config_file": path,
		})
	} else {
		okLabel.Fprintf(cmd.OutOrStdout(), "✓ Configuration written to %s\n", path)
	}
	return nil
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveConfigPath()
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return ErrNoConfig
				}
				return apperrors.New(err.Error()).SetExitCode(apperrors.ExitValidation)
			}

			if jsonOutput {
				printJSON(cmd.OutOrStdout(), cfg)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", path)
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
		},
	}
}

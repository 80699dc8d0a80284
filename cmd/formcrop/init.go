package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/formcrop/formcrop/internal/config"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to a file",
		Long: `Init writes the built-in layout (A4 canvas, PH/PS/SS zones, size limits,
quality search, detection and watch settings) as YAML so it can be tuned.

Examples:
  # Create formcrop.yaml in the current directory
  formcrop init

  # Write to the user configuration directory
  formcrop init --user

  # Overwrite an existing file
  formcrop init -f -o layouts/form-b.yaml`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile, "Output file path for the configuration")
	cmd.Flags().Bool("user", false, "Write to $XDG_CONFIG_HOME/formcrop/config.yaml")
	cmd.Flags().BoolP("force", "f", false, "Overwrite an existing configuration file")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	user, err := cmd.Flags().GetBool("user")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	if user {
		outputPath = config.UserConfigFile()
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	if err := config.Write(outputPath, config.Default()); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created configuration file: %s\n", outputPath)
	return nil
}

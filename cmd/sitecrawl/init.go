package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/config"
)

//go:embed templates/sitecrawl.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a .sitecrawl profile file",
		Long: `Init writes a commented .sitecrawl profile to the current directory.

The profile holds default crawl settings and per-domain sections with the
container spec, sink, title handling, headers and cookies of each site.

Examples:
  # Create .sitecrawl in the current directory
  sitecrawl init

  # Create the profile at a specific path
  sitecrawl init -o ~/.sitecrawl

  # Create the profile in the XDG config directory
  sitecrawl init --xdg

  # Overwrite an existing file
  sitecrawl init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the profile")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite an existing profile")
	cmd.Flags().Bool("xdg", false,
		"Write the profile to "+config.XDGConfigFile())
	cmd.MarkFlagsMutuallyExclusive("output", "xdg")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	if useXDG, _ := cmd.Flags().GetBool("xdg"); useXDG {
		outputPath = config.XDGConfigFile()
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("profile already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/sitecrawl.yaml")
	if err != nil {
		return fmt.Errorf("failed to read profile template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created profile: %s\n", outputPath)
	fmt.Fprintln(out, "\nAdd a section per domain under \"sites\" with:")
	fmt.Fprintln(out, "  - the container and target elements to store")
	fmt.Fprintln(out, "  - the sink (text or image)")
	fmt.Fprintln(out, "  - title cleanup, headers and cookies")

	return nil
}

package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file",
	Long:  `Write rocoto_config.yaml with the default settings to the current directory.`,
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing configuration")
}

func runInit(cmd *cobra.Command, _ []string) error {
	path := config.DefaultConfigFile
	if cfgFile != "" {
		path = cfgFile
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("configuration already exists at %s, use --force to overwrite", path)
	}

	if err := config.WriteFile(path, []byte(config.DefaultConfigYAML)); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Created %s\n", color.New(color.FgGreen).Sprint("✓"), path)
	fmt.Fprintln(out, "Add your workflows under 'workflows:' and run 'rocotoviewer'.")
	return nil
}

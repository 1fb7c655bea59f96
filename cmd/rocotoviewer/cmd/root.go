package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	verbose   int

	// Version info - set via SetVersion()
	appVersion string
	appCommit  string
	appDate    string
)

var rootCmd = &cobra.Command{
	Use:   "rocotoviewer",
	Short: "Terminal viewer for Rocoto workflows and their logs",
	Long: `rocotoviewer parses Rocoto workflow definitions and workflow logs and
keeps a live view of task states as the files change on disk.

Running 'rocotoviewer' without arguments opens the viewer on the workflows
listed in the configuration file.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runView,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion injects build information.
func SetVersion(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// GetVersion returns the application version string.
func GetVersion() string {
	return appVersion
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./rocoto_config.yaml or ~/.rocotoviewer/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (DEBUG, INFO, WARNING, ERROR, CRITICAL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"log format (auto, text, json)")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "V",
		"increase verbosity (-V for debug logging)")

	bindFlags()
	addViewFlags(rootCmd)
}

// bindFlags binds persistent flags to viper (errors are nil when flag exists).
func bindFlags() {
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

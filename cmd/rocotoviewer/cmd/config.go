package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/config"
)

var (
	configList     bool
	configGet      string
	configSet      []string
	configValidate bool
	configReset    bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or change the configuration",
	Long: `Inspect or change the configuration file.

  rocotoviewer config --list                       print the effective configuration
  rocotoviewer config --get display.theme          print one value
  rocotoviewer config --set display.theme dark     change one value and save
  rocotoviewer config --validate                   check the configuration
  rocotoviewer config --reset                      restore the default file`,
	Args: cobra.ArbitraryArgs,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().BoolVar(&configList, "list", false, "print the effective configuration")
	configCmd.Flags().StringVar(&configGet, "get", "", "print the value of KEY")
	configCmd.Flags().StringSliceVar(&configSet, "set", nil, "set KEY to VALUE (--set KEY VALUE)")
	configCmd.Flags().BoolVar(&configValidate, "validate", false, "validate the configuration")
	configCmd.Flags().BoolVar(&configReset, "reset", false, "overwrite the config file with defaults")
	configCmd.MarkFlagsMutuallyExclusive("list", "get", "set", "validate", "reset")
}

func runConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if configReset {
		path := configPath("")
		if err := config.WriteFile(path, []byte(config.DefaultConfigYAML)); err != nil {
			return err
		}
		fmt.Fprintf(out, "Configuration reset: %s\n", path)
		return nil
	}

	loader := newLoader()
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	switch {
	case configGet != "":
		value := loader.Get(configGet)
		if value == nil {
			return fmt.Errorf("%w: %s", config.ErrUnknownKey, configGet)
		}
		return printYAML(out, value)

	case len(configSet) > 0:
		kv := append(append([]string(nil), configSet...), args...)
		if len(kv) != 2 {
			return errors.New("--set requires KEY and VALUE")
		}
		if err := loader.SetValue(kv[0], kv[1]); err != nil {
			return err
		}
		cfg, err = loader.Config()
		if err != nil {
			return err
		}
		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("refusing to save invalid configuration: %w", err)
		}
		path := configPath(loader.ConfigFile())
		if err := config.Save(path, cfg); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s = %s (saved to %s)\n", kv[0], kv[1], path)
		return nil

	case configValidate:
		if err := config.Validate(cfg); err != nil {
			for _, ve := range config.ValidationErrors(err) {
				fmt.Fprintf(out, "  %s\n", ve.Error())
			}
			return errors.New("configuration is invalid")
		}
		fmt.Fprintln(out, "Configuration is valid.")
		return nil

	default:
		if file := loader.ConfigFile(); file != "" {
			fmt.Fprintf(out, "# %s\n", file)
		}
		return printYAML(out, cfg)
	}
}

// configPath returns the file config changes are written to.
func configPath(used string) string {
	switch {
	case cfgFile != "":
		return cfgFile
	case used != "":
		return used
	case os.Getenv("ROCOTOVIEWER_CONFIG") != "":
		return os.Getenv("ROCOTOVIEWER_CONFIG")
	default:
		return config.DefaultConfigFile
	}
}

func printYAML(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

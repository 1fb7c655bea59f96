package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

const testWorkflow = `<?xml version="1.0"?>
<!DOCTYPE workflow [
  <!ENTITY ROOT "/home/user/run">
]>
<workflow workflowid="demo" name="Demo">
  <cycledef group="hourly">202401010000 202401020000 01:00:00</cycledef>
  <task name="prep"><command>&ROOT;/prep.sh</command></task>
  <task name="fcst">
    <command>&ROOT;/fcst.sh</command>
    <dependency><taskdep task="prep"/></dependency>
  </task>
</workflow>
`

const testLog = `2024-01-01 00:05:00 :: Task prep, jobid=101, in state SUCCEEDED (exit status 0)
2024-01-01 00:06:00 :: Task fcst, jobid=102, in state RUNNING
2024-01-01 00:07:00 ERROR something went wrong in fcst
`

// resetCommandState restores every flag, viper and package global so each
// test starts from a clean command tree.
func resetCommandState(t *testing.T) {
	t.Helper()

	resetFlags := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
	}
	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		resetFlags(c.Flags())
		resetFlags(c.PersistentFlags())
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	walk(rootCmd)

	viper.Reset()
	bindFlags()
}

// isolate runs the test in an empty directory with no user config.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("ROCOTOVIEWER_CONFIG", "")
	resetCommandState(t)
	return dir
}

// execute runs the root command with args and returns captured stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Each invocation starts from default flags, as a fresh process would.
	resetCommandState(t)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		resetCommandState(t)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"compose-manager/src/version"
)

// NewRootCmd returns the root cobra command for the compose-manager CLI.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "compose-manager",
		Short:   "Scheduled backup and update management for docker-compose workloads across a fleet",
		Version: version.Version,

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newBackupCmd())
	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newCleanupCmd())
	cmd.AddCommand(newStatusCmd(stdout))
	cmd.AddCommand(newListCmd(stdout))
	cmd.AddCommand(newTestSSHCmd(stdout))
	cmd.AddCommand(newTestNotifyCmd())
	cmd.AddCommand(newVersionCmd(stdout))

	return cmd
}

// Execute runs the CLI with the process stdio and returns the exit code.
func Execute() int {
	root := NewRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

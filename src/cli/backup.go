package cli

import (
	"github.com/spf13/cobra"

	"compose-manager/src/fleet"
)

func newBackupCmd() *cobra.Command {
	var host string

	cmd := &cobra.Command{
		Use:   "backup [all|workload]",
		Short: "Back up workloads now, regardless of schedule",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			workload := ""
			if len(args) == 1 && args[0] != "all" {
				workload = args[0]
			}

			a.coordinator().Run(fleet.Options{
				Mode:     fleet.ModeBackup,
				Host:     host,
				Workload: workload,
				Force:    true,
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Target a specific host")
	return cmd
}

package cli

import (
	"github.com/spf13/cobra"

	"compose-manager/src/fleet"
)

func newUpdateCmd() *cobra.Command {
	var host string

	cmd := &cobra.Command{
		Use:   "update [all|workload]",
		Short: "Pull and apply image updates",
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
				Mode:     fleet.ModeUpdate,
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

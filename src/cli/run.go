package cli

import (
	"github.com/spf13/cobra"

	"compose-manager/src/fleet"
)

func newRunCmd() *cobra.Command {
	var force bool
	var host string

	cmd := &cobra.Command{
		Use:   "run [workload]",
		Short: "Run scheduled backup and update operations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			workload := ""
			if len(args) == 1 {
				workload = args[0]
			}

			a.coordinator().Run(fleet.Options{
				Mode:     fleet.ModeAll,
				Host:     host,
				Workload: workload,
				Force:    force,
			})
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Force run regardless of schedule")
	cmd.Flags().StringVar(&host, "host", "", "Target a specific host")
	return cmd
}

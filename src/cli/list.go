package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"compose-manager/src/compose"
)

func newListCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all discovered workloads per host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			fmt.Fprintln(stdout, "Discovered workloads:")
			for _, name := range a.cfg.SortedHostNames() {
				host := a.cfg.Global.Hosts[name]
				fmt.Fprintf(stdout, "\n%s:\n", name)

				runner, err := a.dialer.Dial(host)
				if err != nil {
					a.logger.WithError(err).WithField("host", name).Error("Host unreachable")
					continue
				}

				workloads, err := compose.Discover(runner, name, host.WorkloadRoot)
				runner.Close()
				if err != nil {
					a.logger.WithError(err).WithField("host", name).Error("Workload discovery failed")
					continue
				}
				for _, w := range workloads {
					fmt.Fprintf(stdout, "  - %s (%s)\n", w.Name, w.Path)
				}
			}
			return nil
		},
	}
}

package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatusCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backup status per (host, workload) group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			groups, err := a.retention().Groups()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "HOST\tWORKLOAD\tBACKUPS\tNEWEST\tTOTAL SIZE")
			for _, g := range groups {
				newest := "-"
				if len(g.Artifacts) > 0 {
					newest = g.Artifacts[0].Timestamp.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					g.Host, g.Workload, len(g.Artifacts), newest, humanize.IBytes(uint64(g.TotalBytes)))
			}
			return tw.Flush()
		},
	}
}

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"compose-manager/src/config"
)

func newTestSSHCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "test-ssh",
		Short: "Test SSH connectivity to all hosts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			failed := 0
			for _, name := range a.cfg.SortedHostNames() {
				host := a.cfg.Global.Hosts[name]
				if err := checkHost(a, host); err != nil {
					fmt.Fprintf(stdout, "FAIL %s (%s): %v\n", name, host.Address, err)
					failed++
					continue
				}
				fmt.Fprintf(stdout, "OK   %s (%s)\n", name, host.Address)
			}

			if failed > 0 {
				return errors.Errorf("%d host(s) unreachable", failed)
			}
			return nil
		},
	}
}

func checkHost(a *app, host config.Host) error {
	runner, err := a.dialer.Dial(host)
	if err != nil {
		return err
	}
	defer runner.Close()

	res, err := runner.Run(`echo "SSH OK"`)
	if err != nil {
		return err
	}
	if strings.TrimSpace(res.Stdout) != "SSH OK" {
		return errors.Errorf("unexpected response %q", strings.TrimSpace(res.Stdout))
	}
	return nil
}

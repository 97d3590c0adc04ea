package cli

import (
	"github.com/spf13/cobra"
)

func newTestNotifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if !a.notifier.Enabled() {
				a.logger.Warn("Notifications are disabled in the configuration")
				return nil
			}
			a.notifier.Send(
				"Compose Manager Test",
				"If you received this, notifications are working!",
				"low",
				"test_tube,white_check_mark",
			)
			return nil
		},
	}
}

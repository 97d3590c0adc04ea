package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"compose-manager/src/backup"
	"compose-manager/src/config"
	"compose-manager/src/fleet"
	"compose-manager/src/notify"
	"compose-manager/src/remote"
	"compose-manager/src/retention"
	"compose-manager/src/schedule"
	"compose-manager/src/update"
)

// app holds everything a command needs once the configuration is loaded.
// Construction fails only on configuration errors, before any host contact.
type app struct {
	cfg      *config.Config
	logger   *logrus.Logger
	dialer   remote.Dialer
	notifier *notify.Dispatcher
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logger := config.NewLogger(cfg)

	return &app{
		cfg:      cfg,
		logger:   logger,
		dialer:   remote.NewSSHDialer(cfg.Global.SSH),
		notifier: notify.NewDispatcher(cfg.Global.Notifications, logger),
	}, nil
}

func (a *app) coordinator() *fleet.Coordinator {
	evaluator := schedule.NewEvaluator(a.cfg.Global.Backup.Root, a.logger)
	reconciler := update.NewReconciler(a.logger)

	return &fleet.Coordinator{
		Cfg:          a.cfg,
		Dialer:       a.dialer,
		Orchestrator: backup.NewOrchestrator(a.cfg.Global.Backup, evaluator, reconciler, a.logger),
		Reconciler:   reconciler,
		Retention:    a.retention(),
		Notifier:     a.notifier,
		Logger:       a.logger,
	}
}

func (a *app) retention() *retention.Collector {
	return retention.NewCollector(a.cfg.Global.Backup.Root, a.cfg.ResolvePolicy, a.logger)
}

// Package fleet iterates hosts and workloads, sequentially and one at a
// time, dispatching backups and updates per policy and aggregating run
// statistics. One workload's failure never halts the others.
package fleet

import (
	"github.com/sirupsen/logrus"

	"compose-manager/src/backup"
	"compose-manager/src/compose"
	"compose-manager/src/config"
	"compose-manager/src/notify"
	"compose-manager/src/remote"
	"compose-manager/src/retention"
	"compose-manager/src/update"
)

// Mode selects which operations a run performs.
type Mode string

const (
	ModeAll    Mode = "all"
	ModeBackup Mode = "backup"
	ModeUpdate Mode = "update"
)

func (m Mode) includesBackup() bool { return m == ModeAll || m == ModeBackup }
func (m Mode) includesUpdate() bool { return m == ModeAll || m == ModeUpdate }

// Options narrow a run to a host and/or workload and can force backups
// regardless of schedule.
type Options struct {
	Mode     Mode
	Host     string
	Workload string
	Force    bool
}

// Stats aggregates one run. Ephemeral, scoped to the run.
type Stats struct {
	Workloads  int
	Containers int

	BackupsAttempted int
	BackupsSucceeded int
	BackupsFailed    int
	BackupsSkipped   int

	UpdatesAttempted int
	UpdatesSucceeded int
	UpdatesFailed    int
	UpdatesSkipped   int

	BackupBytes int64
}

// Coordinator wires the per-workload components together and walks the fleet.
type Coordinator struct {
	Cfg          *config.Config
	Dialer       remote.Dialer
	Orchestrator *backup.Orchestrator
	Reconciler   *update.Reconciler
	Retention    *retention.Collector
	Notifier     *notify.Dispatcher
	Logger       logrus.FieldLogger
}

// Run executes one pass over the fleet. Host connectivity failures are scoped
// to that host: its workloads are recorded as failed and the run continues.
func (c *Coordinator) Run(opts Options) Stats {
	c.Logger.WithFields(logrus.Fields{"mode": opts.Mode, "force": opts.Force}).Info("Run started")

	stats := Stats{}

	for _, name := range c.Cfg.SortedHostNames() {
		if opts.Host != "" && name != opts.Host {
			continue
		}
		host := c.Cfg.Global.Hosts[name]
		logger := c.Logger.WithField("host", name)

		runner, err := c.Dialer.Dial(host)
		if err != nil {
			logger.WithError(err).Error("Host unreachable, skipping its workloads")
			c.markHostFailed(opts, &stats)
			continue
		}

		c.processHost(runner, host, opts, &stats)
		if cerr := runner.Close(); cerr != nil {
			logger.WithError(cerr).Warn("Closing connection failed")
		}
	}

	if opts.Mode.includesBackup() {
		c.Cleanup()
	}

	c.logSummary(stats)

	if opts.Mode.includesBackup() {
		c.notifyBackupSummary(stats)
	}
	if opts.Mode.includesUpdate() {
		c.notifyUpdateSummary(stats)
	}

	return stats
}

func (c *Coordinator) processHost(runner remote.Runner, host config.Host, opts Options, stats *Stats) {
	logger := c.Logger.WithField("host", host.Name)
	logger.Info("Discovering workloads")

	workloads, err := compose.Discover(runner, host.Name, host.WorkloadRoot)
	if err != nil {
		logger.WithError(err).Error("Workload discovery failed")
		c.markHostFailed(opts, stats)
		return
	}
	logger.WithField("workloads", len(workloads)).Info("Discovery complete")

	for _, w := range workloads {
		if opts.Workload != "" && w.Name != opts.Workload {
			continue
		}
		stats.Workloads++
		pol := c.Cfg.ResolvePolicy(w.Name)

		backupFailed := false
		if opts.Mode.includesBackup() {
			backupFailed = c.runBackup(runner, w, pol, opts.Force, stats)
		}

		if !opts.Mode.includesUpdate() {
			continue
		}
		// A run in mode all already updated backup_then_update workloads
		// inside the backup; doing it again here would pull twice.
		if opts.Mode == ModeAll && pol.Behavior == config.BehaviorBackupThenUpdate {
			continue
		}
		// A failed backup suppresses this workload's standalone update for
		// the rest of the run.
		if backupFailed {
			continue
		}
		c.runUpdate(runner, w, pol, stats)
	}
}

// runBackup invokes the orchestrator and folds its result into stats,
// including the nested update outcome. Returns true when the backup failed.
func (c *Coordinator) runBackup(runner remote.Runner, w compose.Workload, pol config.Policy, force bool, stats *Stats) bool {
	stats.BackupsAttempted++
	res := c.Orchestrator.Backup(runner, w, pol, force)

	switch res.Status {
	case backup.StatusSuccess:
		stats.BackupsSucceeded++
		stats.BackupBytes += res.SizeBytes
		stats.Containers += res.Containers
		if res.UpdateStatus != "" {
			stats.UpdatesAttempted++
			if res.UpdateStatus == update.StatusUpdated {
				stats.UpdatesSucceeded++
			} else {
				stats.UpdatesSkipped++
			}
		}
	case backup.StatusFailed:
		stats.BackupsFailed++
		return true
	case backup.StatusSkipped:
		stats.BackupsSkipped++
	}
	return false
}

func (c *Coordinator) runUpdate(runner remote.Runner, w compose.Workload, pol config.Policy, stats *Stats) {
	logger := c.Logger.WithFields(logrus.Fields{"host": w.Host, "workload": w.Name})

	stats.UpdatesAttempted++
	if pol.Behavior == config.BehaviorBackupOnly {
		logger.Info("Skipping update, backup_only behavior")
		stats.UpdatesSkipped++
		return
	}

	logger.Info("Checking for updates")
	res := c.Reconciler.ReconcileStandalone(runner, w)
	switch res.Status {
	case update.StatusUpdated:
		stats.UpdatesSucceeded++
	case update.StatusFailed:
		logger.WithError(res.Err).Error("Update failed")
		stats.UpdatesFailed++
	default:
		stats.UpdatesSkipped++
	}
}

// markHostFailed records an unreachable host in the run's counters so its
// workloads show up as failures rather than silently vanishing.
func (c *Coordinator) markHostFailed(opts Options, stats *Stats) {
	if opts.Mode.includesBackup() {
		stats.BackupsAttempted++
		stats.BackupsFailed++
	}
	if opts.Mode.includesUpdate() {
		stats.UpdatesAttempted++
		stats.UpdatesFailed++
	}
}

// Cleanup runs the retention collector and notifies when anything was removed.
func (c *Coordinator) Cleanup() (removed int, freed int64) {
	removed, freed, err := c.Retention.Collect()
	if err != nil {
		c.Logger.WithError(err).Error("Cleanup failed")
		return 0, 0
	}
	if removed > 0 {
		c.notifyCleanup(removed, freed)
	}
	return removed, freed
}

func (c *Coordinator) logSummary(stats Stats) {
	c.Logger.WithFields(logrus.Fields{
		"workloads":         stats.Workloads,
		"backups_succeeded": stats.BackupsSucceeded,
		"backups_failed":    stats.BackupsFailed,
		"backups_skipped":   stats.BackupsSkipped,
		"updates_succeeded": stats.UpdatesSucceeded,
		"updates_failed":    stats.UpdatesFailed,
		"updates_skipped":   stats.UpdatesSkipped,
		"backup_bytes":      stats.BackupBytes,
	}).Info("Run complete")
}

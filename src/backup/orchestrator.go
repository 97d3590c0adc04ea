// Package backup runs the stop→snapshot→update→restart sequence for one
// workload. The central guarantee: a workload that was running before the
// operation is running after it, regardless of where the operation failed.
package backup

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"compose-manager/src/artifact"
	"compose-manager/src/compose"
	"compose-manager/src/config"
	"compose-manager/src/remote"
	"compose-manager/src/schedule"
	"compose-manager/src/update"
)

// Status of one orchestration.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// SkipReason says why a backup was skipped.
type SkipReason string

const (
	SkipSchedule SkipReason = "schedule"
	SkipBehavior SkipReason = "behavior"
)

// ErrKind classifies failures for the coordinator's aggregation.
type ErrKind string

const (
	KindCommand      ErrKind = "command"
	KindConnectivity ErrKind = "connectivity"
)

// Result of one orchestration. UpdateStatus is empty unless the policy asked
// for an update alongside the backup.
type Result struct {
	Status       Status
	Reason       SkipReason
	Kind         ErrKind
	ArtifactName string
	SizeBytes    int64
	Containers   int
	UpdateStatus update.Status
	ImagesPulled int
	Err          error
}

// Orchestrator backs up workloads into the configured backup root.
type Orchestrator struct {
	Cfg        config.BackupConfig
	Evaluator  *schedule.Evaluator
	Reconciler *update.Reconciler
	Logger     logrus.FieldLogger
	Now        func() time.Time
}

func NewOrchestrator(cfg config.BackupConfig, ev *schedule.Evaluator, rec *update.Reconciler, logger logrus.FieldLogger) *Orchestrator {
	return &Orchestrator{
		Cfg:        cfg,
		Evaluator:  ev,
		Reconciler: rec,
		Logger:     logger,
		Now:        time.Now,
	}
}

// Backup snapshots one workload, honoring its policy. Every failure after the
// containers have been stopped triggers a restart attempt before the failure
// is returned; a restart failure at that point is logged but never replaces
// the original error as the reported cause.
func (o *Orchestrator) Backup(run remote.Runner, w compose.Workload, pol config.Policy, force bool) Result {
	logger := o.Logger.WithFields(logrus.Fields{"host": w.Host, "workload": w.Name})

	// Force bypasses both the schedule and the update_only gate: an operator
	// asking for a backup gets one. The behavior check comes first only to
	// report the more specific skip reason.
	if !force {
		if pol.Behavior == config.BehaviorUpdateOnly {
			logger.Info("Skipping backup, update_only behavior")
			return Result{Status: StatusSkipped, Reason: SkipBehavior}
		}
		if !o.Evaluator.Due(w.Host, w.Name, pol) {
			logger.Info("Skipping backup, not due")
			return Result{Status: StatusSkipped, Reason: SkipSchedule}
		}
	}

	logger.Info("Backing up")

	containers, err := compose.RunningContainers(run, w)
	if err != nil {
		return Result{Status: StatusFailed, Kind: KindCommand, Err: err}
	}
	wasRunning := containers > 0
	logger.WithField("containers", containers).Info("Checked container state")

	// From here on every failure goes through fail so the restart attempt
	// cannot be forgotten on a new early return.
	fail := func(err error) Result {
		logger.WithError(err).Error("Backup failed")
		if wasRunning {
			if _, uerr := compose.Up(run, w); uerr != nil {
				logger.WithError(uerr).Error("Could not restart containers after failed backup")
			}
		}
		return Result{Status: StatusFailed, Kind: KindCommand, Containers: containers, Err: err}
	}

	if wasRunning {
		logger.Info("Stopping containers")
		if err := compose.Down(run, w); err != nil {
			return fail(err)
		}
	}

	name := artifact.Name(w.Host, w.Name, o.Now())
	backupPath := path.Join(o.Cfg.Root, name)

	logger.Info("Creating backup")
	res, err := run.Run(archiveCommand(w.Path, backupPath, pol, o.Cfg))
	if err != nil {
		return fail(err)
	}
	if res.ExitCode != 0 {
		return fail(errors.Errorf("archive failed: exit %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr)))
	}

	size, err := remoteFileSize(run, backupPath)
	if err != nil {
		return fail(err)
	}
	logger.WithFields(logrus.Fields{"artifact": name, "size": humanize.IBytes(uint64(size))}).Info("Backup complete")

	var updStatus update.Status
	var imagesPulled int
	if pol.Behavior == config.BehaviorBackupThenUpdate {
		if wasRunning {
			// Pull while the containers are still down so one restart
			// covers both the backup and the update.
			logger.Info("Checking for updates")
			upd := o.Reconciler.Reconcile(run, w)
			if upd.Status == update.StatusFailed {
				return fail(upd.Err)
			}
			updStatus = upd.Status
			imagesPulled = upd.ImagesPulled
		} else {
			logger.Info("Skipping updates, containers were not running")
			updStatus = update.StatusSkipped
		}
	}

	if wasRunning {
		logger.Info("Starting containers")
		if _, err := compose.Up(run, w); err != nil {
			logger.WithError(err).Error("Backup succeeded but containers did not restart")
			return Result{Status: StatusFailed, Kind: KindCommand, Containers: containers, Err: errors.Wrap(err, "restart")}
		}
	} else {
		logger.Info("Containers remain stopped (original state)")
	}

	return Result{
		Status:       StatusSuccess,
		ArtifactName: name,
		SizeBytes:    size,
		Containers:   containers,
		UpdateStatus: updStatus,
		ImagesPulled: imagesPulled,
	}
}

// archiveCommand assembles the remote tar pipeline. Exclusions, in order:
// descriptor files when backup_compose is off, volumes (or every subdirectory
// when the ALL sentinel is set), then the merged exclude patterns.
func archiveCommand(workloadPath, backupPath string, pol config.Policy, cfg config.BackupConfig) string {
	var excludes strings.Builder

	if !pol.BackupCompose {
		for _, f := range []string{"docker-compose.yml", "docker-compose.override.yml", ".env"} {
			fmt.Fprintf(&excludes, " --exclude='%s'", f)
		}
	}

	if pol.ExcludesAllVolumes() {
		excludes.WriteString(" --exclude='*/'")
	} else {
		for _, vol := range pol.ExcludeVolumes {
			fmt.Fprintf(&excludes, " --exclude='%s'", vol)
		}
	}

	for _, pattern := range pol.ExcludePatterns {
		fmt.Fprintf(&excludes, " --exclude='%s'", pattern)
	}

	return fmt.Sprintf("cd %s && tar%s -cf - . | %s > %s",
		workloadPath, excludes.String(), compressCommand(cfg), backupPath)
}

func compressCommand(cfg config.BackupConfig) string {
	tool := "gzip"
	if cfg.Compression == "pigz" {
		tool = "pigz"
	}
	return fmt.Sprintf("%s -%d", tool, cfg.CompressionLevel)
}

func remoteFileSize(run remote.Runner, path string) (int64, error) {
	res, err := run.Run(fmt.Sprintf("stat -c%%s %s", path))
	if err != nil {
		return 0, errors.Wrap(err, "backup size")
	}
	if res.ExitCode != 0 {
		return 0, errors.Errorf("backup size: exit %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	size, err := strconv.ParseInt(strings.TrimSpace(res.Stdout), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "backup size: unexpected output %q", res.Stdout)
	}
	return size, nil
}

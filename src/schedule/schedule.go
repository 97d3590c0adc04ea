// Package schedule decides whether a (host, workload) pair is due for a
// backup, from the timestamp encoded in its newest artifact filename.
package schedule

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"compose-manager/src/artifact"
	"compose-manager/src/config"
)

// Thresholds in whole calendar days per cadence.
var thresholds = map[string]int{
	config.ScheduleDaily:    1,
	config.ScheduleWeekly:   7,
	config.ScheduleBiweekly: 14,
	config.ScheduleMonthly:  30,
}

// Evaluator answers due/not-due questions against the backup root.
type Evaluator struct {
	BackupRoot string
	Logger     logrus.FieldLogger
	Now        func() time.Time
}

func NewEvaluator(backupRoot string, logger logrus.FieldLogger) *Evaluator {
	return &Evaluator{BackupRoot: backupRoot, Logger: logger, Now: time.Now}
}

// Due reports whether the pair should be backed up now. update_only workloads
// are never due (their backups are delegated to the update path). A pair with
// no prior artifact is always due. An artifact whose timestamp cannot be
// parsed fails open: a warning is logged and the pair is treated as due,
// so a parse error can never silently suppress a backup.
func (e *Evaluator) Due(host, workload string, pol config.Policy) bool {
	if pol.Behavior == config.BehaviorUpdateOnly {
		return false
	}

	newest, ok := e.newestArtifact(host, workload)
	if !ok {
		return true
	}

	info, err := artifact.Parse(newest)
	if err != nil {
		e.Logger.WithError(err).WithField("artifact", newest).
			Warn("Could not parse backup timestamp, assuming backup needed")
		return true
	}

	return DueSince(e.Logger, pol.Schedule, e.Now().Sub(info.Timestamp))
}

// DueSince applies the cadence threshold to the elapsed time since the last
// backup. Unknown cadences fall back to daily with a warning.
func DueSince(logger logrus.FieldLogger, schedule string, elapsed time.Duration) bool {
	threshold, ok := thresholds[schedule]
	if !ok {
		logger.WithField("schedule", schedule).Warn("Unknown schedule, defaulting to daily")
		threshold = thresholds[config.ScheduleDaily]
	}
	return int(elapsed.Hours()/24) >= threshold
}

// newestArtifact returns the lexicographically greatest artifact name for the
// pair, which by the naming invariant is also the chronologically newest.
func (e *Evaluator) newestArtifact(host, workload string) (string, bool) {
	entries, err := os.ReadDir(e.BackupRoot)
	if err != nil {
		e.Logger.WithError(err).Warn("Could not scan backup root, assuming backup needed")
		return "", false
	}

	newest := ""
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !artifact.BelongsTo(name, host, workload) {
			continue
		}
		if name > newest {
			newest = name
		}
	}
	return newest, newest != ""
}

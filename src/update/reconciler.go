// Package update detects and applies image updates for a workload by
// comparing the set of image digests before and after a pull.
package update

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"compose-manager/src/compose"
	"compose-manager/src/remote"
)

// Status of one reconciliation.
type Status string

const (
	StatusUpToDate Status = "up-to-date"
	StatusUpdated  Status = "updated"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// Result of one reconciliation. ImagesPulled is advisory metadata, derived
// from the pull tool's free-text output; it is never used for correctness
// decisions.
type Result struct {
	Status       Status
	ImagesPulled int
	Err          error
}

// Reconciler performs digest-diff based update detection.
type Reconciler struct {
	Logger logrus.FieldLogger
}

func NewReconciler(logger logrus.FieldLogger) *Reconciler {
	return &Reconciler{Logger: logger}
}

// buildFromSourceMarker appears in pull output for images that cannot be
// pulled because they are built locally; such errors are tolerated.
const buildFromSourceMarker = "must be built from source"

// Reconcile pulls newer images and diffs digests, without touching running
// containers. It is used from inside a backup, while the containers are
// already stopped; the orchestrator restarts them afterwards. Pull errors for
// pullable images are logged but do not fail the backup that wraps this call.
func (r *Reconciler) Reconcile(run remote.Runner, w compose.Workload) Result {
	logger := r.workloadLogger(w)

	oldDigests, err := compose.ImageDigests(run, w)
	if err != nil {
		return Result{Status: StatusFailed, Err: err}
	}

	output, exitCode, err := compose.Pull(run, w)
	if err != nil {
		return Result{Status: StatusFailed, Err: err}
	}
	if pullFailed(output, exitCode) {
		logger.WithField("output", truncate(output, 200)).Warn("Pull had errors")
	}

	newDigests, err := compose.ImageDigests(run, w)
	if err != nil {
		return Result{Status: StatusFailed, Err: err}
	}

	if oldDigests == newDigests {
		logger.Info("No updates available")
		return Result{Status: StatusUpToDate}
	}

	pulled := CountPulledImages(output)
	logger.WithField("images", pulled).Info("Updates found")
	return Result{Status: StatusUpdated, ImagesPulled: pulled}
}

// ReconcileStandalone is the full standalone update: pull, diff, and on a
// detected change an idempotent recreate of the affected containers. Here a
// pull failure (other than build-from-source complaints) fails the operation.
func (r *Reconciler) ReconcileStandalone(run remote.Runner, w compose.Workload) Result {
	logger := r.workloadLogger(w)

	oldDigests, err := compose.ImageDigests(run, w)
	if err != nil {
		return Result{Status: StatusFailed, Err: err}
	}

	logger.Info("Pulling updates")
	output, exitCode, err := compose.Pull(run, w)
	if err != nil {
		return Result{Status: StatusFailed, Err: err}
	}
	if pullFailed(output, exitCode) {
		return Result{Status: StatusFailed, Err: errors.Errorf("pull failed: %s", truncate(output, 200))}
	}

	newDigests, err := compose.ImageDigests(run, w)
	if err != nil {
		return Result{Status: StatusFailed, Err: err}
	}

	if oldDigests == newDigests {
		logger.Info("Up-to-date, no updates needed")
		return Result{Status: StatusUpToDate}
	}

	pulled := CountPulledImages(output)

	logger.Info("Recreating containers")
	if _, err := compose.Up(run, w); err != nil {
		return Result{Status: StatusFailed, Err: errors.Wrap(err, "container recreate")}
	}

	logger.WithField("images", pulled).Info("Updated successfully")
	return Result{Status: StatusUpdated, ImagesPulled: pulled}
}

func pullFailed(output string, exitCode int) bool {
	return exitCode != 0 &&
		strings.Contains(output, "Error") &&
		!strings.Contains(output, buildFromSourceMarker)
}

// CountPulledImages estimates how many images a pull fetched by counting
// known success phrases in the tool's output. The count is approximate by
// design (phrasing varies across runtime versions and locales); it feeds
// summaries only.
func CountPulledImages(output string) int {
	return strings.Count(output, "Downloaded newer image") + strings.Count(output, "Pulled")
}

func (r *Reconciler) workloadLogger(w compose.Workload) logrus.FieldLogger {
	return r.Logger.WithFields(logrus.Fields{"host": w.Host, "workload": w.Name})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

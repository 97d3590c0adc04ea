package backup

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compose-manager/src/artifact"
	"compose-manager/src/compose"
	"compose-manager/src/config"
	"compose-manager/src/remote"
	"compose-manager/src/schedule"
	"compose-manager/src/update"
)

var joplin = compose.Workload{Name: "joplin", Path: "/opt/docker/joplin", Host: "docker01"}

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, string) {
	t.Helper()
	root := t.TempDir()
	logger := testLogger()
	cfg := config.BackupConfig{Root: root, Compression: "pigz", CompressionLevel: 6}
	o := NewOrchestrator(cfg, schedule.NewEvaluator(root, logger), update.NewReconciler(logger), logger)
	return o, root
}

func defaultPolicy() config.Policy {
	return config.Policy{
		Retention:     4,
		Schedule:      config.ScheduleDaily,
		Behavior:      config.BehaviorBackupThenUpdate,
		BackupCompose: true,
	}
}

func runningFleet(extra ...remote.FakeResponse) *remote.FakeRunner {
	responses := []remote.FakeResponse{
		{Match: "ps -q", Result: remote.Result{Stdout: "2\n"}},
		{Match: "stat -c%s", Result: remote.Result{Stdout: "1048576\n"}},
		{Match: "inspect", Result: remote.Result{Stdout: "sha256:aaa\n"}},
	}
	return &remote.FakeRunner{Responses: append(extra, responses...)}
}

func TestBackupSuccessWithNestedUpdate(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	runner := runningFleet()

	res := o.Backup(runner, joplin, defaultPolicy(), false)

	require.NoError(t, res.Err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Regexp(t, regexp.MustCompile(`^docker01-joplin-\d{8}-\d{6}\.tar\.gz$`), res.ArtifactName)
	assert.Equal(t, int64(1048576), res.SizeBytes)
	assert.Equal(t, 2, res.Containers)
	assert.Equal(t, update.StatusUpToDate, res.UpdateStatus)

	// stop → archive → pull → restart, restart exactly once.
	assert.Equal(t, 1, runner.CallsMatching("docker compose down"))
	assert.Equal(t, 1, runner.CallsMatching("tar -cf"))
	assert.Equal(t, 1, runner.CallsMatching("docker compose pull"))
	assert.Equal(t, 1, runner.CallsMatching("up -d"))
}

func TestBackupFailureSafeRestart(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	runner := runningFleet(remote.FakeResponse{
		Match:  "tar",
		Result: remote.Result{ExitCode: 1, Stderr: "no space left on device"},
	})

	res := o.Backup(runner, joplin, defaultPolicy(), false)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Error(t, res.Err)
	// The restart is still issued, exactly once, and the archive error is
	// what gets reported.
	assert.Equal(t, 1, runner.CallsMatching("up -d"))
	assert.ErrorContains(t, res.Err, "no space left")
}

func TestBackupStoppedWorkloadStaysStopped(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	runner := runningFleet(remote.FakeResponse{
		Match:  "ps -q",
		Result: remote.Result{Stdout: "0\n"},
	})

	res := o.Backup(runner, joplin, defaultPolicy(), false)

	require.NoError(t, res.Err)
	assert.Equal(t, StatusSuccess, res.Status)
	// Updating a stopped stack is skipped, not attempted.
	assert.Equal(t, update.StatusSkipped, res.UpdateStatus)
	assert.Zero(t, runner.CallsMatching("docker compose down"))
	assert.Zero(t, runner.CallsMatching("up -d"))
	assert.Zero(t, runner.CallsMatching("docker compose pull"))
}

func TestBackupSkippedWhenNotDue(t *testing.T) {
	o, root := newTestOrchestrator(t)
	name := artifact.Name("docker01", "joplin", time.Now().Add(-10*time.Hour))
	require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644))

	runner := runningFleet()
	res := o.Backup(runner, joplin, defaultPolicy(), false)

	assert.Equal(t, StatusSkipped, res.Status)
	assert.Equal(t, SkipSchedule, res.Reason)
	assert.Empty(t, runner.Commands)
}

func TestBackupForcedIgnoresSchedule(t *testing.T) {
	o, root := newTestOrchestrator(t)
	name := artifact.Name("docker01", "joplin", time.Now().Add(-10*time.Hour))
	require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644))

	res := o.Backup(runningFleet(), joplin, defaultPolicy(), true)

	assert.Equal(t, StatusSuccess, res.Status)
}

func TestBackupSkippedForUpdateOnlyBehavior(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	pol := defaultPolicy()
	pol.Behavior = config.BehaviorUpdateOnly

	runner := runningFleet()
	res := o.Backup(runner, joplin, pol, false)

	assert.Equal(t, StatusSkipped, res.Status)
	assert.Equal(t, SkipBehavior, res.Reason)
	assert.Empty(t, runner.Commands)
}

func TestBackupForcedArchivesUpdateOnlyWorkload(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	pol := defaultPolicy()
	pol.Behavior = config.BehaviorUpdateOnly

	runner := runningFleet()
	res := o.Backup(runner, joplin, pol, true)

	require.NoError(t, res.Err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 1, runner.CallsMatching("tar -cf"))
	// update_only is not backup_then_update, so no nested update.
	assert.Zero(t, runner.CallsMatching("docker compose pull"))
}

func TestBackupOnlySkipsNestedUpdate(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	pol := defaultPolicy()
	pol.Behavior = config.BehaviorBackupOnly

	runner := runningFleet()
	res := o.Backup(runner, joplin, pol, true)

	require.NoError(t, res.Err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Empty(t, string(res.UpdateStatus))
	assert.Zero(t, runner.CallsMatching("docker compose pull"))
	// Containers were running, so they are still restarted.
	assert.Equal(t, 1, runner.CallsMatching("up -d"))
}

func TestBackupStopFailureRestartsAndFails(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	runner := runningFleet(remote.FakeResponse{
		Match:  "docker compose down",
		Result: remote.Result{ExitCode: 1, Stderr: "cannot stop"},
	})

	res := o.Backup(runner, joplin, defaultPolicy(), true)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 1, runner.CallsMatching("up -d"))
	// Nothing was archived after the failed stop.
	assert.Zero(t, runner.CallsMatching("tar"))
}

func TestArchiveCommandExclusions(t *testing.T) {
	cfg := config.BackupConfig{Root: "/mnt/backups", Compression: "pigz", CompressionLevel: 9}

	pol := defaultPolicy()
	pol.BackupCompose = false
	pol.ExcludeVolumes = []string{"media"}
	pol.ExcludePatterns = []string{"*.log", "cache/*"}

	cmd := archiveCommand("/opt/docker/joplin", "/mnt/backups/a.tar.gz", pol, cfg)

	assert.Contains(t, cmd, "cd /opt/docker/joplin && tar")
	assert.Contains(t, cmd, "--exclude='docker-compose.yml'")
	assert.Contains(t, cmd, "--exclude='docker-compose.override.yml'")
	assert.Contains(t, cmd, "--exclude='.env'")
	assert.Contains(t, cmd, "--exclude='media'")
	assert.Contains(t, cmd, "--exclude='*.log'")
	assert.Contains(t, cmd, "--exclude='cache/*'")
	assert.Contains(t, cmd, "| pigz -9 > /mnt/backups/a.tar.gz")
	assert.NotContains(t, cmd, "--exclude='*/'")
}

func TestArchiveCommandExcludeAllVolumes(t *testing.T) {
	cfg := config.BackupConfig{Root: "/mnt/backups", Compression: "gzip", CompressionLevel: 6}

	pol := defaultPolicy()
	pol.ExcludeVolumes = []string{config.ExcludeAllVolumes}

	cmd := archiveCommand("/opt/docker/joplin", "/mnt/backups/a.tar.gz", pol, cfg)

	assert.Contains(t, cmd, "--exclude='*/'")
	assert.NotContains(t, cmd, "--exclude='ALL'")
	assert.Contains(t, cmd, "| gzip -6 >")
}

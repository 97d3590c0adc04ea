package update

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compose-manager/src/compose"
	"compose-manager/src/remote"
)

func testReconciler() *Reconciler {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.PanicLevel)
	return NewReconciler(logger)
}

var testWorkload = compose.Workload{Name: "joplin", Path: "/opt/docker/joplin", Host: "docker01"}

func TestCountPulledImages(t *testing.T) {
	assert.Equal(t, 0, CountPulledImages(""))
	assert.Equal(t, 1, CountPulledImages("Status: Downloaded newer image for joplin/server:latest"))
	assert.Equal(t, 2, CountPulledImages("db Pulled\nredis Pulled"))
	assert.Equal(t, 3, CountPulledImages("Downloaded newer image\napp Pulled\ncache Pulled"))
}

func TestReconcileUpToDate(t *testing.T) {
	runner := &remote.FakeRunner{Responses: []remote.FakeResponse{
		{Match: "inspect", Result: remote.Result{Stdout: "sha256:aaa\nsha256:bbb\n"}},
	}}

	res := testReconciler().Reconcile(runner, testWorkload)

	require.NoError(t, res.Err)
	assert.Equal(t, StatusUpToDate, res.Status)
	assert.Equal(t, 1, runner.CallsMatching("docker compose pull"))
}

func TestReconcileDetectsChange(t *testing.T) {
	runner := &remote.FakeRunner{Responses: []remote.FakeResponse{
		{Match: "inspect", Result: remote.Result{Stdout: "sha256:aaa\n"}, Once: true},
		{Match: "docker compose pull", Result: remote.Result{Stdout: "joplin Pulled\n"}},
		{Match: "inspect", Result: remote.Result{Stdout: "sha256:ccc\n"}},
	}}

	res := testReconciler().Reconcile(runner, testWorkload)

	require.NoError(t, res.Err)
	assert.Equal(t, StatusUpdated, res.Status)
	assert.Equal(t, 1, res.ImagesPulled)
	// Nested reconcile never touches containers; the orchestrator restarts.
	assert.Zero(t, runner.CallsMatching("up -d"))
}

func TestReconcileStandaloneRecreatesOnChange(t *testing.T) {
	runner := &remote.FakeRunner{Responses: []remote.FakeResponse{
		{Match: "inspect", Result: remote.Result{Stdout: "sha256:aaa\n"}, Once: true},
		{Match: "docker compose pull", Result: remote.Result{Stdout: "Downloaded newer image for joplin\n"}},
		{Match: "inspect", Result: remote.Result{Stdout: "sha256:ddd\n"}},
	}}

	res := testReconciler().ReconcileStandalone(runner, testWorkload)

	require.NoError(t, res.Err)
	assert.Equal(t, StatusUpdated, res.Status)
	assert.Equal(t, 1, res.ImagesPulled)
	assert.Equal(t, 1, runner.CallsMatching("up -d"))
}

func TestReconcileStandaloneUpToDateSkipsRecreate(t *testing.T) {
	runner := &remote.FakeRunner{Responses: []remote.FakeResponse{
		{Match: "inspect", Result: remote.Result{Stdout: "sha256:aaa\n"}},
	}}

	res := testReconciler().ReconcileStandalone(runner, testWorkload)

	assert.Equal(t, StatusUpToDate, res.Status)
	assert.Zero(t, runner.CallsMatching("up -d"))
}

func TestReconcileStandalonePullFailure(t *testing.T) {
	runner := &remote.FakeRunner{Responses: []remote.FakeResponse{
		{Match: "docker compose pull", Result: remote.Result{
			ExitCode: 1,
			Stdout:   "Error response from daemon: pull access denied",
		}},
	}}

	res := testReconciler().ReconcileStandalone(runner, testWorkload)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Error(t, res.Err)
	assert.Zero(t, runner.CallsMatching("up -d"))
}

func TestReconcileStandaloneToleratesBuildFromSource(t *testing.T) {
	runner := &remote.FakeRunner{Responses: []remote.FakeResponse{
		{Match: "inspect", Result: remote.Result{Stdout: "sha256:aaa\n"}},
		{Match: "docker compose pull", Result: remote.Result{
			ExitCode: 1,
			Stdout:   "Error: image app must be built from source\n",
		}},
	}}

	res := testReconciler().ReconcileStandalone(runner, testWorkload)

	require.NoError(t, res.Err)
	assert.Equal(t, StatusUpToDate, res.Status)
}

func TestReconcileStandaloneRecreateFailure(t *testing.T) {
	runner := &remote.FakeRunner{Responses: []remote.FakeResponse{
		{Match: "inspect", Result: remote.Result{Stdout: "sha256:aaa\n"}, Once: true},
		{Match: "inspect", Result: remote.Result{Stdout: "sha256:eee\n"}},
		{Match: "up -d", Result: remote.Result{ExitCode: 1, Stdout: "cannot start"}},
	}}

	res := testReconciler().ReconcileStandalone(runner, testWorkload)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Error(t, res.Err)
}

// Package compose drives docker-compose workloads through a remote shell.
// The runtime is reached only through literal command lines; orchestration
// depends on exit status and well-known substrings of the output, never on
// structured data.
package compose

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"compose-manager/src/remote"
)

// Workload is a directory on a host containing a compose descriptor, backed
// up and updated as one unit. Workloads are discovered per run and never
// persisted.
type Workload struct {
	Name string
	Path string
	Host string
}

// Discover finds compose workloads under root on the given host: every
// directory (up to two levels deep) holding a docker-compose.yml.
func Discover(r remote.Runner, host, root string) ([]Workload, error) {
	cmd := fmt.Sprintf("find %s -maxdepth 2 -name 'docker-compose.yml' -exec dirname {} \\;", root)
	res, err := r.Run(cmd)
	if err != nil {
		return nil, errors.Wrapf(err, "discover workloads on %s", host)
	}

	var workloads []Workload
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		workloads = append(workloads, Workload{
			Name: path.Base(line),
			Path: line,
			Host: host,
		})
	}
	return workloads, nil
}

// RunningContainers returns the number of running containers of the workload.
func RunningContainers(r remote.Runner, w Workload) (int, error) {
	res, err := r.Run(fmt.Sprintf("cd %s && docker compose ps -q 2>/dev/null | wc -l", w.Path))
	if err != nil {
		return 0, errors.Wrap(err, "container count")
	}
	n, err := strconv.Atoi(strings.TrimSpace(res.Stdout))
	if err != nil {
		return 0, errors.Wrapf(err, "container count: unexpected output %q", res.Stdout)
	}
	return n, nil
}

// Down stops the workload's containers and waits for completion.
func Down(r remote.Runner, w Workload) error {
	res, err := r.Run(fmt.Sprintf("cd %s && docker compose down", w.Path))
	if err != nil {
		return errors.Wrap(err, "stop containers")
	}
	if res.ExitCode != 0 {
		return errors.Errorf("stop containers: exit %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// Up starts (or recreates) the workload's containers in the background.
// The combined output is returned for callers that report recreate failures.
func Up(r remote.Runner, w Workload) (string, error) {
	res, err := r.Run(fmt.Sprintf("cd %s && docker compose up -d 2>&1", w.Path))
	if err != nil {
		return "", errors.Wrap(err, "start containers")
	}
	if res.ExitCode != 0 {
		return res.Stdout, errors.Errorf("start containers: exit %d: %s", res.ExitCode, strings.TrimSpace(res.Stdout))
	}
	return res.Stdout, nil
}

// Pull fetches newer images. The exit code and combined output are handed
// back raw: the reconciler decides what counts as a failure.
func Pull(r remote.Runner, w Workload) (output string, exitCode int, err error) {
	res, err := r.Run(fmt.Sprintf("cd %s && docker compose pull 2>&1", w.Path))
	if err != nil {
		return "", 0, errors.Wrap(err, "pull images")
	}
	return res.Stdout, res.ExitCode, nil
}

// ImageDigests captures the sorted content digests of all images the
// workload currently references. The text is compared verbatim before and
// after a pull; sorting makes the comparison order-insensitive.
func ImageDigests(r remote.Runner, w Workload) (string, error) {
	cmd := fmt.Sprintf("cd %s && docker compose images -q 2>/dev/null | xargs -r docker inspect --format='{{.Id}}' 2>/dev/null | sort", w.Path)
	res, err := r.Run(cmd)
	if err != nil {
		return "", errors.Wrap(err, "image digests")
	}
	return strings.TrimSpace(res.Stdout), nil
}

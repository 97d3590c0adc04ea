package remote

import (
	"strings"

	"compose-manager/src/config"
)

// FakeResponse matches commands by substring and yields a canned result.
// A Once response is consumed by its first match, letting tests script
// different outcomes for repeated commands (digests before and after a pull).
type FakeResponse struct {
	Match  string
	Result Result
	Err    error
	Once   bool
}

// FakeRunner is an in-memory Runner for unit tests. Commands are recorded in
// order; the first response whose Match is a substring of the command wins,
// and unmatched commands succeed with empty output.
type FakeRunner struct {
	Responses []FakeResponse
	Commands  []string
	Closed    bool
}

func (f *FakeRunner) Run(cmd string) (Result, error) {
	f.Commands = append(f.Commands, cmd)
	for i, r := range f.Responses {
		if strings.Contains(cmd, r.Match) {
			if r.Once {
				f.Responses = append(f.Responses[:i:i], f.Responses[i+1:]...)
			}
			return r.Result, r.Err
		}
	}
	return Result{}, nil
}

func (f *FakeRunner) Close() error {
	f.Closed = true
	return nil
}

// CallsMatching counts recorded commands containing sub.
func (f *FakeRunner) CallsMatching(sub string) int {
	n := 0
	for _, c := range f.Commands {
		if strings.Contains(c, sub) {
			n++
		}
	}
	return n
}

// FakeDialer hands out pre-built runners keyed by host name.
type FakeDialer struct {
	Runners map[string]*FakeRunner
	Errs    map[string]error
}

func (d *FakeDialer) Dial(host config.Host) (Runner, error) {
	if err, ok := d.Errs[host.Name]; ok {
		return nil, err
	}
	if r, ok := d.Runners[host.Name]; ok {
		return r, nil
	}
	return &FakeRunner{}, nil
}

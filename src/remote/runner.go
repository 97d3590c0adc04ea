// Package remote models a host as a synchronous command-execution capability:
// run a shell command, get exit status plus captured stdout/stderr. Keeping
// the interface this narrow keeps orchestration logic independent of the SSH
// transport and lets tests script a fleet in memory.
package remote

import "compose-manager/src/config"

// Result is the outcome of one remote command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes shell commands on one host. Run blocks until the command
// finishes; a returned error means the transport failed, not that the command
// exited non-zero.
type Runner interface {
	Run(cmd string) (Result, error)
	Close() error
}

// Dialer opens a Runner for a host. Dial failures are connectivity errors
// scoped to that host; the caller moves on to the next one.
type Dialer interface {
	Dial(host config.Host) (Runner, error)
}

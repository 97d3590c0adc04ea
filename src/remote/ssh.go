package remote

import (
	"bytes"
	"net"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"compose-manager/src/config"
)

// SSHDialer opens SSH connections using the global SSH defaults, with
// per-host user/key overrides. Connection establishment is time-bounded;
// command execution is not.
type SSHDialer struct {
	SSH config.SSHConfig
}

func NewSSHDialer(cfg config.SSHConfig) *SSHDialer {
	return &SSHDialer{SSH: cfg}
}

func (d *SSHDialer) Dial(host config.Host) (Runner, error) {
	user := d.SSH.User
	if host.User != "" {
		user = host.User
	}
	keyFile := d.SSH.KeyFile
	if host.KeyFile != "" {
		keyFile = host.KeyFile
	}

	var auths []ssh.AuthMethod

	if keyFile != "" {
		signer, err := loadSigner(keyFile)
		if err != nil {
			return nil, errors.Wrapf(err, "host %s: load key", host.Name)
		}
		auths = append(auths, ssh.PublicKeys(signer))
	}

	if d.SSH.Password != "" {
		auths = append(auths, ssh.Password(d.SSH.Password))
	}

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			auths = append(auths, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	hostKeyCB, err := d.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            auths,
		HostKeyCallback: hostKeyCB,
		Timeout:         d.SSH.ConnectTimeout,
	}

	addr := host.Address
	if !strings.Contains(addr, ":") {
		addr += ":22"
	}

	dialer := net.Dialer{Timeout: d.SSH.ConnectTimeout}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "host %s: connect %s", host.Name, addr)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "host %s: ssh handshake", host.Name)
	}

	return &sshRunner{client: ssh.NewClient(c, chans, reqs)}, nil
}

func (d *SSHDialer) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if !d.SSH.StrictHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if d.SSH.KnownHosts == "" {
		return nil, errors.New("strict_host_key is enabled but ssh.known_hosts is not set")
	}
	cb, err := knownhosts.New(d.SSH.KnownHosts)
	if err != nil {
		return nil, errors.Wrap(err, "known_hosts")
	}
	return cb, nil
}

func loadSigner(path string) (ssh.Signer, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(key)
}

type sshRunner struct {
	client *ssh.Client
}

// Run executes cmd in a fresh session. Non-zero exits are reported through
// Result.ExitCode; only transport-level failures become errors.
func (r *sshRunner) Run(cmd string) (Result, error) {
	sess, err := r.client.NewSession()
	if err != nil {
		return Result{}, errors.Wrap(err, "new session")
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	res := Result{}
	if err := sess.Run(cmd); err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitStatus()
		} else {
			return Result{}, errors.Wrapf(err, "run %q", cmd)
		}
	}

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	return res, nil
}

func (r *sshRunner) Close() error {
	return r.client.Close()
}

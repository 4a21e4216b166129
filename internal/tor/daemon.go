package tor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultStartupTimeout bounds how long Start waits for Tor to bootstrap.
const DefaultStartupTimeout = 3 * time.Minute

// ErrNotRunning is returned when the proxy of a stopped daemon is requested.
var ErrNotRunning = errors.New("tor daemon is not running")

// Daemon manages an embedded Tor process.
//
// Design decision: The daemon listens on OS-assigned ports so that two
// crawlmd processes never fight over 9050, and each crawl gets fresh
// circuits.
//
// Note: Bootstrapping takes from a few seconds up to a few minutes,
// depending on the directory cache and the network.
type Daemon struct {
	process        *tornago.TorProcess
	socksAddr      string
	startupTimeout time.Duration
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithStartupTimeout sets the maximum time to wait for Tor to bootstrap.
// Non-positive values keep the default.
func WithStartupTimeout(timeout time.Duration) Option {
	return func(d *Daemon) {
		if timeout > 0 {
			d.startupTimeout = timeout
		}
	}
}

// NewDaemon creates a daemon manager. Call Start to launch Tor.
func NewDaemon(opts ...Option) *Daemon {
	d := &Daemon{startupTimeout: DefaultStartupTimeout}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches Tor and blocks until it has bootstrapped.
// A context cancelled during startup stops the process again.
func (d *Daemon) Start(ctx context.Context) error {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(d.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("failed to start Tor daemon: %w", err)
	}

	if err := ctx.Err(); err != nil {
		_ = process.Stop() //nolint:errcheck // best effort cleanup
		return err
	}

	d.process = process
	d.socksAddr = process.SocksAddr()
	return nil
}

// Stop shuts Tor down. It is safe to call on a daemon that never started.
func (d *Daemon) Stop() error {
	if d.process == nil {
		return nil
	}
	err := d.process.Stop()
	d.process = nil
	d.socksAddr = ""
	return err
}

// IsRunning reports whether the Tor process is up.
func (d *Daemon) IsRunning() bool {
	return d.process != nil
}

// SocksAddr returns the SOCKS listener as host:port, or "" when stopped.
func (d *Daemon) SocksAddr() string {
	return d.socksAddr
}

// ProxyURL returns the socks5h:// URL for the running daemon. Hostnames
// are resolved by Tor, which onion hosts require.
func (d *Daemon) ProxyURL() (string, error) {
	if !d.IsRunning() || d.socksAddr == "" {
		return "", ErrNotRunning
	}
	return "socks5h://" + d.socksAddr, nil
}

package probe

import (
	"context"
	"net"
	"time"
)

// TCPConfig configures a TCP port probe.
type TCPConfig struct {
	// Name is the unique probe name.
	Name string

	// Address is the host:port to dial.
	Address string

	// Timeout is the per-execution timeout. Default: DefaultTimeout.
	Timeout time.Duration
}

// TCPProbe checks that a TCP port accepts connections.
type TCPProbe struct {
	config TCPConfig
}

// NewTCPProbe creates a new TCP probe.
func NewTCPProbe(config TCPConfig) *TCPProbe {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &TCPProbe{config: config}
}

// Name returns the probe name.
func (p *TCPProbe) Name() string {
	return p.config.Name
}

// Probe dials the address once and closes the connection.
func (p *TCPProbe) Probe(ctx context.Context) Result {
	return execute(ctx, p.config.Name, p.config.Timeout, func(ctx context.Context) Result {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", p.config.Address)
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return Fail(p.config.Name, DetailTimeout, ErrTimeout)
			}
			return Fail(p.config.Name, err.Error(), err)
		}
		_ = conn.Close()
		return Pass(p.config.Name, "connected")
	})
}

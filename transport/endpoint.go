package transport

import (
	"context"
	"net"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/zhur/errors"
)

// Network names a supported endpoint scheme.
type Network string

const (
	NetworkUnix Network = "unix"
	NetworkTCP  Network = "tcp"
	NetworkQUIC Network = "quic"
)

// Endpoint is a parsed listen or dial address.
type Endpoint struct {
	Network Network
	Address string
}

// ParseEndpoint accepts unix:///path, a bare /path, tcp://host:port and
// quic://host:port.
func ParseEndpoint(s string) (Endpoint, error) {
	switch {
	case strings.HasPrefix(s, "unix://"):
		path := strings.TrimPrefix(s, "unix://")
		if path == "" {
			return Endpoint{}, errors.InvalidInput(errors.PhaseConfig, "unix endpoint without a path")
		}
		return Endpoint{Network: NetworkUnix, Address: path}, nil
	case strings.HasPrefix(s, "/"):
		return Endpoint{Network: NetworkUnix, Address: s}, nil
	case strings.HasPrefix(s, "tcp://"):
		return hostPort(NetworkTCP, strings.TrimPrefix(s, "tcp://"))
	case strings.HasPrefix(s, "quic://"):
		return hostPort(NetworkQUIC, strings.TrimPrefix(s, "quic://"))
	}
	return Endpoint{}, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Detail("unsupported endpoint %q", s).
		Build()
}

// MustParseEndpoint is ParseEndpoint for compile-time constants.
func MustParseEndpoint(s string) Endpoint {
	ep, err := ParseEndpoint(s)
	if err != nil {
		panic(err)
	}
	return ep
}

func hostPort(network Network, addr string) (Endpoint, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return Endpoint{}, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Cause(err).
			Detail("bad %s address %q", network, addr).
			Build()
	}
	return Endpoint{Network: network, Address: addr}, nil
}

func (e Endpoint) String() string {
	return string(e.Network) + "://" + e.Address
}

// Options tune dialing and TLS.
type Options struct {
	// DialTimeout bounds connection setup. Zero means no bound beyond ctx.
	DialTimeout time.Duration
	// RequestTimeout bounds one client round trip. Zero means no bound beyond ctx.
	RequestTimeout time.Duration
	// CertFile and KeyFile configure QUIC TLS. Empty means an in-memory
	// self-signed certificate on listeners and an unverified peer on dialers.
	CertFile string
	KeyFile  string
}

// Listener accepts framed streams.
type Listener interface {
	Accept(ctx context.Context) (Stream, error)
	Close() error
	Addr() string
}

// Listen opens a listener on ep.
func Listen(ctx context.Context, ep Endpoint, opts Options) (Listener, error) {
	switch ep.Network {
	case NetworkUnix:
		removeStaleSocket(ep.Address)
		ln, err := (&net.ListenConfig{}).Listen(ctx, "unix", ep.Address)
		if err != nil {
			return nil, errors.IO("listen "+ep.String(), err)
		}
		return &netListener{ln: ln, unix: true}, nil
	case NetworkTCP:
		ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", ep.Address)
		if err != nil {
			return nil, errors.IO("listen "+ep.String(), err)
		}
		return &netListener{ln: ln}, nil
	case NetworkQUIC:
		return listenQUIC(ep.Address, opts)
	}
	return nil, errors.Unsupported(errors.PhaseTransport, "network "+string(ep.Network))
}

// Dial opens one stream to ep.
func Dial(ctx context.Context, ep Endpoint, opts Options) (Stream, error) {
	if opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
	}

	switch ep.Network {
	case NetworkUnix, NetworkTCP:
		var d net.Dialer
		c, err := d.DialContext(ctx, string(ep.Network), ep.Address)
		if err != nil {
			return nil, errors.IO("dial "+ep.String(), err)
		}
		return c, nil
	case NetworkQUIC:
		return dialQUIC(ctx, ep.Address, opts)
	}
	return nil, errors.Unsupported(errors.PhaseTransport, "network "+string(ep.Network))
}

// removeStaleSocket deletes a socket file left behind by a dead process.
// A socket somebody still answers on is left alone so Listen fails loudly.
func removeStaleSocket(path string) {
	fi, err := os.Stat(path)
	if err != nil || fi.Mode()&os.ModeSocket == 0 {
		return
	}
	if c, err := net.DialTimeout("unix", path, 100*time.Millisecond); err == nil {
		_ = c.Close()
		return
	}
	if err := os.Remove(path); err == nil {
		Logger().Debug("removed stale socket", zap.String("path", path))
	}
}

type netListener struct {
	ln   net.Listener
	unix bool
}

func (l *netListener) Accept(context.Context) (Stream, error) {
	c, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	if l.unix {
		logPeer(c)
	}
	return c, nil
}

func (l *netListener) Close() error { return l.ln.Close() }

func (l *netListener) Addr() string { return l.ln.Addr().String() }

func logPeer(c net.Conn) {
	uc, ok := c.(*net.UnixConn)
	if !ok {
		return
	}
	cred, err := peerCredentials(uc)
	if err != nil {
		Logger().Debug("peer credentials unavailable", zap.Error(err))
		return
	}
	Logger().Debug("accepted unix peer",
		zap.Int32("pid", cred.PID),
		zap.Uint32("uid", cred.UID),
		zap.Uint32("gid", cred.GID))
}

// PeerCred identifies the process on the other end of a unix socket.
type PeerCred struct {
	PID int32
	UID uint32
	GID uint32
}

func listenerClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || quicListenerClosed(err)
}

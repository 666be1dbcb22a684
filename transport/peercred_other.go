//go:build !linux

package transport

import (
	"net"

	"github.com/wippyai/zhur/errors"
)

func peerCredentials(*net.UnixConn) (PeerCred, error) {
	return PeerCred{}, errors.Unsupported(errors.PhaseTransport, "peer credentials on this platform")
}

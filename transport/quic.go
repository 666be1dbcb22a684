package transport

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"os"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/wippyai/zhur/errors"
)

// ALPN is the application protocol negotiated on QUIC endpoints.
const ALPN = "zhur-ipc"

const streamAcceptTimeout = 5 * time.Second

func quicConfig() *quic.Config {
	return &quic.Config{
		KeepAlivePeriod: 15 * time.Second,
		MaxIdleTimeout:  time.Minute,
	}
}

// quicStream closes the whole QUIC connection with the stream, since each
// logical connection owns exactly one stream.
type quicStream struct {
	Stream
	closeConn func() error
}

func (s *quicStream) Close() error {
	_ = s.Stream.Close()
	return s.closeConn()
}

type quicListener struct {
	accept func(ctx context.Context) (Stream, error)
	close  func() error
	addr   string
}

func (l *quicListener) Accept(ctx context.Context) (Stream, error) { return l.accept(ctx) }

func (l *quicListener) Close() error { return l.close() }

func (l *quicListener) Addr() string { return l.addr }

func listenQUIC(addr string, opts Options) (Listener, error) {
	tlsConf, err := ServerTLS(opts)
	if err != nil {
		return nil, err
	}

	ln, err := quic.ListenAddr(addr, tlsConf, quicConfig())
	if err != nil {
		return nil, errors.IO("listen quic://"+addr, err)
	}

	accept := func(ctx context.Context) (Stream, error) {
		conn, err := ln.Accept(ctx)
		if err != nil {
			return nil, err
		}

		sctx, cancel := context.WithTimeout(ctx, streamAcceptTimeout)
		defer cancel()
		str, err := conn.AcceptStream(sctx)
		if err != nil {
			_ = conn.CloseWithError(0, "no stream opened")
			return nil, err
		}
		return &quicStream{
			Stream:    str,
			closeConn: func() error { return conn.CloseWithError(0, "") },
		}, nil
	}

	return &quicListener{
		accept: accept,
		close:  ln.Close,
		addr:   ln.Addr().String(),
	}, nil
}

func dialQUIC(ctx context.Context, addr string, opts Options) (Stream, error) {
	tlsConf, err := clientTLS(opts)
	if err != nil {
		return nil, err
	}

	conn, err := quic.DialAddr(ctx, addr, tlsConf, quicConfig())
	if err != nil {
		return nil, errors.IO("dial quic://"+addr, err)
	}
	str, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "")
		return nil, errors.IO("open quic stream", err)
	}
	return &quicStream{
		Stream:    str,
		closeConn: func() error { return conn.CloseWithError(0, "") },
	}, nil
}

func quicClosed(err error) bool {
	var (
		appErr    *quic.ApplicationError
		idleErr   *quic.IdleTimeoutError
		streamErr *quic.StreamError
	)
	return errors.As(err, &appErr) || errors.As(err, &idleErr) || errors.As(err, &streamErr)
}

// ServerTLS loads the configured key pair, or self-signs one for localhost.
// NextProtos is set for the zhur ALPN; HTTP/3 servers must replace it.
func ServerTLS(opts Options) (*tls.Config, error) {
	var cert tls.Certificate
	var err error
	if opts.CertFile != "" {
		cert, err = tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "load quic key pair")
		}
	} else {
		cert, err = selfSigned()
		if err != nil {
			return nil, err
		}
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ALPN},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

func clientTLS(opts Options) (*tls.Config, error) {
	conf := &tls.Config{
		NextProtos: []string{ALPN},
		MinVersion: tls.VersionTLS13,
	}
	if opts.CertFile == "" {
		conf.InsecureSkipVerify = true
		return conf, nil
	}

	pem, err := os.ReadFile(opts.CertFile)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read quic certificate")
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.InvalidInput(errors.PhaseConfig, "no certificate in "+opts.CertFile)
	}
	conf.RootCAs = pool
	return conf, nil
}

func selfSigned() (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, errors.Wrap(errors.PhaseTransport, errors.KindIO, err, "generate key")
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return tls.Certificate{}, errors.Wrap(errors.PhaseTransport, errors.KindIO, err, "generate serial")
	}

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "zhur"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, errors.Wrap(errors.PhaseTransport, errors.KindIO, err, "self-sign certificate")
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, nil
}

func quicListenerClosed(err error) bool {
	return errors.Is(err, quic.ErrServerClosed)
}

package gate

import (
	"context"
	"crypto/tls"
	"net/http"

	"github.com/quic-go/quic-go/http3"
	"go.uber.org/zap"
)

// ServeHTTP3 serves h over HTTP/3 on addr until ctx ends.
func ServeHTTP3(ctx context.Context, addr string, tlsConf *tls.Config, h http.Handler) error {
	srv := &http3.Server{
		Addr:      addr,
		TLSConfig: http3.ConfigureTLSConfig(tlsConf),
		Handler:   h,
	}
	stop := context.AfterFunc(ctx, func() { _ = srv.Close() })
	defer stop()

	Logger().Info("serving http/3", zap.String("addr", addr))
	err := srv.ListenAndServe()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// AdvertiseHTTP3 adds the Alt-Svc header pointing HTTP/1 and HTTP/2
// clients at the HTTP/3 listener.
func AdvertiseHTTP3(h http.Handler, port int) http.Handler {
	srv := &http3.Server{Port: port}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = srv.SetQUICHeaders(w.Header())
		h.ServeHTTP(w, r)
	})
}

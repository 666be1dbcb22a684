package gate

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/zhur/message"
	"github.com/wippyai/zhur/transport"
)

// DefaultMaxBody caps request bodies.
const DefaultMaxBody = 8 << 20

// FailureHeader carries the failure kind of an unsuccessful invocation.
const FailureHeader = "X-Zhur-Failure"

// Invoker runs one invocation. *pool.Pool and *RemoteCore implement it.
type Invoker interface {
	Invoke(ctx context.Context, inv message.Invocation) (message.Reply, error)
}

// RemoteCore invokes apps on a core over the transport.
type RemoteCore struct {
	client *transport.Client
}

func NewRemoteCore(ep transport.Endpoint, opts transport.Options) *RemoteCore {
	return &RemoteCore{client: transport.NewClient(ep, opts)}
}

func (r *RemoteCore) Invoke(ctx context.Context, inv message.Invocation) (message.Reply, error) {
	var rep message.Reply
	err := r.client.Call(ctx, inv, &rep)
	return rep, err
}

func (r *RemoteCore) Close() error { return r.client.Close() }

// StatusFor maps a failure class to an HTTP status.
func StatusFor(c message.Class) int {
	switch c {
	case message.ClassNone:
		return http.StatusOK
	case message.ClassNotFound:
		return http.StatusNotFound
	case message.ClassTrapped:
		return http.StatusInternalServerError
	case message.ClassUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// Handler serves POST /{owner}/{app}: the body becomes the payload and the
// app's output becomes the response body.
func Handler(inv Invoker, maxBody int64) http.Handler {
	if maxBody <= 0 {
		maxBody = DefaultMaxBody
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /{owner}/{app}", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		owner, app := r.PathValue("owner"), r.PathValue("app")

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
		if err != nil {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}

		rep, err := inv.Invoke(r.Context(), message.Invocation{Owner: owner, AppName: app, Payload: body})
		if err != nil {
			rep = message.FromError(err)
		}

		log := Logger().With(
			zap.String("owner", owner),
			zap.String("app", app),
			zap.Int("payload", len(body)),
			zap.Duration("elapsed", time.Since(start)))

		if !rep.OK() {
			status := StatusFor(rep.Err.Class())
			log.Info("invocation failed", zap.Int("status", status), zap.Error(rep.Err))
			w.Header().Set(FailureHeader, string(rep.Err.Kind))
			http.Error(w, rep.Err.Error(), status)
			return
		}

		log.Debug("invocation served", zap.Int("output", len(rep.Output)))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.Itoa(len(rep.Output)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(rep.Output)
	})
	return mux
}

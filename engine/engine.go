package engine

import (
	"bytes"
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	wapc "github.com/wapc/wapc-go"
	wapcwazero "github.com/wapc/wapc-go/engines/wazero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapio"

	"github.com/wippyai/zhur/errors"
)

// HostFunc services a guest's host call.
type HostFunc func(ctx context.Context, namespace, operation string, payload []byte) ([]byte, error)

// Loader turns guest code into a ready sandbox.
type Loader interface {
	Load(ctx context.Context, code []byte, host HostFunc) (Sandbox, error)
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per sandbox in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32
}

// Engine loads guests with a fresh wazero runtime per sandbox, so sandboxes
// share nothing and can live on different goroutines.
type Engine struct {
	cfg Config
}

// New creates an engine.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

// Load compiles and instantiates code. host receives every __host_call the
// guest makes.
func (e *Engine) Load(ctx context.Context, code []byte, host HostFunc) (Sandbox, error) {
	if !bytes.HasPrefix(code, wasmMagic) {
		return nil, errors.Load("code is not a WebAssembly module", nil)
	}

	log := Logger()
	stdout := &zapio.Writer{Log: log.Named("guest"), Level: zap.InfoLevel}
	stderr := &zapio.Writer{Log: log.Named("guest"), Level: zap.WarnLevel}

	eng := wapcwazero.EngineWithRuntime(e.newRuntime)
	mod, err := eng.New(ctx, hostCallHandler(host), code, &wapc.ModuleConfig{
		Logger: func(msg string) { log.Info(msg, zap.String("source", "console")) },
		Stdout: stdout,
		Stderr: stderr,
	})
	if err != nil {
		_ = stdout.Close()
		_ = stderr.Close()
		return nil, errors.Load("compile guest", err)
	}

	inst, err := mod.Instantiate(ctx)
	if err != nil {
		_ = mod.Close(ctx)
		_ = stdout.Close()
		_ = stderr.Close()
		return nil, errors.Instantiation(err)
	}

	debugf("sandbox loaded from %d bytes of code", len(code))
	return &wapcSandbox{
		module:   mod,
		instance: inst,
		flush:    []*zapio.Writer{stdout, stderr},
	}, nil
}

func (e *Engine) newRuntime(ctx context.Context) (wazero.Runtime, error) {
	cfg := wazero.NewRuntimeConfig()
	if e.cfg.MemoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(e.cfg.MemoryLimitPages)
	}

	r := wazero.NewRuntimeWithConfig(ctx, cfg)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, err
	}
	return r, nil
}

func hostCallHandler(host HostFunc) wapc.HostCallHandler {
	return func(ctx context.Context, binding, namespace, operation string, payload []byte) ([]byte, error) {
		if host == nil {
			return nil, errors.Unsupported(errors.PhaseHost, "host calls")
		}
		if binding != "" {
			debugf("host call binding %q ignored", binding)
		}
		return host(ctx, namespace, operation, payload)
	}
}

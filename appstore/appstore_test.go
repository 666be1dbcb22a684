package appstore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wippyai/zhur/errors"
	"github.com/wippyai/zhur/message"
	"github.com/wippyai/zhur/transport"
)

func writeApp(t *testing.T, root, owner, file string, data []byte) {
	t.Helper()
	dir := filepath.Join(root, owner)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, file), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseFileName(t *testing.T) {
	tests := []struct {
		file     string
		name     string
		version  string
		encoding string
		ok       bool
	}{
		{file: "echo.wasm", name: "echo", version: "0.0.0", ok: true},
		{file: "echo@1.2.3.wasm", name: "echo", version: "1.2.3", ok: true},
		{file: "echo@1.2.3.wasm.br", name: "echo", version: "1.2.3", encoding: "br", ok: true},
		{file: "echo.wasm.br", name: "echo", version: "0.0.0", encoding: "br", ok: true},
		{file: "echo@1.2.3-rc.1.wasm", name: "echo", version: "1.2.3-rc.1", ok: true},
		{file: "echo@v1.wasm"},
		{file: "echo@1.2.wasm"},
		{file: "@1.0.0.wasm"},
		{file: ".wasm"},
		{file: "echo.txt"},
		{file: "echo.br"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			name, v, enc, ok := parseFileName(tt.file)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if name != tt.name || v.String() != tt.version || enc != tt.encoding {
				t.Errorf("got (%q, %q, %q), want (%q, %q, %q)", name, v, enc, tt.name, tt.version, tt.encoding)
			}
		})
	}
}

func TestStore_Lookup(t *testing.T) {
	root := t.TempDir()
	writeApp(t, root, "zhur", "echo.wasm", []byte("v0"))
	writeApp(t, root, "zhur", "echo@1.0.0.wasm", []byte("v1"))
	writeApp(t, root, "zhur", "echo@1.10.0.wasm", []byte("v1.10"))
	writeApp(t, root, "zhur", "echo@1.9.0.wasm", []byte("v1.9"))
	writeApp(t, root, "zhur", "off.wasm", []byte("off"))
	writeApp(t, root, "zhur", "off.disabled", nil)
	writeApp(t, root, "zhur", "notes.txt", []byte("ignored"))

	s, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	tests := []struct {
		owner, app string
		found      bool
		code       string
		version    string
	}{
		{owner: "zhur", app: "echo", found: true, code: "v1.10", version: "1.10.0"},
		{owner: "zhur", app: "off"},
		{owner: "zhur", app: "ghost"},
		{owner: "nobody", app: "echo"},
	}
	for _, tt := range tests {
		t.Run(tt.owner+"/"+tt.app, func(t *testing.T) {
			rep, err := s.Lookup(tt.owner, tt.app)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if rep.Found != tt.found {
				t.Fatalf("Found = %v, want %v", rep.Found, tt.found)
			}
			if tt.found && (string(rep.Code) != tt.code || rep.Version != tt.version) {
				t.Errorf("got %q@%s, want %q@%s", rep.Code, rep.Version, tt.code, tt.version)
			}
		})
	}

	apps := s.Apps("zhur")
	if len(apps) != 2 || apps[0].Name != "echo" || apps[1].Name != "off" || !apps[1].Disabled {
		t.Errorf("Apps = %+v", apps)
	}
}

func TestStore_PlainBeatsCompressedAtSameVersion(t *testing.T) {
	root := t.TempDir()
	br, err := Compress([]byte("packed"))
	if err != nil {
		t.Fatal(err)
	}
	writeApp(t, root, "zhur", "echo@1.0.0.wasm.br", br)
	writeApp(t, root, "zhur", "echo@1.0.0.wasm", []byte("plain"))

	s, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}
	rep, _ := s.Lookup("zhur", "echo")
	if rep.Encoding != "" || string(rep.Code) != "plain" {
		t.Errorf("got %q encoding %q", rep.Code, rep.Encoding)
	}
}

func TestStore_ResolveDecodesBrotli(t *testing.T) {
	root := t.TempDir()
	code := bytes.Repeat([]byte("\x00asm module body "), 64)
	br, err := Compress(code)
	if err != nil {
		t.Fatal(err)
	}
	if len(br) >= len(code) {
		t.Fatalf("compressed %d bytes to %d", len(code), len(br))
	}
	writeApp(t, root, "zhur", "big@2.0.0.wasm.br", br)

	s, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Resolve(context.Background(), "zhur", "big")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !bytes.Equal(got, code) {
		t.Error("decoded code differs")
	}

	_, err = s.Resolve(context.Background(), "zhur", "ghost")
	if !errors.HasKind(err, errors.KindAppNotFound) {
		t.Errorf("err = %v, want app_not_found", err)
	}
}

func TestDecode(t *testing.T) {
	if _, err := Decode([]byte("junk"), message.EncodingBrotli); !errors.HasKind(err, errors.KindEncoding) {
		t.Errorf("corrupt brotli: err = %v", err)
	}
	if _, err := Decode([]byte("x"), "gzip"); !errors.HasKind(err, errors.KindEncoding) {
		t.Errorf("unknown encoding: err = %v", err)
	}
	if got, err := Decode([]byte("x"), ""); err != nil || string(got) != "x" {
		t.Errorf("identity: %q, %v", got, err)
	}
}

func TestStore_Rescan(t *testing.T) {
	root := t.TempDir()
	writeApp(t, root, "zhur", "echo.wasm", []byte("v0"))
	writeApp(t, root, "zhur", "gone.wasm", []byte("g"))
	writeApp(t, root, "zhur", "hide.wasm", []byte("h"))
	writeApp(t, root, "zhur", "same.wasm", []byte("s"))

	s, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}

	writeApp(t, root, "zhur", "echo@1.0.0.wasm", []byte("v1"))
	if err := os.Remove(filepath.Join(root, "zhur", "gone.wasm")); err != nil {
		t.Fatal(err)
	}
	writeApp(t, root, "zhur", "hide.disabled", nil)
	writeApp(t, root, "zhur", "fresh.wasm", []byte("f"))

	events, err := s.Rescan()
	if err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	want := []message.AppEvent{
		{Kind: message.AppUpdate, Owner: "zhur", AppName: "echo"},
		{Kind: message.AppRemove, Owner: "zhur", AppName: "gone"},
		{Kind: message.AppRemove, Owner: "zhur", AppName: "hide"},
	}
	if len(events) != len(want) {
		t.Fatalf("events = %+v, want %+v", events, want)
	}
	for i := range want {
		if events[i].Kind != want[i].Kind || events[i].Owner != want[i].Owner || events[i].AppName != want[i].AppName {
			t.Errorf("event %d = %+v, want %+v", i, events[i], want[i])
		}
	}

	events, err = s.Rescan()
	if err != nil || len(events) != 0 {
		t.Errorf("second rescan: %+v, %v", events, err)
	}
}

func TestOpen_MissingRoot(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "absent")); !errors.HasKind(err, errors.KindLoad) {
		t.Errorf("err = %v, want load", err)
	}
}

func TestStore_Watch(t *testing.T) {
	root := t.TempDir()
	writeApp(t, root, "zhur", "echo.wasm", []byte("v0"))
	s, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan message.AppEvent, 8)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, func(ev message.AppEvent) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
	}()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Watch: %v", err)
		}
	}()

	// the watcher may not be registered yet; keep touching until it reports
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for i := 1; ; i++ {
		select {
		case ev := <-events:
			if ev.Kind != message.AppUpdate || ev.AppName != "echo" {
				t.Fatalf("event = %+v", ev)
			}
			if !bytes.HasPrefix(ev.Code, []byte("v1")) {
				t.Errorf("code = %q", ev.Code)
			}
			return
		case <-tick.C:
			writeApp(t, root, "zhur", "echo@1.0.0.wasm", bytes.Repeat([]byte("v1"), i))
		case <-deadline:
			t.Fatal("no event from watcher")
		}
	}
}

func TestClient_Resolve(t *testing.T) {
	root := t.TempDir()
	br, err := Compress([]byte("module"))
	if err != nil {
		t.Fatal(err)
	}
	writeApp(t, root, "zhur", "echo@1.0.0.wasm.br", br)
	s, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}

	dir, err := os.MkdirTemp("", "zhur")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	ep := transport.Endpoint{Network: transport.NetworkUnix, Address: filepath.Join(dir, "apst.sock")}

	ctx, cancel := context.WithCancel(context.Background())
	ln, err := transport.Listen(ctx, ep, transport.Options{})
	if err != nil {
		cancel()
		t.Fatal(err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = transport.Serve(ctx, ln, s.Handle)
	}()
	defer func() { cancel(); <-done }()

	c := NewClient(ep, transport.Options{DialTimeout: time.Second, RequestTimeout: time.Second})
	defer c.Close()

	code, err := c.Resolve(context.Background(), "zhur", "echo")
	if err != nil || string(code) != "module" {
		t.Fatalf("Resolve = %q, %v", code, err)
	}
	if _, err := c.Resolve(context.Background(), "zhur", "ghost"); !errors.HasKind(err, errors.KindAppNotFound) {
		t.Errorf("missing app: err = %v", err)
	}
}

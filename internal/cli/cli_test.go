package cli

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/zhur/errors"
)

func TestFail(t *testing.T) {
	var out bytes.Buffer
	old := stderr
	stderr = &out
	defer func() { stderr = old }()

	core, logs := observer.New(zapcore.ErrorLevel)
	log := zap.New(core)

	cause := errors.IO("listen", errors.New(errors.PhaseTransport, errors.KindIO).Build())
	if code := Fail(log, "core failed", cause); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.HasPrefix(out.String(), "Error: ") {
		t.Errorf("stderr = %q", out.String())
	}

	entries := logs.FilterMessage("core failed").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d entries, want 1", len(entries))
	}
	if _, ok := entries[0].ContextMap()["error"]; !ok {
		t.Error("error field missing")
	}
}

func TestFail_WithoutLogger(t *testing.T) {
	var out bytes.Buffer
	old := stderr
	stderr = &out
	defer func() { stderr = old }()

	if code := Fail(nil, "", errors.IO("read stdin", nil)); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if out.Len() == 0 {
		t.Error("nothing printed")
	}
}

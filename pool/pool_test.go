package pool

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wippyai/zhur/engine"
	"github.com/wippyai/zhur/errors"
	"github.com/wippyai/zhur/executor"
	"github.com/wippyai/zhur/message"
)

// fakeLoader builds sandboxes that answer "<code>:<payload>". When gate is
// set, every call consumes one token from it first.
type fakeLoader struct {
	gate  chan struct{}
	loads atomic.Int32
}

func (l *fakeLoader) Load(_ context.Context, code []byte, _ engine.HostFunc) (engine.Sandbox, error) {
	if string(code) == "bad" {
		return nil, errors.Load("bad code", nil)
	}
	l.loads.Add(1)
	return &fakeSandbox{code: string(code), gate: l.gate}, nil
}

type fakeSandbox struct {
	code string
	gate chan struct{}
}

func (s *fakeSandbox) Call(_ context.Context, _ string, payload []byte) engine.Outcome {
	if s.gate != nil {
		<-s.gate
	}
	if strings.Contains(s.code, "trap") {
		return engine.Trapped("boom in " + s.code)
	}
	return engine.Success([]byte(s.code + ":" + string(payload)))
}

func (s *fakeSandbox) Close(context.Context) error { return nil }

// fakeCodes knows every app except the ones owned by "nobody".
type fakeCodes struct {
	resolves atomic.Int32
}

func (c *fakeCodes) Resolve(_ context.Context, owner, app string) ([]byte, error) {
	c.resolves.Add(1)
	if owner == "nobody" {
		return nil, errors.AppNotFound(owner, app)
	}
	return []byte(owner + "/" + app), nil
}

type harness struct {
	t      *testing.T
	pool   *Pool
	loader *fakeLoader
	codes  *fakeCodes
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	decisions []Decision
}

func start(t *testing.T, maxExec, maxOut int, gated bool) *harness {
	t.Helper()

	h := &harness{t: t, loader: &fakeLoader{}, codes: &fakeCodes{}, done: make(chan struct{})}
	if gated {
		h.loader.gate = make(chan struct{}, 1024)
	}
	h.pool = New(Config{
		MaxExecutors:   maxExec,
		MaxOutstanding: maxOut,
		Codes:          h.codes,
		Executor:       executor.Config{Loader: h.loader, JoinTimeout: 5 * time.Second},
	})
	h.pool.trace = func(_ message.Invocation, d Decision) {
		h.mu.Lock()
		h.decisions = append(h.decisions, d)
		h.mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		defer close(h.done)
		_ = h.pool.Run(ctx)
	}()
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	h.cancel()
	if h.loader.gate != nil {
		h.release(1000)
	}
	<-h.done
}

func (h *harness) release(n int) {
	for range n {
		select {
		case h.loader.gate <- struct{}{}:
		default:
		}
	}
}

func (h *harness) invoke(owner, app, payload string) message.Reply {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rep, err := h.pool.Invoke(ctx, message.Invocation{Owner: owner, AppName: app, Payload: []byte(payload)})
	if err != nil {
		h.t.Fatalf("Invoke %s/%s: %v", owner, app, err)
	}
	return rep
}

func (h *harness) invokeAsync(owner, app, payload string) <-chan message.Reply {
	ch := make(chan message.Reply, 1)
	go func() {
		rep, err := h.pool.Invoke(context.Background(), message.Invocation{Owner: owner, AppName: app, Payload: []byte(payload)})
		if err != nil {
			rep = message.FromError(err)
		}
		ch <- rep
	}()
	return ch
}

func (h *harness) stats() Stats {
	h.t.Helper()
	s, err := h.pool.Stats(context.Background())
	if err != nil {
		h.t.Fatalf("Stats: %v", err)
	}
	return s
}

func (h *harness) waitFor(what string, cond func(Stats) bool) {
	h.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond(h.stats()) {
		if time.Now().After(deadline) {
			h.t.Fatalf("timed out waiting for %s, stats %+v", what, h.stats())
		}
		time.Sleep(time.Millisecond)
	}
}

func (h *harness) idle() {
	h.t.Helper()
	h.waitFor("idle pool", func(s Stats) bool { return s.Busy == 0 && s.Queued == 0 })
}

func (h *harness) lastDecision() Decision {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.decisions[len(h.decisions)-1]
}

func (h *harness) sawDecision(d Decision) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, got := range h.decisions {
		if got == d {
			return true
		}
	}
	return false
}

func wantOutput(t *testing.T, rep message.Reply, want string) {
	t.Helper()
	if !rep.OK() {
		t.Fatalf("failure: %v", rep.Err)
	}
	if string(rep.Output) != want {
		t.Errorf("output = %q, want %q", rep.Output, want)
	}
}

func recv(t *testing.T, ch <-chan message.Reply) message.Reply {
	t.Helper()
	select {
	case rep := <-ch:
		return rep
	case <-time.After(5 * time.Second):
		t.Fatal("no reply")
		return message.Reply{}
	}
}

type fakeSlot struct {
	free       bool
	owner, app string
}

func (s fakeSlot) Free() bool { return s.free }

func (s fakeSlot) Matches(owner, app string) bool { return s.owner == owner && s.app == app }

func TestDecide(t *testing.T) {
	busyX := fakeSlot{false, "o", "x"}
	freeX := fakeSlot{true, "o", "x"}
	freeY := fakeSlot{true, "o", "y"}
	busyY := fakeSlot{false, "o", "y"}

	tests := []struct {
		name  string
		slots []fakeSlot
		limit int
		want  Decision
	}{
		{"empty pool spawns", nil, 2, Decision{SpawnNew, 0}},
		{"lowest free match", []fakeSlot{busyX, freeY, freeX, freeX}, 4, Decision{Forward, 2}},
		{"forward beats spawn", []fakeSlot{freeX}, 3, Decision{Forward, 0}},
		{"spawn beats replace", []fakeSlot{busyX, freeY}, 3, Decision{SpawnNew, 2}},
		{"replace first free", []fakeSlot{busyX, busyY, freeY, freeY}, 4, Decision{Replace, 2}},
		{"busy match is not forwarded", []fakeSlot{busyX, freeY}, 2, Decision{Replace, 1}},
		{"full and busy", []fakeSlot{busyX, busyY}, 2, Decision{PutAway, -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decide(tt.slots, tt.limit, "o", "x"); got != tt.want {
				t.Errorf("decide = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecide_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	apps := []string{"a", "b", "c"}

	for range 2000 {
		limit := 1 + rng.Intn(5)
		slots := make([]fakeSlot, rng.Intn(limit+1))
		for i := range slots {
			slots[i] = fakeSlot{free: rng.Intn(2) == 0, owner: "o", app: apps[rng.Intn(len(apps))]}
		}
		app := apps[rng.Intn(len(apps))]
		d := decide(slots, limit, "o", app)

		first := -1
		for i, s := range slots {
			if s.free && s.app == app {
				first = i
				break
			}
		}
		if first >= 0 && (d.Action != Forward || d.Index != first) {
			t.Fatalf("slots %+v app %s: decision %+v, want forward to %d", slots, app, d, first)
		}
		if d.Action == SpawnNew && len(slots) >= limit {
			t.Fatalf("spawn with %d slots and limit %d", len(slots), limit)
		}
	}
}

// A second app arriving while the only executor is busy is put away, not
// swapped in.
func TestPool_PutAwayWhenFull(t *testing.T) {
	h := start(t, 1, 16, true)

	x := h.invokeAsync("o", "x", "1")
	h.waitFor("x to run", func(s Stats) bool { return s.Busy == 1 })

	y := h.invokeAsync("o", "y", "2")
	h.waitFor("y to queue", func(s Stats) bool { return s.Queued == 1 })
	if d := h.lastDecision(); d.Action != PutAway {
		t.Fatalf("decision for y = %+v, want put_away", d)
	}

	h.release(2)
	wantOutput(t, recv(t, x), "o/x:1")
	// the queue drains once x is done
	wantOutput(t, recv(t, y), "o/y:2")

	if s := h.stats(); s.Executors != 1 {
		t.Errorf("executors = %d, want 1", s.Executors)
	}
}

// An unknown app never touches the pool.
func TestPool_AppNotFound(t *testing.T) {
	h := start(t, 2, 16, false)

	rep := h.invoke("nobody", "ghost", "")
	if rep.OK() || rep.Err.Kind != message.FailureAppNotFound {
		t.Fatalf("reply = %+v, want app_not_found", rep)
	}
	if rep.Err.Class() != message.ClassNotFound {
		t.Errorf("class = %v", rep.Err.Class())
	}
	if s := h.stats(); s.Executors != 0 {
		t.Errorf("executors = %d, want 0", s.Executors)
	}
	if n := h.loader.loads.Load(); n != 0 {
		t.Errorf("loads = %d, want 0", n)
	}
}

// Replacing the code of a free executor moves it to the new app.
func TestPool_ReplaceSwitchesIdentity(t *testing.T) {
	h := start(t, 1, 16, false)

	wantOutput(t, h.invoke("o", "x", "a"), "o/x:a")
	h.idle()

	wantOutput(t, h.invoke("o", "y", "b"), "o/y:b")
	if d := h.lastDecision(); d != (Decision{Replace, 0}) {
		t.Errorf("decision = %+v, want replace 0", d)
	}
	h.idle()

	wantOutput(t, h.invoke("o", "y", "c"), "o/y:c")
	if d := h.lastDecision(); d != (Decision{Forward, 0}) {
		t.Errorf("decision = %+v, want forward 0", d)
	}
	h.idle()

	wantOutput(t, h.invoke("o", "x", "d"), "o/x:d")
	if d := h.lastDecision(); d != (Decision{Replace, 0}) {
		t.Errorf("old identity should no longer match, decision = %+v", d)
	}
}

func TestPool_ForwardsToLowestIndex(t *testing.T) {
	h := start(t, 3, 16, true)

	var replies []<-chan message.Reply
	for range 3 {
		replies = append(replies, h.invokeAsync("o", "x", "p"))
		h.waitFor("spawn", func(s Stats) bool { return s.Busy == len(replies) })
	}
	if s := h.stats(); s.Executors != 3 {
		t.Fatalf("executors = %d, want 3", s.Executors)
	}

	h.release(3)
	for _, ch := range replies {
		wantOutput(t, recv(t, ch), "o/x:p")
	}
	h.idle()

	for range 3 {
		h.release(1)
		wantOutput(t, h.invoke("o", "x", "q"), "o/x:q")
		if d := h.lastDecision(); d != (Decision{Forward, 0}) {
			t.Fatalf("decision = %+v, want forward 0", d)
		}
		h.idle()
	}
}

func TestPool_SizeInvariantUnderLoad(t *testing.T) {
	const limit = 2
	h := start(t, limit, 1024, true)

	apps := []string{"a", "b", "c", "d", "e"}
	type pending struct {
		app string
		ch  <-chan message.Reply
	}
	var all []pending
	for i := range 40 {
		app := apps[i%len(apps)]
		all = append(all, pending{app, h.invokeAsync("o", app, "n")})
	}

	go func() {
		for range 40 {
			h.release(1)
			time.Sleep(time.Millisecond)
		}
	}()

	for _, p := range all {
		// the reply proves the right code was loaded for each invocation
		wantOutput(t, recv(t, p.ch), "o/"+p.app+":n")
		if s := h.stats(); s.Executors > limit {
			t.Fatalf("executors = %d exceeds limit %d", s.Executors, limit)
		}
	}
}

func TestPool_Saturated(t *testing.T) {
	h := start(t, 1, 1, true)

	x := h.invokeAsync("o", "x", "")
	h.waitFor("x to run", func(s Stats) bool { return s.Busy == 1 })
	y := h.invokeAsync("o", "y", "")
	h.waitFor("y to queue", func(s Stats) bool { return s.Queued == 1 })

	rep := h.invoke("o", "z", "")
	if rep.OK() || rep.Err.Kind != message.FailurePoolSaturated {
		t.Fatalf("reply = %+v, want pool_saturated", rep)
	}
	if rep.Err.Class() != message.ClassUnavailable {
		t.Errorf("class = %v", rep.Err.Class())
	}

	h.release(2)
	recv(t, x)
	recv(t, y)
}

// A trap is a reply, and the slot comes back.
func TestPool_TrapFreesExecutor(t *testing.T) {
	h := start(t, 1, 16, false)

	rep := h.invoke("o", "trap", "")
	if rep.OK() || rep.Err.Kind != message.FailureTrap {
		t.Fatalf("reply = %+v, want trap", rep)
	}
	h.idle()
	wantOutput(t, h.invoke("o", "x", "after"), "o/x:after")
}

func TestPool_ShutdownAnswersQueue(t *testing.T) {
	h := start(t, 1, 16, true)

	x := h.invokeAsync("o", "x", "")
	h.waitFor("x to run", func(s Stats) bool { return s.Busy == 1 })
	y := h.invokeAsync("o", "y", "")
	h.waitFor("y to queue", func(s Stats) bool { return s.Queued == 1 })

	h.cancel()
	rep := recv(t, y)
	if rep.OK() || rep.Err.Kind != message.FailureShuttingDown {
		t.Fatalf("queued reply = %+v, want shutting_down", rep)
	}

	// the running invocation finishes before its executor is joined
	h.release(1)
	wantOutput(t, recv(t, x), "o/x:")
	<-h.done

	if _, err := h.pool.Invoke(context.Background(), message.Invocation{Owner: "o", AppName: "x"}); !errors.HasKind(err, errors.KindBridgeClosed) {
		t.Errorf("Invoke after shutdown err = %v, want bridge_closed", err)
	}
}

func TestPool_ShutdownKeepsInFlightReply(t *testing.T) {
	h := start(t, 1, 16, true)

	x := h.invokeAsync("o", "x", "late")
	h.waitFor("x to run", func(s Stats) bool { return s.Busy == 1 })

	h.cancel()
	// Run is gone but the executor still holds the envelope
	time.Sleep(20 * time.Millisecond)
	h.release(1)

	wantOutput(t, recv(t, x), "o/x:late")
	<-h.done
}

func TestPool_Notify(t *testing.T) {
	ctx := context.Background()
	h := start(t, 2, 16, false)

	wantOutput(t, h.invoke("o", "x", "1"), "o/x:1")
	h.idle()

	t.Run("update", func(t *testing.T) {
		n, err := h.pool.Notify(ctx, message.AppEvent{Kind: message.AppUpdate, Owner: "o", AppName: "x", Code: []byte("v2")})
		if err != nil || n != 1 {
			t.Fatalf("Notify = (%d, %v)", n, err)
		}
		wantOutput(t, h.invoke("o", "x", "2"), "v2:2")
		h.idle()
	})

	t.Run("update without holders", func(t *testing.T) {
		n, err := h.pool.Notify(ctx, message.AppEvent{Kind: message.AppUpdate, Owner: "o", AppName: "none"})
		if err != nil || n != 0 {
			t.Fatalf("Notify = (%d, %v)", n, err)
		}
	})

	t.Run("rename", func(t *testing.T) {
		before := h.codes.resolves.Load()
		n, err := h.pool.Notify(ctx, message.AppEvent{Kind: message.AppRename, Owner: "o", AppName: "x", NewName: "x2"})
		if err != nil || n != 1 {
			t.Fatalf("Notify = (%d, %v)", n, err)
		}
		wantOutput(t, h.invoke("o", "x2", "3"), "v2:3")
		if d := h.lastDecision(); d != (Decision{Forward, 0}) {
			t.Errorf("decision = %+v, want forward 0", d)
		}
		if h.codes.resolves.Load() != before {
			t.Error("rename should not fetch code")
		}
		h.idle()
	})

	t.Run("remove", func(t *testing.T) {
		n, err := h.pool.Notify(ctx, message.AppEvent{Kind: message.AppRemove, Owner: "o", AppName: "x2"})
		if err != nil || n != 1 {
			t.Fatalf("Notify = (%d, %v)", n, err)
		}
		// the retired slot no longer matches, a second slot is spawned
		wantOutput(t, h.invoke("o", "x2", "4"), "o/x2:4")
		if d := h.lastDecision(); d != (Decision{SpawnNew, 1}) {
			t.Errorf("decision = %+v, want spawn 1", d)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := h.pool.Notify(ctx, message.AppEvent{Kind: "explode", Owner: "o", AppName: "x"}); err == nil {
			t.Error("unknown event should fail")
		}
	})
}

func TestPool_Preload(t *testing.T) {
	ctx := context.Background()
	h := start(t, 1, 16, false)

	if err := h.pool.Preload(ctx, "o", "x"); err != nil {
		t.Fatalf("Preload: %v", err)
	}
	if s := h.stats(); s.Executors != 1 || s.Busy != 0 {
		t.Errorf("stats = %+v", s)
	}

	wantOutput(t, h.invoke("o", "x", "p"), "o/x:p")
	if d := h.lastDecision(); d != (Decision{Forward, 0}) {
		t.Errorf("decision = %+v, want forward 0", d)
	}

	if err := h.pool.Preload(ctx, "o", "y"); !errors.HasKind(err, errors.KindPoolSaturated) {
		t.Errorf("Preload into full pool err = %v", err)
	}
	if err := h.pool.Preload(ctx, "nobody", "ghost"); err == nil {
		t.Error("Preload of unknown app should fail")
	}
}

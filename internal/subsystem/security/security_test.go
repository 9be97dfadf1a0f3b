package security

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-client/internal/listener"
	"github.com/nerrad567/gray-logic-client/internal/model"
	"github.com/nerrad567/gray-logic-client/internal/platform"
	"github.com/nerrad567/gray-logic-client/internal/subsystem"
)

const (
	subAddr model.Address = "SERV:subsecurity:p1"
	door    model.Address = "DRIV:dev:d1"
	window  model.Address = "DRIV:dev:d2"
	motion  model.Address = "DRIV:dev:d3"
)

// MockRequester is a test implementation of Requester.
type MockRequester struct {
	mu        sync.Mutex
	responses map[string]map[string]any
	errs      map[string]error
	calls     []requestCall
}

type requestCall struct {
	dest    model.Address
	msgType string
	attrs   map[string]any
}

func NewMockRequester() *MockRequester {
	return &MockRequester{
		responses: make(map[string]map[string]any),
		errs:      make(map[string]error),
	}
}

func (m *MockRequester) Request(_ context.Context, dest model.Address, msgType string, attrs map[string]any) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, requestCall{dest: dest, msgType: msgType, attrs: attrs})
	if err := m.errs[msgType]; err != nil {
		return nil, err
	}
	return m.responses[msgType], nil
}

func (m *MockRequester) requests() []requestCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]requestCall(nil), m.calls...)
}

// recordingCallback is a test Callback.
type recordingCallback struct {
	mu      sync.Mutex
	views   []View
	ticks   []int
	prompts []Prompt
	errs    []error
}

func (r *recordingCallback) OnSecurityChanged(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

func (r *recordingCallback) OnArmingCountdown(remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, remaining)
}

func (r *recordingCallback) PromptUnsecured(p Prompt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, p)
}

func (r *recordingCallback) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recordingCallback) viewCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

func (r *recordingCallback) lastView() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.views) == 0 {
		return View{}
	}
	return r.views[len(r.views)-1]
}

func (r *recordingCallback) tickLog() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.ticks...)
}

// settle waits until no view has been delivered for a short while.
func (r *recordingCallback) settle() int {
	last := r.viewCount()
	for {
		time.Sleep(15 * time.Millisecond)
		n := r.viewCount()
		if n == last {
			return n
		}
		last = n
	}
}

type fixture struct {
	c     *Controller
	store *model.Store
	req   *MockRequester
	cb    *recordingCallback
}

func newFixture(t *testing.T, interval time.Duration) *fixture {
	t.Helper()

	attrs := map[model.Address]map[string]any{
		subAddr: {
			AttrAlarmState:      string(StateDisarmed),
			AttrAlarmMode:       string(ModeOff),
			AttrSecurityDevices: []any{string(door), string(window), string(motion)},
		},
		door:   {AttrDeviceName: "Front Door", AttrContact: "CLOSED", AttrConnState: "ONLINE"},
		window: {AttrDeviceName: "Back Window", AttrContact: "CLOSED", AttrConnState: "ONLINE"},
		motion: {AttrDeviceName: "Hall Motion", AttrMotion: "NONE", AttrConnState: "ONLINE"},
	}
	fetcher := model.FetcherFunc(func(_ context.Context, addr model.Address) (map[string]any, error) {
		a, ok := attrs[addr]
		if !ok {
			return nil, &platform.Error{Code: "NotFound"}
		}
		return a, nil
	})

	f := &fixture{store: model.NewStore(), req: NewMockRequester(), cb: &recordingCallback{}}
	f.c = New(Deps{
		Deps:              subsystem.Deps{Store: f.store, Fetcher: fetcher, Executor: listener.Inline},
		Requester:         f.req,
		CountdownInterval: interval,
	})
	f.c.SetCallback(f.cb)

	if err := f.c.BindPlace(context.Background(), "p1"); err != nil {
		t.Fatalf("BindPlace() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.cb.viewCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no view after binding")
		}
		time.Sleep(2 * time.Millisecond)
	}
	f.cb.settle()
	return f
}

func (f *fixture) push(addr model.Address, attrs map[string]any) {
	f.store.ApplyChange(addr, attrs)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestArm_CountsDownThirtyTicks(t *testing.T) {
	f := newFixture(t, time.Millisecond)
	f.req.responses[msgArm] = map[string]any{"delaySec": float64(30)}

	if err := f.c.Arm(context.Background(), ModeOn); err != nil {
		t.Fatalf("Arm() error = %v", err)
	}

	waitFor(t, "final tick", func() bool {
		ticks := f.cb.tickLog()
		return len(ticks) > 0 && ticks[len(ticks)-1] == 0
	})
	time.Sleep(20 * time.Millisecond)

	ticks := f.cb.tickLog()
	if len(ticks) != 30 {
		t.Fatalf("got %d ticks, want 30: %v", len(ticks), ticks)
	}
	for i, got := range ticks {
		if want := 29 - i; got != want {
			t.Errorf("tick %d = %d, want %d", i, got, want)
		}
	}
	if f.c.CountdownRemaining() != 0 {
		t.Errorf("CountdownRemaining() = %d after completion", f.c.CountdownRemaining())
	}

	calls := f.req.requests()
	if len(calls) != 1 || calls[0].dest != subAddr || calls[0].attrs["mode"] != "ON" {
		t.Errorf("requests = %+v", calls)
	}
}

func TestDisarm_CountdownCancelledByConfirmedState(t *testing.T) {
	f := newFixture(t, 10*time.Millisecond)
	f.req.responses[msgArm] = map[string]any{"delaySec": 30}

	f.c.Arm(context.Background(), ModeOn)
	waitFor(t, "two ticks", func() bool { return len(f.cb.tickLog()) >= 2 })

	if err := f.c.Disarm(context.Background()); err != nil {
		t.Fatalf("Disarm() error = %v", err)
	}
	if f.c.CountdownRemaining() == 0 {
		t.Fatal("disarm request cancelled the countdown before confirmation")
	}

	f.push(subAddr, map[string]any{AttrAlarmState: string(StateDisarmed)})
	time.Sleep(15 * time.Millisecond)

	delivered := len(f.cb.tickLog())
	time.Sleep(60 * time.Millisecond)

	ticks := f.cb.tickLog()
	if len(ticks) != delivered {
		t.Errorf("ticks after confirmed disarm: %v", ticks[delivered:])
	}
	if ticks[len(ticks)-1] == 0 {
		t.Error("countdown ran to completion")
	}
	if f.c.CountdownRemaining() != 0 {
		t.Errorf("CountdownRemaining() = %d after cancel", f.c.CountdownRemaining())
	}
}

func TestCountdownFollowsPushedState(t *testing.T) {
	tests := []struct {
		name  string
		next  State
		keeps bool
	}{
		{"armed supersedes", StateArmed, false},
		{"alert supersedes", StateAlert, false},
		{"clearing cancels", StateClearing, false},
		{"arming keeps running", StateArming, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, time.Hour)
			f.req.responses[msgArm] = map[string]any{"delaySec": 30}
			f.c.Arm(context.Background(), ModeOn)

			f.push(subAddr, map[string]any{AttrAlarmState: string(tt.next)})

			if running := f.c.CountdownRemaining() > 0; running != tt.keeps {
				t.Errorf("countdown running = %v, want %v", running, tt.keeps)
			}
		})
	}
}

func TestSyncArmingTimer(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)

	t.Run("resumes from advertised delay", func(t *testing.T) {
		f := newFixture(t, time.Hour)
		f.c.now = func() time.Time { return now }

		f.push(subAddr, map[string]any{
			AttrAlarmState:    string(StateArming),
			AttrAlarmMode:     string(ModeOn),
			AttrExitDelayOn:   30,
			AttrLastArmedTime: now.Add(-10 * time.Second).UnixMilli(),
		})
		if got := f.c.CountdownRemaining(); got != 20 {
			t.Fatalf("CountdownRemaining() = %d, want 20", got)
		}

		// A running countdown is not restarted
		f.push(subAddr, map[string]any{AttrExitDelayOn: 45})
		if got := f.c.CountdownRemaining(); got != 20 {
			t.Errorf("CountdownRemaining() = %d after second push, want 20", got)
		}
	})

	t.Run("partial mode uses partial delay", func(t *testing.T) {
		f := newFixture(t, time.Hour)
		f.c.now = func() time.Time { return now }

		f.push(subAddr, map[string]any{
			AttrAlarmState:       string(StateArming),
			AttrAlarmMode:        string(ModePartial),
			AttrExitDelayOn:      30,
			AttrExitDelayPartial: 15,
			AttrLastArmedTime:    now.UnixMilli(),
		})
		if got := f.c.CountdownRemaining(); got != 15 {
			t.Errorf("CountdownRemaining() = %d, want 15", got)
		}
	})

	t.Run("no advertised delay", func(t *testing.T) {
		f := newFixture(t, time.Hour)
		f.push(subAddr, map[string]any{AttrAlarmState: string(StateArming)})
		if got := f.c.CountdownRemaining(); got != 0 {
			t.Errorf("CountdownRemaining() = %d, want 0", got)
		}
	})

	t.Run("delay already elapsed", func(t *testing.T) {
		f := newFixture(t, time.Hour)
		f.c.now = func() time.Time { return now }
		f.push(subAddr, map[string]any{
			AttrAlarmState:    string(StateArming),
			AttrExitDelayOn:   30,
			AttrLastArmedTime: now.Add(-time.Minute).UnixMilli(),
		})
		if got := f.c.CountdownRemaining(); got != 0 {
			t.Errorf("CountdownRemaining() = %d, want 0", got)
		}
	})
}

func TestArm_TriggeredDevicesPromptsWithNames(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.req.errs[msgArm] = &platform.Error{
		Code:    CodeTriggeredDevices,
		Message: "doors or windows are open",
		Attributes: map[string]any{
			"triggeredDevices": []any{string(door), string(window)},
		},
	}

	err := f.c.Arm(context.Background(), ModeOn)
	if !errors.Is(err, ErrBypassRequired) {
		t.Fatalf("Arm() error = %v, want ErrBypassRequired", err)
	}
	if platform.CodeOf(err) != CodeTriggeredDevices {
		t.Errorf("CodeOf() = %q", platform.CodeOf(err))
	}

	f.cb.mu.Lock()
	defer f.cb.mu.Unlock()
	if len(f.cb.errs) != 0 {
		t.Errorf("OnError called: %v", f.cb.errs)
	}
	if len(f.cb.prompts) != 1 {
		t.Fatalf("prompts = %d, want 1", len(f.cb.prompts))
	}
	p := f.cb.prompts[0]
	if p.Mode != ModeOn || p.Reason != "doors or windows are open" {
		t.Errorf("prompt = %+v", p)
	}
	want := []string{"Front Door", "Back Window"}
	if fmt.Sprint(p.Devices) != fmt.Sprint(want) {
		t.Errorf("prompt devices = %v, want %v", p.Devices, want)
	}
}

func TestArm_TriggeredDevicesFallsBackToSubsystem(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.push(subAddr, map[string]any{AttrTriggeredDevices: []any{string(motion)}})
	f.req.errs[msgArm] = &platform.Error{Code: CodeTriggeredDevices}

	f.c.Arm(context.Background(), ModePartial)

	f.cb.mu.Lock()
	defer f.cb.mu.Unlock()
	if len(f.cb.prompts) != 1 || fmt.Sprint(f.cb.prompts[0].Devices) != "[Hall Motion]" {
		t.Errorf("prompts = %+v", f.cb.prompts)
	}
}

func TestArm_OtherFailuresGoToOnError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"other platform code", &platform.Error{Code: "InvalidState", Message: "already armed"}},
		{"transport failure", platform.ErrRequestTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, time.Hour)
			f.req.errs[msgArm] = tt.err

			err := f.c.Arm(context.Background(), ModeOn)
			if !errors.Is(err, tt.err) || errors.Is(err, ErrBypassRequired) {
				t.Fatalf("Arm() error = %v", err)
			}

			f.cb.mu.Lock()
			defer f.cb.mu.Unlock()
			if len(f.cb.prompts) != 0 {
				t.Error("PromptUnsecured called for a generic failure")
			}
			if len(f.cb.errs) != 1 || !errors.Is(f.cb.errs[0], tt.err) {
				t.Errorf("OnError calls = %v", f.cb.errs)
			}
		})
	}
}

func TestArm_RejectedLocally(t *testing.T) {
	t.Run("invalid mode", func(t *testing.T) {
		f := newFixture(t, time.Hour)
		if err := f.c.Arm(context.Background(), ModeOff); !errors.Is(err, ErrInvalidMode) {
			t.Errorf("Arm(OFF) error = %v, want ErrInvalidMode", err)
		}
		if len(f.req.requests()) != 0 {
			t.Error("request sent for an invalid mode")
		}
	})

	t.Run("not bound", func(t *testing.T) {
		c := New(Deps{
			Deps:      subsystem.Deps{Store: model.NewStore(), Fetcher: model.FetcherFunc(nil)},
			Requester: NewMockRequester(),
		})
		if err := c.Arm(context.Background(), ModeOn); !errors.Is(err, ErrNotBound) {
			t.Errorf("Arm() error = %v, want ErrNotBound", err)
		}
		if err := c.Disarm(context.Background()); !errors.Is(err, ErrNotBound) {
			t.Errorf("Disarm() error = %v, want ErrNotBound", err)
		}
	})
}

func TestArmBypassed_SendsBypassRequest(t *testing.T) {
	f := newFixture(t, time.Hour)
	if err := f.c.ArmBypassed(context.Background(), ModePartial); err != nil {
		t.Fatalf("ArmBypassed() error = %v", err)
	}
	calls := f.req.requests()
	if len(calls) != 1 || calls[0].msgType != msgArmBypassed || calls[0].attrs["mode"] != "PARTIAL" {
		t.Errorf("requests = %+v", calls)
	}
}

func TestView_RecomputesPartitions(t *testing.T) {
	f := newFixture(t, time.Hour)

	if v := f.c.View(); v.State != StateDisarmed || v.Mode != ModeOff || v.Devices != 3 {
		t.Fatalf("initial view = %+v", v)
	}

	f.push(motion, map[string]any{AttrConnState: ConnOffline})
	f.push(subAddr, map[string]any{
		AttrAlarmState:       string(StateArmed),
		AttrAlarmMode:        string(ModePartial),
		AttrArmedDevices:     []any{string(door), string(window), string(motion)},
		AttrBypassedDevices:  []any{string(window)},
		AttrTriggeredDevices: []any{string(door)},
	})

	v := f.cb.lastView()
	if v.State != StateArmed || v.Mode != ModePartial {
		t.Errorf("state = %s/%s", v.State, v.Mode)
	}
	if fmt.Sprint(v.Active) != "[Front Door]" || fmt.Sprint(v.Bypassed) != "[Back Window]" || fmt.Sprint(v.Offline) != "[Hall Motion]" {
		t.Errorf("partitions = active %v, bypassed %v, offline %v", v.Active, v.Bypassed, v.Offline)
	}
	if v.ArmedCount() != 3 || fmt.Sprint(v.Triggered) != "[Front Door]" {
		t.Errorf("armed = %d, triggered = %v", v.ArmedCount(), v.Triggered)
	}

	// The motion sensor reconnects; nothing is counted incrementally
	f.push(motion, map[string]any{AttrConnState: "ONLINE"})
	if v := f.cb.lastView(); len(v.Offline) != 0 || len(v.Active) != 2 {
		t.Errorf("after reconnect: active %v, offline %v", v.Active, v.Offline)
	}
}

func TestDevicePushesFilteredByStatus(t *testing.T) {
	f := newFixture(t, time.Hour)
	before := f.cb.settle()

	f.push(door, map[string]any{"dev:firmware": "2.0.1"})
	if got := f.cb.settle(); got != before {
		t.Errorf("views after irrelevant push = %d, want %d", got, before)
	}

	f.push(door, map[string]any{AttrContact: "OPENED"})
	if got := f.cb.settle(); got != before+1 {
		t.Errorf("views after contact push = %d, want %d", got, before+1)
	}
}

func TestSubsystemDeviceListChangeLoadsNewDevices(t *testing.T) {
	f := newFixture(t, time.Hour)

	f.push(subAddr, map[string]any{AttrSecurityDevices: []any{string(door)}})
	waitFor(t, "shrunk device list", func() bool { return f.cb.lastView().Devices == 1 })

	f.push(subAddr, map[string]any{AttrSecurityDevices: []any{string(door), string(window)}})
	waitFor(t, "grown device list", func() bool { return f.cb.lastView().Devices == 2 })
}

func TestIsStatusChanged(t *testing.T) {
	tests := []struct {
		keys []string
		want bool
	}{
		{[]string{AttrContact}, true},
		{[]string{AttrMotion}, true},
		{[]string{AttrGlass}, true},
		{[]string{AttrConnState, "dev:name"}, true},
		{[]string{"dev:name"}, false},
		{[]string{"devpow:battery"}, false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := IsStatusChanged(model.NewAttributeSet(tt.keys...)); got != tt.want {
			t.Errorf("IsStatusChanged(%v) = %v, want %v", tt.keys, got, tt.want)
		}
	}
}

func TestBindPlaceCancelsCountdown(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.req.responses[msgArm] = map[string]any{"delaySec": 30}
	f.c.Arm(context.Background(), ModeOn)

	f.c.BindPlace(context.Background(), "p2") //nolint:errcheck // p2 has no subsystem
	if f.c.CountdownRemaining() != 0 {
		t.Error("countdown survived a place change")
	}
}

func TestUnbind_StopsCountdown(t *testing.T) {
	f := newFixture(t, 10*time.Millisecond)
	f.req.responses[msgArm] = map[string]any{"delaySec": 30}

	if err := f.c.Arm(context.Background(), ModeOn); err != nil {
		t.Fatalf("Arm() error = %v", err)
	}
	waitFor(t, "first tick", func() bool { return len(f.cb.tickLog()) >= 1 })

	f.c.Unbind()
	time.Sleep(15 * time.Millisecond)
	delivered := len(f.cb.tickLog())
	time.Sleep(60 * time.Millisecond)

	if ticks := f.cb.tickLog(); len(ticks) != delivered {
		t.Errorf("ticks after unbind: %v", ticks[delivered:])
	}
	if f.c.CountdownRemaining() != 0 {
		t.Errorf("CountdownRemaining() = %d after unbind", f.c.CountdownRemaining())
	}

	// A late push for the old place does not restart it.
	f.push(subAddr, map[string]any{AttrAlarmState: string(StateArming), AttrExitDelayOn: 30})
	time.Sleep(30 * time.Millisecond)
	if f.c.CountdownRemaining() != 0 {
		t.Errorf("CountdownRemaining() = %d after a stale push", f.c.CountdownRemaining())
	}

	if err := f.c.Arm(context.Background(), ModeOn); !errors.Is(err, ErrNotBound) {
		t.Errorf("Arm() after unbind error = %v, want ErrNotBound", err)
	}
}

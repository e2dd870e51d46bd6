package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"imucode-go/bus"
	"imucode-go/errcode"
	"imucode-go/types"
)

// ---- fake device ----

type fakeDev struct {
	id  string
	pub EventEmitter

	mu     sync.Mutex
	calls  []string
	closed bool
}

func (d *fakeDev) ID() string { return d.id }

func (d *fakeDev) Capabilities() []CapabilitySpec {
	return []CapabilitySpec{
		{Kind: types.KindAccel, Info: types.Info{SchemaVersion: 1, Driver: "fake"}},
		{Kind: types.KindTemperature, Info: types.Info{SchemaVersion: 1, Driver: "fake"}},
	}
}

func (d *fakeDev) Init(ctx context.Context) error { return nil }

func (d *fakeDev) Control(addr CapAddr, method string, payload any) (EnqueueResult, error) {
	d.mu.Lock()
	d.calls = append(d.calls, method)
	d.mu.Unlock()

	switch method {
	case "read":
		d.pub.Emit(Event{Addr: addr, Payload: types.AccelValue{X: 1, Y: 2, Z: 1000}})
		return EnqueueResult{OK: true}, nil
	case "fail":
		d.pub.Emit(Event{Addr: addr, Err: string(errcode.IOError)})
		return EnqueueResult{OK: true}, nil
	case "set_range":
		return EnqueueResult{OK: true, Reply: types.IMURange{OK: true, Range: 4}}, nil
	case "busy":
		return EnqueueResult{OK: false, Error: errcode.Busy}, nil
	}
	return EnqueueResult{}, errcode.Unsupported
}

func (d *fakeDev) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *fakeDev) count(method string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c == method {
			n++
		}
	}
	return n
}

type fakeBuilder struct {
	mu   sync.Mutex
	last *fakeDev
}

func (b *fakeBuilder) Build(ctx context.Context, in BuilderInput) (Device, error) {
	d := &fakeDev{id: in.ID, pub: in.Res.Pub}
	b.mu.Lock()
	b.last = d
	b.mu.Unlock()
	return d, nil
}

func (b *fakeBuilder) device() *fakeDev {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

var testBuilder = &fakeBuilder{}

func init() { RegisterBuilder("fake_imu", testBuilder) }

// ---- helpers ----

func waitMsg(t *testing.T, sub *bus.Subscription, pred func(*bus.Message) bool) *bus.Message {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case m := <-sub.Channel():
			if pred(m) {
				return m
			}
		case <-deadline:
			t.Fatalf("timeout waiting on %s", sub.Topic())
			return nil
		}
	}
}

func waitState(t *testing.T, sub *bus.Subscription, level string) {
	t.Helper()
	waitMsg(t, sub, func(m *bus.Message) bool {
		s, ok := m.Payload.(types.HALState)
		return ok && s.Level == level
	})
}

func request(t *testing.T, c *bus.Connection, topic bus.Topic, payload any) any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m, err := c.RequestWait(ctx, c.NewMessage(topic, payload, false))
	if err != nil {
		t.Fatalf("request %s: %v", topic, err)
	}
	return m.Payload
}

func wantErrReply(t *testing.T, got any, code errcode.Code) {
	t.Helper()
	er, ok := got.(types.ErrorReply)
	if !ok || er.OK || er.Error != string(code) {
		t.Fatalf("reply=%#v want error %q", got, code)
	}
}

func startHAL(t *testing.T) (*HAL, *bus.Connection, *bus.Subscription, context.CancelFunc) {
	t.Helper()
	b := bus.NewBus(16)
	h := NewHAL(b.NewConnection("hal"), Resources{})
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	client := b.NewConnection("test")
	state := client.Subscribe(TopicState())
	waitState(t, state, "idle")
	return h, client, state, cancel
}

// ---- tests ----

func TestHALRejectsControlBeforeConfig(t *testing.T) {
	_, c, _, cancel := startHAL(t)
	defer cancel()

	got := request(t, c, CapCtrl("motion", "accel", "imu0", "read"), nil)
	wantErrReply(t, got, errcode.HALNotReady)
}

func TestHALLifecycle(t *testing.T) {
	_, c, state, cancel := startHAL(t)

	c.Publish(c.NewMessage(TopicConfigHAL(), types.HALConfig{
		Devices: []types.HALDevice{{ID: "imu0", Type: "fake_imu"}},
	}, true))
	waitState(t, state, "ready")

	// Retained info and initial status.
	info := c.Subscribe(CapInfo("motion", "accel", "imu0"))
	waitMsg(t, info, func(m *bus.Message) bool {
		in, ok := m.Payload.(types.Info)
		return ok && in.Driver == "fake"
	})
	tempStatus := c.Subscribe(CapStatus("env", "temperature", "imu0"))
	waitMsg(t, tempStatus, func(m *bus.Message) bool {
		s, ok := m.Payload.(types.CapabilityStatus)
		return ok && s.Link == types.LinkDown
	})

	status := c.Subscribe(CapStatus("motion", "accel", "imu0"))
	value := c.Subscribe(CapValue("motion", "accel", "imu0"))

	// read → OK reply, then value + status:up.
	got := request(t, c, CapCtrl("motion", "accel", "imu0", "read"), nil)
	if r, ok := got.(types.OKReply); !ok || !r.OK {
		t.Fatalf("read reply=%#v", got)
	}
	waitMsg(t, value, func(m *bus.Message) bool {
		v, ok := m.Payload.(types.AccelValue)
		return ok && v.Z == 1000
	})
	waitMsg(t, status, func(m *bus.Message) bool {
		s, ok := m.Payload.(types.CapabilityStatus)
		return ok && s.Link == types.LinkUp
	})

	// Device-provided reply replaces OK.
	got = request(t, c, CapCtrl("motion", "accel", "imu0", "set_range"), types.IMUSetRange{Range: 4})
	if r, ok := got.(types.IMURange); !ok || r.Range != 4 {
		t.Fatalf("set_range reply=%#v", got)
	}

	wantErrReply(t, request(t, c, CapCtrl("motion", "accel", "imu0", "busy"), nil), errcode.Busy)
	wantErrReply(t, request(t, c, CapCtrl("motion", "accel", "imu0", "bogus"), nil), errcode.Unsupported)
	wantErrReply(t, request(t, c, CapCtrl("motion", "accel", "nope", "read"), nil), errcode.UnknownCapability)

	// Failure → status:degraded.
	request(t, c, CapCtrl("motion", "accel", "imu0", "fail"), nil)
	waitMsg(t, status, func(m *bus.Message) bool {
		s, ok := m.Payload.(types.CapabilityStatus)
		return ok && s.Link == types.LinkDegraded && s.Error == string(errcode.IOError)
	})

	dev := testBuilder.device()
	cancel()
	waitState(t, state, "stopped")
	dev.mu.Lock()
	closed := dev.closed
	dev.mu.Unlock()
	if !closed {
		t.Fatal("device not closed on shutdown")
	}
}

func TestHALPollStartStop(t *testing.T) {
	h, c, state, cancel := startHAL(t)
	defer cancel()

	c.Publish(c.NewMessage(TopicConfigHAL(), types.HALConfig{
		Devices: []types.HALDevice{{ID: "imu1", Type: "fake_imu"}},
	}, true))
	waitState(t, state, "ready")
	dev := testBuilder.device()

	ctrl := func(verb string) bus.Topic { return CapCtrl("motion", "accel", "imu1", verb) }

	wantErrReply(t, request(t, c, ctrl("poll_start"), types.PollStart{}), errcode.InvalidParams)
	wantErrReply(t, request(t, c, ctrl("poll_start"), "junk"), errcode.InvalidPayload)

	got := request(t, c, ctrl("poll_start"), types.PollStart{Verb: "read", IntervalMs: 5})
	if r, ok := got.(types.OKReply); !ok || !r.OK {
		t.Fatalf("poll_start reply=%#v", got)
	}
	if h.pollCount() != 1 {
		t.Fatalf("pollCount=%d", h.pollCount())
	}

	deadline := time.Now().Add(time.Second)
	for dev.count("read") < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("poll fired %d times", dev.count("read"))
		}
		time.Sleep(2 * time.Millisecond)
	}

	request(t, c, ctrl("poll_stop"), types.PollStop{})
	if h.pollCount() != 0 {
		t.Fatalf("pollCount=%d after stop", h.pollCount())
	}
}

func TestHALDeclarativePollers(t *testing.T) {
	h, c, state, cancel := startHAL(t)
	defer cancel()

	c.Publish(c.NewMessage(TopicConfigHAL(), types.HALConfig{
		Devices: []types.HALDevice{{ID: "imu2", Type: "fake_imu"}},
		Pollers: []types.PollSpec{
			{Kind: types.KindTemperature, Name: "imu2", IntervalMs: 1000},
			{Kind: types.KindGyro, Name: "imu2", IntervalMs: 1000}, // no such capability
		},
	}, true))
	waitState(t, state, "ready")

	// Config is applied before ready is published.
	if h.pollCount() != 1 {
		t.Fatalf("pollCount=%d want 1", h.pollCount())
	}
}

func TestDefaultDomainFor(t *testing.T) {
	cases := map[string]string{
		"accel":       "motion",
		"gyro":        "motion",
		"temperature": "env",
		"led":         "io",
	}
	for k, want := range cases {
		if got := DefaultDomainFor(k); got != want {
			t.Errorf("DefaultDomainFor(%q)=%q want %q", k, got, want)
		}
	}
}

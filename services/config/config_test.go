package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"imucode-go/bus"
	mpu6886dev "imucode-go/services/hal/devices/mpu6886"
	"imucode-go/types"
)

func TestParseMPU6886(t *testing.T) {
	cfg, err := Parse([]byte(`
devices:
  - id: imu0
    type: mpu6886
    params:
      bus: i2c1
      gyro_dps: 500
      accel_g: 4
      rate_divider: 9
      clock: internal
      read_back: true
pollers:
  - kind: gyro
    name: imu0
    verb: read
    interval_ms: 50
    jitter_ms: 3
`))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Devices) != 1 {
		t.Fatalf("devices=%d", len(cfg.Devices))
	}
	d := cfg.Devices[0]
	p, ok := d.Params.(mpu6886dev.Params)
	if !ok {
		t.Fatalf("params type %T", d.Params)
	}
	if d.ID != "imu0" || d.Type != "mpu6886" {
		t.Fatalf("device %+v", d)
	}
	if p.Bus != "i2c1" || p.GyroDPS != 500 || p.AccelG != 4 || p.Clock != "internal" || !p.ReadBack {
		t.Fatalf("params %+v", p)
	}
	if p.RateDivider == nil || *p.RateDivider != 9 {
		t.Fatalf("rate_divider %v", p.RateDivider)
	}

	want := types.PollSpec{Kind: types.KindGyro, Name: "imu0", Verb: "read", IntervalMs: 50, JitterMs: 3}
	if len(cfg.Pollers) != 1 || cfg.Pollers[0] != want {
		t.Fatalf("pollers %+v", cfg.Pollers)
	}
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"syntax":        "devices: [",
		"missing id":    "devices:\n  - type: mpu6886\n    params: {bus: i2c0}\n",
		"duplicate id":  "devices:\n  - {id: a, type: mpu6886, params: {bus: i2c0}}\n  - {id: a, type: mpu6886, params: {bus: i2c0}}\n",
		"unknown type":  "devices:\n  - {id: a, type: bmi270, params: {bus: i2c0}}\n",
		"missing bus":   "devices:\n  - {id: a, type: mpu6886}\n",
		"bad params":    "devices:\n  - {id: a, type: mpu6886, params: {bus: i2c0, gyro_dps: fast}}\n",
		"zero interval": "pollers:\n  - {kind: gyro, name: a}\n",
		"poller name":   "pollers:\n  - {kind: gyro, interval_ms: 10}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestEmbeddedHostConfig(t *testing.T) {
	raw, ok := EmbeddedConfigLookup("host")
	if !ok {
		t.Fatal("no host config")
	}
	cfg, err := Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Devices) != 1 || len(cfg.Pollers) != 3 {
		t.Fatalf("cfg %+v", cfg)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hal.yaml")
	doc := "devices:\n  - {id: imu9, type: mpu6886, params: {bus: i2c0}}\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Devices[0].ID != "imu9" {
		t.Fatalf("cfg %+v", cfg)
	}
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	_, err = Load(missing)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err = %v, want wrapped fs.ErrNotExist", err)
	}
	if !strings.HasPrefix(err.Error(), "config: read "+missing+": ") {
		t.Fatalf("err = %q", err)
	}
}

func TestConfig_PublishRetained(t *testing.T) {
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) {
		if device != "bench" {
			return nil, false
		}
		return []byte("devices:\n  - {id: imu0, type: mpu6886, params: {bus: i2c0}}\n"), true
	}
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	b := bus.NewBus(4)
	conn := b.NewConnection("test-config")
	svc := NewConfigService()

	ctx := context.WithValue(context.Background(), CtxDeviceKey, "bench")
	svc.Start(ctx, conn)

	sub := conn.Subscribe(Topic())
	select {
	case m := <-sub.Channel():
		cfg, ok := m.Payload.(types.HALConfig)
		if !ok || !m.Retained {
			t.Fatalf("payload %T retained=%v", m.Payload, m.Retained)
		}
		if len(cfg.Devices) != 1 || cfg.Devices[0].ID != "imu0" {
			t.Fatalf("cfg %+v", cfg)
		}
	case <-time.After(600 * time.Millisecond):
		t.Fatal("no config published")
	}
}

func TestConfig_PathOverridesDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hal.yaml")
	if err := os.WriteFile(path, []byte("devices: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx := context.WithValue(context.Background(), CtxDeviceKey, "host")
	ctx = context.WithValue(ctx, CtxPathKey, path)
	cfg, err := Resolve(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Devices) != 0 {
		t.Fatalf("cfg %+v", cfg)
	}
}

func TestConfig_PublishConfig_MissingDevice(t *testing.T) {
	b := bus.NewBus(4)
	conn := b.NewConnection("test-missing-device")
	svc := NewConfigService()

	if err := svc.publishConfig(context.Background(), conn); err == nil {
		t.Fatal("expected error for missing device ID, got nil")
	}
}

func TestConfig_PublishConfig_NoConfigFound(t *testing.T) {
	ctx := context.WithValue(context.Background(), CtxDeviceKey, "unknown-device")
	_, err := Resolve(ctx)
	if err == nil || !strings.Contains(err.Error(), "unknown-device") {
		t.Fatalf("err=%v", err)
	}
}

package provider

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"imucode-go/errcode"

	"tinygo.org/x/drivers"
)

// recI2C records transfers and flags overlapping calls.
type recI2C struct {
	mu       sync.Mutex
	addrs    []uint16
	inflight atomic.Int32
	overlap  atomic.Bool
	hold     time.Duration
	block    chan struct{}
}

func (b *recI2C) Tx(addr uint16, w, r []byte) error {
	if b.inflight.Add(1) > 1 {
		b.overlap.Store(true)
	}
	defer b.inflight.Add(-1)
	if b.block != nil {
		<-b.block
	}
	if b.hold > 0 {
		time.Sleep(b.hold)
	}
	b.mu.Lock()
	b.addrs = append(b.addrs, addr)
	b.mu.Unlock()
	for i := range r {
		r[i] = byte(addr)
	}
	return nil
}

func TestClaimUnknownBus(t *testing.T) {
	r := NewRegistry(nil)
	defer r.Close()
	if _, err := r.ClaimI2C("imu0", "i2c9", 0x68); !errors.Is(err, errcode.UnknownBus) {
		t.Fatalf("err=%v want unknown_bus", err)
	}
}

func TestClaimExclusivePerAddress(t *testing.T) {
	r := NewRegistry(map[string]drivers.I2C{"i2c0": &recI2C{}})
	defer r.Close()

	if _, err := r.ClaimI2C("imu0", "i2c0", 0x68); err != nil {
		t.Fatal(err)
	}
	// Same device may re-claim.
	if _, err := r.ClaimI2C("imu0", "i2c0", 0x68); err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if _, err := r.ClaimI2C("imu1", "i2c0", 0x68); !errors.Is(err, errcode.BusInUse) {
		t.Fatalf("err=%v want bus_in_use", err)
	}
	// Different address on the same bus is fine.
	if _, err := r.ClaimI2C("imu1", "i2c0", 0x69); err != nil {
		t.Fatalf("other addr: %v", err)
	}

	// Release by a non-owner is ignored.
	r.ReleaseI2C("imu1", "i2c0", 0x68)
	if _, err := r.ClaimI2C("imu1", "i2c0", 0x68); !errors.Is(err, errcode.BusInUse) {
		t.Fatalf("err=%v after foreign release", err)
	}
	r.ReleaseI2C("imu0", "i2c0", 0x68)
	if _, err := r.ClaimI2C("imu1", "i2c0", 0x68); err != nil {
		t.Fatalf("after release: %v", err)
	}
}

func TestTxSerialisedPerBus(t *testing.T) {
	hw := &recI2C{hold: time.Millisecond}
	r := NewRegistry(map[string]drivers.I2C{"i2c0": hw})
	defer r.Close()
	r.SetTxTimeout(0)

	a, _ := r.ClaimI2C("a", "i2c0", 0x68)
	b, _ := r.ClaimI2C("b", "i2c0", 0x69)

	var wg sync.WaitGroup
	for _, h := range []drivers.I2C{a, b} {
		wg.Add(1)
		go func(h drivers.I2C) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				buf := make([]byte, 1)
				if err := h.Tx(0x68, []byte{0x75}, buf); err != nil {
					t.Error(err)
					return
				}
			}
		}(h)
	}
	wg.Wait()

	if hw.overlap.Load() {
		t.Fatal("transfers overlapped on one bus")
	}
	hw.mu.Lock()
	n := len(hw.addrs)
	hw.mu.Unlock()
	if n != 20 {
		t.Fatalf("transfers=%d want 20", n)
	}
}

func TestTxBusyWhenQueueFull(t *testing.T) {
	hw := &recI2C{block: make(chan struct{})}
	r := NewRegistry(map[string]drivers.I2C{"i2c0": hw})
	r.SetTxTimeout(5 * time.Millisecond)

	h, _ := r.ClaimI2C("imu0", "i2c0", 0x68)
	d := h.(*driversI2C)

	// Fill the worker (one in flight) and its queue.
	go func() { _ = d.Tx(0x68, nil, nil) }()
	time.Sleep(5 * time.Millisecond)
	for i := 0; i < cap(d.o.reqs); i++ {
		d.o.reqs <- i2cReq{addr: 0x68, done: make(chan error, 1)}
	}

	if err := h.Tx(0x68, []byte{0}, nil); !errors.Is(err, errcode.Busy) {
		t.Fatalf("err=%v want busy", err)
	}

	close(hw.block)
	r.Close()
}

func TestTxAfterCloseFails(t *testing.T) {
	r := NewRegistry(map[string]drivers.I2C{"i2c0": &recI2C{}})
	h, _ := r.ClaimI2C("imu0", "i2c0", 0x68)
	r.Close()
	r.Close() // idempotent

	if err := h.Tx(0x68, []byte{0}, nil); !errors.Is(err, errcode.UnknownBus) {
		t.Fatalf("err=%v want unknown_bus", err)
	}
	if _, err := r.ClaimI2C("imu1", "i2c0", 0x69); !errors.Is(err, errcode.UnknownBus) {
		t.Fatalf("claim after close: %v", err)
	}
}

func TestBusesSorted(t *testing.T) {
	r := NewRegistry(map[string]drivers.I2C{"i2c1": &recI2C{}, "i2c0": &recI2C{}})
	defer r.Close()
	got := r.Buses()
	if len(got) != 2 || got[0] != "i2c0" || got[1] != "i2c1" {
		t.Fatalf("Buses=%v", got)
	}
}

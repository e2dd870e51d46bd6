package provider

import (
	"time"

	"imucode-go/errcode"
	"imucode-go/services/hal/internal/core"

	"tinygo.org/x/drivers"
)

// -----------------------------------------------------------------------------
// I²C owner (one worker per bus)
// -----------------------------------------------------------------------------

// request posted to the per-bus worker
type i2cReq struct {
	addr uint16
	w, r []byte
	done chan error // buffered(1)
}

// per-bus owner that hosts a single worker goroutine
type i2cOwner struct {
	id   core.ResourceID
	hw   drivers.I2C
	reqs chan i2cReq
	quit chan struct{}
	dead chan struct{}
}

func newI2COwner(id core.ResourceID, hw drivers.I2C) *i2cOwner {
	o := &i2cOwner{
		id:   id,
		hw:   hw,
		reqs: make(chan i2cReq, 16),
		quit: make(chan struct{}),
		dead: make(chan struct{}),
	}
	go o.loop()
	return o
}

func (o *i2cOwner) loop() {
	defer close(o.dead)
	for {
		select {
		case req := <-o.reqs:
			req.done <- o.hw.Tx(req.addr, req.w, req.r)
		case <-o.quit:
			return
		}
	}
}

func (o *i2cOwner) stop() {
	close(o.quit)
	<-o.dead
}

// driversI2C adapts the owner to tinygo.org/x/drivers.I2C.
// Enqueue is bounded by timeout; once accepted, Tx waits for the worker so
// that no transfer can land in a buffer the caller has already reused.
type driversI2C struct {
	o       *i2cOwner
	timeout time.Duration // 0 => unbounded enqueue
}

// Ensure compile-time conformance with drivers.I2C
var _ drivers.I2C = (*driversI2C)(nil)

func (d *driversI2C) Tx(addr uint16, w, r []byte) error {
	req := i2cReq{addr: addr, w: w, r: r, done: make(chan error, 1)}

	if d.timeout <= 0 {
		select {
		case d.o.reqs <- req:
		case <-d.o.quit:
			return errcode.UnknownBus
		}
	} else {
		t := time.NewTimer(d.timeout)
		select {
		case d.o.reqs <- req:
			if !t.Stop() {
				<-t.C
			}
		case <-d.o.quit:
			t.Stop()
			return errcode.UnknownBus
		case <-t.C:
			return errcode.Busy
		}
	}

	select {
	case err := <-req.done:
		return err
	case <-d.o.dead:
		// Worker exited; it may still have served us just before.
		select {
		case err := <-req.done:
			return err
		default:
			return errcode.UnknownBus
		}
	}
}

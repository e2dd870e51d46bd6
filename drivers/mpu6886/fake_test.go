package mpu6886

import (
	"errors"
	"sync"

	"tinygo.org/x/drivers"
)

// Compile-time check.
var _ drivers.I2C = (*fakeI2C)(nil)

var errNACK = errors.New("nack")

type regWrite struct {
	reg, val byte
}

// fakeI2C is a register-map MPU6886 stand-in. Writes are recorded in order;
// failures can be scripted per register and direction.
type fakeI2C struct {
	mu        sync.Mutex
	regs      [256]byte
	writes    []regWrite
	failRead  map[byte]error
	failWrite map[byte]error
	lastAddr  uint16
}

func newFakeMPU() *fakeI2C {
	f := &fakeI2C{
		failRead:  map[byte]error{},
		failWrite: map[byte]error{},
	}
	f.regs[regWhoAmI] = ChipID
	f.regs[regPwrMgmt1] = 0x41 // power-on: SLEEP | CLKSEL=1
	return f
}

func (f *fakeI2C) Tx(addr uint16, w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAddr = addr

	if len(w) == 0 {
		return errNACK
	}
	reg := w[0]

	// Register write.
	if len(w) == 2 && len(r) == 0 {
		if err := f.failWrite[reg]; err != nil {
			return err
		}
		v := w[1]
		f.writes = append(f.writes, regWrite{reg: reg, val: v})
		if reg == regPwrMgmt1 && v&pwr1DeviceReset != 0 {
			// DEVICE_RESET restores the power-on register values and
			// self-clears.
			f.regs[regSampleRateDiv] = 0
			f.regs[regConfig] = 0
			f.regs[regGyroConfig] = 0
			f.regs[regAccelConfig] = 0
			f.regs[regAccelConfig2] = 0
			f.regs[regPwrMgmt2] = 0
			v = 0x41
		}
		f.regs[reg] = v
		return nil
	}

	// Register read (burst from reg).
	if len(w) == 1 && len(r) > 0 {
		if err := f.failRead[reg]; err != nil {
			return err
		}
		for i := range r {
			r[i] = f.regs[(int(reg)+i)&0xFF]
		}
		return nil
	}
	return errNACK
}

func (f *fakeI2C) setVector(reg byte, x, y, z int16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, v := range []int16{x, y, z} {
		f.regs[int(reg)+2*i] = byte(uint16(v) >> 8)
		f.regs[int(reg)+2*i+1] = byte(uint16(v))
	}
}

func (f *fakeI2C) writesTo(reg byte) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []byte
	for _, w := range f.writes {
		if w.reg == reg {
			out = append(out, w.val)
		}
	}
	return out
}

func (f *fakeI2C) resetWrites() {
	f.mu.Lock()
	f.writes = nil
	f.mu.Unlock()
}

// newTestDevice returns a Device bound to f that records delays instead of sleeping.
func newTestDevice(f *fakeI2C) (*Device, *[]uint32) {
	var delays []uint32
	d := New(f)
	d.Configure(Config{Delay: func(ms uint32) { delays = append(delays, ms) }})
	return &d, &delays
}

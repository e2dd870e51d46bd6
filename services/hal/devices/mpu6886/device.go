package mpu6886dev

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"imucode-go/drivers/mpu6886"
	"imucode-go/errcode"
	"imucode-go/services/hal/internal/core"
	"imucode-go/types"
	"imucode-go/x/mathx"
	"imucode-go/x/timex"

	"tinygo.org/x/drivers"
)

// Device is a single-goroutine HAL device for the MPU6886. Only the worker
// touches the driver; Control just enqueues.
type Device struct {
	id   string
	aAcc core.CapAddr // motion/accel/<name>
	aGyr core.CapAddr // motion/gyro/<name>
	aTmp core.CapAddr // env/temperature/<name>

	res    core.Resources
	i2c    drivers.I2C
	params Params
	alive  atomic.Bool

	// Target configuration; the worker applies it on setup and updates it on
	// successful set_range.
	gyro  mpu6886.GyroRange
	accel mpu6886.AccelRange
	clock mpu6886.ClockSource

	// Owned by the worker only:
	dev   mpu6886.Device
	ready bool

	reqCh chan request
	done  chan struct{}
	once  sync.Once
}

type opCode uint8

const (
	opRead opCode = iota
	opSetRange
	opSleep
	opWake
	opEnable
	opSetRateDivider
	opStop
)

type request struct {
	op   opCode
	kind types.Kind
	arg  any
}

const setupRetry = time.Second

// ---- core.Device interface ----

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{
		{Domain: d.aAcc.Domain, Kind: types.KindAccel, Name: d.aAcc.Name, Info: d.accelInfo()},
		{Domain: d.aGyr.Domain, Kind: types.KindGyro, Name: d.aGyr.Name, Info: d.gyroInfo()},
		{Domain: d.aTmp.Domain, Kind: types.KindTemperature, Name: d.aTmp.Name, Info: d.tempInfo()},
	}
}

func (d *Device) accelInfo() types.Info {
	return types.Info{SchemaVersion: 1, Driver: "mpu6886", Detail: types.IMUInfo{
		Sensor: "mpu6886", Addr: mpu6886.Address, Bus: d.params.Bus, Range: int(d.accel.FullScale()),
	}}
}

func (d *Device) gyroInfo() types.Info {
	return types.Info{SchemaVersion: 1, Driver: "mpu6886", Detail: types.IMUInfo{
		Sensor: "mpu6886", Addr: mpu6886.Address, Bus: d.params.Bus, Range: int(d.gyro.FullScale()),
	}}
}

func (d *Device) tempInfo() types.Info {
	return types.Info{SchemaVersion: 1, Driver: "mpu6886", Detail: types.TemperatureInfo{
		Sensor: "mpu6886", Addr: mpu6886.Address, Bus: d.params.Bus,
	}}
}

// Init starts the worker. Hardware setup happens there, off the HAL loop.
func (d *Device) Init(ctx context.Context) error {
	d.reqCh = make(chan request, 8)
	d.done = make(chan struct{})
	d.alive.Store(true)
	go d.worker(ctx)
	return nil
}

func (d *Device) Close() error {
	if d.alive.Load() {
		select {
		case d.reqCh <- request{op: opStop}:
		default:
		}
		t := time.NewTimer(300 * time.Millisecond)
		select {
		case <-d.done:
		case <-t.C:
		}
		t.Stop()
	}
	d.cleanup()
	return nil
}

func (d *Device) Control(addr core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	kind := types.Kind(addr.Kind)
	send := func(req request) (core.EnqueueResult, error) {
		if !d.alive.Load() {
			return core.EnqueueResult{OK: false, Error: errcode.Unavailable}, nil
		}
		req.kind = kind
		select {
		case d.reqCh <- req:
			return core.EnqueueResult{OK: true}, nil
		default:
			return core.EnqueueResult{OK: false, Error: errcode.Busy}, nil
		}
	}

	switch verb {
	case "read":
		return send(request{op: opRead})

	case "set_range":
		v, ok := payloadAs[types.IMUSetRange](payload)
		if !ok {
			return core.EnqueueResult{OK: false, Error: errcode.InvalidPayload}, nil
		}
		var arg any
		switch kind {
		case types.KindGyro:
			r, ok := mpu6886.ParseGyroRange(v.Range)
			if !ok {
				return core.EnqueueResult{OK: false, Error: errcode.InvalidParams}, nil
			}
			arg = r
		case types.KindAccel:
			r, ok := mpu6886.ParseAccelRange(v.Range)
			if !ok {
				return core.EnqueueResult{OK: false, Error: errcode.InvalidParams}, nil
			}
			arg = r
		default:
			return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
		}
		res, err := send(request{op: opSetRange, arg: arg})
		if res.OK {
			res.Reply = types.IMURange{OK: true, Range: v.Range}
		}
		return res, err

	case "sleep":
		return send(request{op: opSleep})
	case "wake":
		return send(request{op: opWake})

	case "enable":
		v, ok := payloadAs[types.IMUEnable](payload)
		if !ok {
			return core.EnqueueResult{OK: false, Error: errcode.InvalidPayload}, nil
		}
		return send(request{op: opEnable, arg: v.On})

	case "set_rate_divider":
		if kind == types.KindTemperature {
			return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
		}
		v, ok := payloadAs[types.IMUSetRateDivider](payload)
		if !ok {
			return core.EnqueueResult{OK: false, Error: errcode.InvalidPayload}, nil
		}
		return send(request{op: opSetRateDivider, arg: v.Div})

	default:
		return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
}

// payloadAs accepts T or a non-nil *T.
func payloadAs[T any](p any) (T, bool) {
	var zero T
	switch x := p.(type) {
	case T:
		return x, true
	case *T:
		if x == nil {
			return zero, false
		}
		return *x, true
	}
	return zero, false
}

// ---- Worker ----

func (d *Device) worker(ctx context.Context) {
	defer close(d.done)
	defer d.alive.Store(false)

	var retry <-chan time.Time
	if !d.setup() {
		retry = time.After(setupRetry)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-retry:
			retry = nil
			if !d.setup() {
				retry = time.After(setupRetry)
			}

		case req := <-d.reqCh:
			if req.op == opStop {
				return
			}
			if !d.ready && !d.setup() {
				continue
			}
			d.handle(req)
		}
	}
}

// setup brings the chip from power-on into the configured state. Failures
// mark every capability degraded; the next request or retry tick tries again.
func (d *Device) setup() bool {
	d.dev = mpu6886.New(d.i2c)
	d.dev.Configure(mpu6886.Config{ReadBackRanges: d.params.ReadBack})

	fail := func(err error) bool {
		d.ready = false
		d.errAll(err)
		return false
	}
	if err := d.dev.Init(); err != nil {
		return fail(err)
	}
	if d.clock != mpu6886.ClockBestAvailable {
		if err := d.dev.SetClockSource(d.clock); err != nil {
			return fail(err)
		}
	}
	if err := d.dev.Wake(); err != nil {
		return fail(err)
	}
	if err := d.dev.SetGyroRange(d.gyro); err != nil {
		return fail(err)
	}
	if err := d.dev.SetAccelRange(d.accel); err != nil {
		return fail(err)
	}
	if d.params.RateDivider != nil {
		if err := d.dev.SetGyroRateDivider(*d.params.RateDivider); err != nil {
			return fail(err)
		}
	}
	d.ready = true

	// Republish info with the applied ranges.
	d.emitInfo(d.aAcc, d.accelInfo())
	d.emitInfo(d.aGyr, d.gyroInfo())
	d.emitInfo(d.aTmp, d.tempInfo())
	return true
}

func (d *Device) handle(req request) {
	switch req.op {
	case opRead:
		d.read(req.kind)

	case opSetRange:
		switch r := req.arg.(type) {
		case mpu6886.GyroRange:
			if err := d.dev.SetGyroRange(r); err != nil {
				d.errOne(d.aGyr, err)
				return
			}
			d.gyro = r
			d.emitInfo(d.aGyr, d.gyroInfo())
		case mpu6886.AccelRange:
			if err := d.dev.SetAccelRange(r); err != nil {
				d.errOne(d.aAcc, err)
				return
			}
			d.accel = r
			d.emitInfo(d.aAcc, d.accelInfo())
		}

	case opSleep:
		if err := d.dev.Sleep(); err != nil {
			d.errAll(err)
		}
	case opWake:
		if err := d.dev.Wake(); err != nil {
			d.errAll(err)
		}

	case opEnable:
		on, _ := req.arg.(bool)
		var err error
		switch req.kind {
		case types.KindGyro:
			err = d.dev.EnableGyro(on)
		case types.KindAccel:
			err = d.dev.EnableAccel(on)
		case types.KindTemperature:
			err = d.dev.EnableTemperature(on)
		}
		if err != nil {
			d.errOne(d.addrFor(req.kind), err)
		}

	case opSetRateDivider:
		div, _ := req.arg.(uint8)
		// SMPLRT_DIV is shared; either accessor writes the same register.
		if err := d.dev.SetGyroRateDivider(div); err != nil {
			d.errOne(d.addrFor(req.kind), err)
		}
	}
}

func (d *Device) read(kind types.Kind) {
	switch kind {
	case types.KindAccel:
		if d.params.ReadBack {
			if _, err := d.dev.ReadAccelRange(); err != nil {
				d.errOne(d.aAcc, err)
				return
			}
		}
		v, err := d.dev.AccelerationRaw()
		if err != nil {
			d.errOne(d.aAcc, err)
			return
		}
		fs := int64(d.dev.AccelRange().FullScale())
		d.emitValue(d.aAcc, types.AccelValue{
			X: milli(v.X, fs), Y: milli(v.Y, fs), Z: milli(v.Z, fs),
		})

	case types.KindGyro:
		if d.params.ReadBack {
			if _, err := d.dev.ReadGyroRange(); err != nil {
				d.errOne(d.aGyr, err)
				return
			}
		}
		v, err := d.dev.GyroRaw()
		if err != nil {
			d.errOne(d.aGyr, err)
			return
		}
		fs := int64(d.dev.GyroRange().FullScale())
		d.emitValue(d.aGyr, types.GyroValue{
			X: milli(v.X, fs), Y: milli(v.Y, fs), Z: milli(v.Z, fs),
		})

	case types.KindTemperature:
		raw, err := d.dev.TemperatureRaw()
		if err != nil {
			d.errOne(d.aTmp, err)
			return
		}
		d.emitValue(d.aTmp, types.TemperatureValue{DeciC: deciCelsius(raw)})
	}
}

// milli converts a raw count at full-scale fs into thousandths of the unit.
func milli(raw int16, fs int64) int32 {
	v := mathx.ScaleRound(int64(raw), fs*1000, 32768)
	return int32(mathx.Clamp(v, -fs*1000, fs*1000))
}

// deciCelsius converts TEMP_OUT to tenths of °C: raw/326.8 + 25.
func deciCelsius(raw int16) int16 {
	v := mathx.ScaleRound(int32(raw), 100, 3268) + 250
	return int16(mathx.Clamp(v, math.MinInt16, math.MaxInt16))
}

func (d *Device) addrFor(k types.Kind) core.CapAddr {
	switch k {
	case types.KindGyro:
		return d.aGyr
	case types.KindTemperature:
		return d.aTmp
	default:
		return d.aAcc
	}
}

// ---- Emit helpers ----

func (d *Device) emitValue(a core.CapAddr, v any) {
	_ = d.res.Pub.Emit(core.Event{Addr: a, Payload: v, TSms: timex.NowMs()})
}

func (d *Device) emitInfo(a core.CapAddr, in types.Info) {
	_ = d.res.Pub.Emit(core.Event{Addr: a, Payload: in, TSms: timex.NowMs(), Info: true})
}

func (d *Device) errOne(a core.CapAddr, err error) {
	_ = d.res.Pub.Emit(core.Event{Addr: a, TSms: timex.NowMs(), Err: string(codeFor(err))})
}

func (d *Device) errAll(err error) {
	code := string(codeFor(err))
	ts := timex.NowMs()
	for _, a := range []core.CapAddr{d.aAcc, d.aGyr, d.aTmp} {
		_ = d.res.Pub.Emit(core.Event{Addr: a, TSms: ts, Err: code})
	}
}

// cleanup releases the bus claim once.
func (d *Device) cleanup() {
	d.once.Do(func() {
		if d.res.Reg != nil {
			d.res.Reg.ReleaseI2C(d.id, core.ResourceID(d.params.Bus), mpu6886.Address)
		}
	})
}

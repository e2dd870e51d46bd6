// Package mpu6886 provides a driver for the MPU6886 6-axis IMU (gyroscope,
// accelerometer and temperature) on I2C.
//
//	d := mpu6886.New(bus)    // no bus traffic
//	err := d.Init()          // WHO_AM_I check, reset, clock select
//	err = d.Wake()
//	x, y, z, err := d.Gyro() // °/s
//
// The Device remembers the configured full-scale ranges because the data
// registers do not echo them; power and enable state live only on the chip.
//
// A Device is not safe for concurrent use. It assumes a single owner for the
// lifetime of the bus handle; callers sharing it across goroutines must
// serialise access themselves.
package mpu6886

import (
	"time"

	"tinygo.org/x/drivers"
)

// DelayFunc blocks for ms milliseconds.
type DelayFunc func(ms uint32)

func sleepMs(ms uint32) { time.Sleep(time.Duration(ms) * time.Millisecond) }

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// Delay is used for reset/wake settling. Defaults to time.Sleep.
	Delay DelayFunc
	// ReadBackRanges makes Gyro and Acceleration re-read the range register
	// before converting, instead of trusting the cached range.
	ReadBackRanges bool
}

// Device wraps an I2C connection to an MPU6886.
type Device struct {
	bus drivers.I2C

	gyroRange  GyroRange
	accelRange AccelRange

	cfg Config

	// Fixed buffers to avoid per-call heap allocations.
	w [2]byte
	r [6]byte
}

// New creates a new MPU6886 connection. The I2C bus must already be
// configured. This function only creates the Device object; it does not
// touch the device.
func New(bus drivers.I2C) Device {
	return Device{
		bus:        bus,
		gyroRange:  DefaultGyroRange,
		accelRange: DefaultAccelRange,
		cfg:        Config{Delay: sleepMs},
	}
}

// Configure applies non-hardware options. It performs no I/O.
func (d *Device) Configure(cfg Config) {
	if cfg.Delay == nil {
		cfg.Delay = sleepMs
	}
	d.cfg = cfg
}

func (d *Device) delay(ms uint32) {
	if d.cfg.Delay == nil {
		sleepMs(ms)
		return
	}
	d.cfg.Delay(ms)
}

// WhoAmI reads the identity register. ChipID is expected.
func (d *Device) WhoAmI() (byte, error) { return d.readRegister(regWhoAmI) }

// Init checks the chip identity, resets the chip and selects the best clock.
// The chip is left awake with the power-on ranges cached.
func (d *Device) Init() error {
	id, err := d.WhoAmI()
	if err != nil {
		return err
	}
	if id != ChipID {
		return &UnknownChipError{ID: id}
	}
	if err := d.Reset(); err != nil {
		return err
	}
	// CLKSEL=1 with SLEEP clear.
	if err := d.writeRegister(regPwrMgmt1, byte(ClockBestAvailable)); err != nil {
		return err
	}
	d.delay(WakeSettle)
	return nil
}

// Reset issues DEVICE_RESET, waits ResetSettle and restores the default ranges.
func (d *Device) Reset() error {
	if err := d.writeRegister(regPwrMgmt1, pwr1DeviceReset); err != nil {
		return err
	}
	d.delay(ResetSettle)
	d.gyroRange = DefaultGyroRange
	d.accelRange = DefaultAccelRange
	return nil
}

// Power management.

// Wake clears the SLEEP bit, then loads both ranges from the chip so the
// cache reflects whatever configuration survived the sleep.
func (d *Device) Wake() error {
	if err := d.modifyRegister(regPwrMgmt1, 0, pwr1Sleep); err != nil {
		return err
	}
	if _, err := d.ReadGyroRange(); err != nil {
		return err
	}
	_, err := d.ReadAccelRange()
	return err
}

// Sleep sets the SLEEP bit.
func (d *Device) Sleep() error { return d.modifyRegister(regPwrMgmt1, pwr1Sleep, 0) }

// SetGyroStandby toggles the low-power gyroscope standby mode (drive kept on).
func (d *Device) SetGyroStandby(on bool) error {
	return d.setBits(regPwrMgmt1, pwr1GyroStandby, on)
}

// EnableGyro brings all gyroscope axes out of (or into) standby.
func (d *Device) EnableGyro(on bool) error {
	return d.setBits(regPwrMgmt2, pwr2StandbyGyro, !on)
}

// EnableAccel brings all accelerometer axes out of (or into) standby.
func (d *Device) EnableAccel(on bool) error {
	return d.setBits(regPwrMgmt2, pwr2StandbyAccel, !on)
}

// EnableTemperature clears (or sets) TEMP_DIS.
func (d *Device) EnableTemperature(on bool) error {
	return d.setBits(regPwrMgmt1, pwr1TempDis, !on)
}

// SetClockSource writes the CLKSEL field.
func (d *Device) SetClockSource(src ClockSource) error {
	v, err := d.readRegister(regPwrMgmt1)
	if err != nil {
		return err
	}
	return d.writeRegister(regPwrMgmt1, v&^pwr1ClkSelMask|byte(src)&pwr1ClkSelMask)
}

// ClockSource reads the CLKSEL field. Values 1..5 all auto-select; 0 and 6
// run on the internal oscillator and 7 stops the clock.
func (d *Device) ClockSource() (ClockSource, error) {
	v, err := d.readRegister(regPwrMgmt1)
	if err != nil {
		return 0, err
	}
	switch sel := v & pwr1ClkSelMask; {
	case sel == byte(ClockStopped):
		return ClockStopped, nil
	case sel >= 1 && sel <= 5:
		return ClockBestAvailable, nil
	default:
		return ClockInternal20MHz, nil
	}
}

// Ranges.

// GyroRange returns the cached gyroscope range. No bus access.
func (d *Device) GyroRange() GyroRange { return d.gyroRange }

// AccelRange returns the cached accelerometer range. No bus access.
func (d *Device) AccelRange() AccelRange { return d.accelRange }

// SetGyroRange writes FS_SEL; the cached range changes only on success.
func (d *Device) SetGyroRange(r GyroRange) error {
	if err := d.modifyRegister(regGyroConfig, encodeFSSel(uint8(r)), fsSelMask); err != nil {
		return err
	}
	d.gyroRange = r
	return nil
}

// SetAccelRange writes ACCEL_FS_SEL; the cached range changes only on success.
func (d *Device) SetAccelRange(r AccelRange) error {
	if err := d.modifyRegister(regAccelConfig, encodeFSSel(uint8(r)), fsSelMask); err != nil {
		return err
	}
	d.accelRange = r
	return nil
}

// ReadGyroRange reads FS_SEL from the chip and refreshes the cache.
func (d *Device) ReadGyroRange() (GyroRange, error) {
	v, err := d.readRegister(regGyroConfig)
	if err != nil {
		return d.gyroRange, err
	}
	d.gyroRange = decodeGyroRange(v)
	return d.gyroRange, nil
}

// ReadAccelRange reads ACCEL_FS_SEL from the chip and refreshes the cache.
func (d *Device) ReadAccelRange() (AccelRange, error) {
	v, err := d.readRegister(regAccelConfig)
	if err != nil {
		return d.accelRange, err
	}
	d.accelRange = decodeAccelRange(v)
	return d.accelRange, nil
}

// Sample-rate divider. Rate = internal_rate / (1 + div). The MPU6886 has a
// single SMPLRT_DIV shared by both sensors, so the gyro and accel accessors
// address the same register.

func (d *Device) SetGyroRateDivider(div uint8) error {
	return d.writeRegister(regSampleRateDiv, div)
}

func (d *Device) GyroRateDivider() (uint8, error) { return d.readRegister(regSampleRateDiv) }

func (d *Device) SetAccelRateDivider(div uint8) error {
	return d.writeRegister(regSampleRateDiv, div)
}

func (d *Device) AccelRateDivider() (uint8, error) { return d.readRegister(regSampleRateDiv) }

// Measurements.

// Gyro returns the angular rate on each axis in °/s.
func (d *Device) Gyro() (x, y, z float32, err error) {
	r, err := d.gyroRangeForConversion()
	if err != nil {
		return 0, 0, 0, err
	}
	v, err := d.GyroRaw()
	if err != nil {
		return 0, 0, 0, err
	}
	return ConvertGyro(v.X, r), ConvertGyro(v.Y, r), ConvertGyro(v.Z, r), nil
}

// Acceleration returns the acceleration on each axis in g.
func (d *Device) Acceleration() (x, y, z float32, err error) {
	r, err := d.accelRangeForConversion()
	if err != nil {
		return 0, 0, 0, err
	}
	v, err := d.AccelerationRaw()
	if err != nil {
		return 0, 0, 0, err
	}
	return ConvertAccel(v.X, r), ConvertAccel(v.Y, r), ConvertAccel(v.Z, r), nil
}

// gyroRangeForConversion is the cached range, re-read first when
// ReadBackRanges is set.
func (d *Device) gyroRangeForConversion() (GyroRange, error) {
	if d.cfg.ReadBackRanges {
		return d.ReadGyroRange()
	}
	return d.gyroRange, nil
}

func (d *Device) accelRangeForConversion() (AccelRange, error) {
	if d.cfg.ReadBackRanges {
		return d.ReadAccelRange()
	}
	return d.accelRange, nil
}

// Temperature returns the die temperature in °C.
func (d *Device) Temperature() (float32, error) {
	raw, err := d.TemperatureRaw()
	if err != nil {
		return 0, err
	}
	return ConvertTemperature(raw), nil
}

// RawVector holds one X/Y/Z sample in LSB counts.
type RawVector struct {
	X, Y, Z int16
}

// GyroRaw burst-reads GYRO_XOUT_H..GYRO_ZOUT_L.
func (d *Device) GyroRaw() (RawVector, error) { return d.readVector(regGyroXOutH) }

// AccelerationRaw burst-reads ACCEL_XOUT_H..ACCEL_ZOUT_L.
func (d *Device) AccelerationRaw() (RawVector, error) { return d.readVector(regAccelXOutH) }

// TemperatureRaw reads TEMP_OUT_H/L.
func (d *Device) TemperatureRaw() (int16, error) {
	buf := d.r[:2]
	if err := d.readRegisters(regTempOutH, buf); err != nil {
		return 0, err
	}
	return be16(buf[0], buf[1]), nil
}

func (d *Device) readVector(reg byte) (RawVector, error) {
	buf := d.r[:6]
	if err := d.readRegisters(reg, buf); err != nil {
		return RawVector{}, err
	}
	return RawVector{
		X: be16(buf[0], buf[1]),
		Y: be16(buf[2], buf[3]),
		Z: be16(buf[4], buf[5]),
	}, nil
}

package mpu6886

import "tinygo.org/x/drivers"

// Compile-time check.
var _ drivers.Sensor = (*Sensor)(nil)

// Sensor adapts a Device to the drivers.Sensor interface. Update refreshes an
// explicit snapshot held here; the Device itself never caches readings.
// Units follow the tinygo drivers convention: µg, µ°/s and m°C.
type Sensor struct {
	Dev *Device

	accel [3]int32
	gyro  [3]int32
	temp  int32
}

// NewSensor wraps d.
func NewSensor(d *Device) *Sensor { return &Sensor{Dev: d} }

// Update reads the requested measurements. On error the snapshot for the
// failing measurement (and any after it) is left unchanged.
func (s *Sensor) Update(which drivers.Measurement) error {
	if which&drivers.Acceleration != 0 {
		r, err := s.Dev.accelRangeForConversion()
		if err != nil {
			return err
		}
		v, err := s.Dev.AccelerationRaw()
		if err != nil {
			return err
		}
		fs := int64(r.FullScale())
		s.accel = [3]int32{microUnits(v.X, fs), microUnits(v.Y, fs), microUnits(v.Z, fs)}
	}
	if which&drivers.AngularVelocity != 0 {
		r, err := s.Dev.gyroRangeForConversion()
		if err != nil {
			return err
		}
		v, err := s.Dev.GyroRaw()
		if err != nil {
			return err
		}
		fs := int64(r.FullScale())
		s.gyro = [3]int32{microUnits(v.X, fs), microUnits(v.Y, fs), microUnits(v.Z, fs)}
	}
	if which&drivers.Temperature != 0 {
		raw, err := s.Dev.TemperatureRaw()
		if err != nil {
			return err
		}
		// m°C = raw*1000/326.8 + 25000
		s.temp = int32(int64(raw)*10000/3268) + 25000
	}
	return nil
}

// Acceleration returns the last acceleration snapshot in µg.
func (s *Sensor) Acceleration() (x, y, z int32) { return s.accel[0], s.accel[1], s.accel[2] }

// AngularVelocity returns the last rotation snapshot in µ°/s.
func (s *Sensor) AngularVelocity() (x, y, z int32) { return s.gyro[0], s.gyro[1], s.gyro[2] }

// Temperature returns the last temperature snapshot in m°C.
func (s *Sensor) Temperature() int32 { return s.temp }

// microUnits scales a raw count to millionths of the unit for full-scale fs.
func microUnits(raw int16, fs int64) int32 {
	return int32(int64(raw) * 1_000_000 * fs / 32768)
}

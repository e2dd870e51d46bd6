package mpu6886

// GyroRange selects the gyroscope full-scale range (GYRO_CONFIG FS_SEL).
type GyroRange uint8

const (
	Range250DPS GyroRange = iota
	Range500DPS
	Range1000DPS
	Range2000DPS
)

// AccelRange selects the accelerometer full-scale range (ACCEL_CONFIG FS_SEL).
type AccelRange uint8

const (
	Range2G AccelRange = iota
	Range4G
	Range8G
	Range16G
)

// ClockSource selects PWR_MGMT_1 CLKSEL.
type ClockSource uint8

const (
	ClockInternal20MHz ClockSource = 0
	ClockBestAvailable ClockSource = 1 // auto-select PLL when ready, else internal
	ClockStopped       ClockSource = 7 // timing generator held in reset
)

// Power-on defaults.
const (
	DefaultGyroRange  = Range250DPS
	DefaultAccelRange = Range2G
)

// tempSensitivity is LSB per °C; tempOffset is the reading at raw 0.
const (
	tempSensitivity = 326.8
	tempOffset      = 25.0
)

// FullScale returns the nominal range in °/s.
func (r GyroRange) FullScale() float32 {
	switch r {
	case Range500DPS:
		return 500
	case Range1000DPS:
		return 1000
	case Range2000DPS:
		return 2000
	default:
		return 250
	}
}

// Sensitivity returns LSB per °/s. Derived as 32768/full-scale so that the
// int16 extremes map onto the nominal range (datasheet: 131, 65.5, 32.8, 16.4).
func (r GyroRange) Sensitivity() float32 { return 32768 / r.FullScale() }

func (r GyroRange) String() string {
	switch r {
	case Range250DPS:
		return "250dps"
	case Range500DPS:
		return "500dps"
	case Range1000DPS:
		return "1000dps"
	case Range2000DPS:
		return "2000dps"
	}
	return "unknown"
}

// FullScale returns the nominal range in g.
func (r AccelRange) FullScale() float32 {
	switch r {
	case Range4G:
		return 4
	case Range8G:
		return 8
	case Range16G:
		return 16
	default:
		return 2
	}
}

// Sensitivity returns LSB per g (16384, 8192, 4096, 2048).
func (r AccelRange) Sensitivity() float32 { return 32768 / r.FullScale() }

func (r AccelRange) String() string {
	switch r {
	case Range2G:
		return "2g"
	case Range4G:
		return "4g"
	case Range8G:
		return "8g"
	case Range16G:
		return "16g"
	}
	return "unknown"
}

// ParseGyroRange maps a full-scale value in °/s onto a GyroRange.
func ParseGyroRange(dps int) (GyroRange, bool) {
	switch dps {
	case 250:
		return Range250DPS, true
	case 500:
		return Range500DPS, true
	case 1000:
		return Range1000DPS, true
	case 2000:
		return Range2000DPS, true
	}
	return DefaultGyroRange, false
}

// ParseAccelRange maps a full-scale value in g onto an AccelRange.
func ParseAccelRange(g int) (AccelRange, bool) {
	switch g {
	case 2:
		return Range2G, true
	case 4:
		return Range4G, true
	case 8:
		return Range8G, true
	case 16:
		return Range16G, true
	}
	return DefaultAccelRange, false
}

// Register field codecs.

func decodeGyroRange(b byte) GyroRange   { return GyroRange((b & fsSelMask) >> fsSelShift) }
func decodeAccelRange(b byte) AccelRange { return AccelRange((b & fsSelMask) >> fsSelShift) }

func encodeFSSel(code uint8) byte { return (code << fsSelShift) & fsSelMask }

// Conversions from raw counts to physical units.

// ConvertGyro returns °/s for a raw gyroscope count.
func ConvertGyro(raw int16, r GyroRange) float32 { return float32(raw) / r.Sensitivity() }

// ConvertAccel returns g for a raw accelerometer count.
func ConvertAccel(raw int16, r AccelRange) float32 { return float32(raw) / r.Sensitivity() }

// ConvertTemperature returns °C for a raw TEMP_OUT count.
func ConvertTemperature(raw int16) float32 { return float32(raw)/tempSensitivity + tempOffset }

// be16 reconstructs a big-endian two's-complement value.
func be16(hi, lo byte) int16 { return int16(uint16(hi)<<8 | uint16(lo)) }

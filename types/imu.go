package types

// ------------------------
// Inertial measurement (accel / gyro / die temperature)
// ------------------------

type IMUInfo struct {
	Sensor string `json:"sensor"` // "mpu6886"
	Addr   uint16 `json:"addr"`   // I2C address
	Bus    string `json:"bus"`    // "i2c0", ...
	Range  int    `json:"range"`  // full-scale: °/s for gyro, g for accel
}

type TemperatureInfo struct {
	Sensor string `json:"sensor"`
	Addr   uint16 `json:"addr"`
	Bus    string `json:"bus"`
}

// AccelValue holds milli-g per axis.
type AccelValue struct {
	X int32 `json:"x_mg"`
	Y int32 `json:"y_mg"`
	Z int32 `json:"z_mg"`
}

// GyroValue holds milli-°/s per axis.
type GyroValue struct {
	X int32 `json:"x_mdps"`
	Y int32 `json:"y_mdps"`
	Z int32 `json:"z_mdps"`
}

type TemperatureValue struct {
	// Tenths of °C (e.g. 231 => 23.1°C).
	DeciC int16 `json:"deci_c"`
}

// ------------------------
// IMU controls
// ------------------------

// IMUSetRange selects the full-scale range of the addressed capability:
// °/s (250, 500, 1000, 2000) for gyro, g (2, 4, 8, 16) for accel.
type IMUSetRange struct {
	Range int `json:"range"`
}

// IMUEnable toggles the addressed sensor (gyro axes, accel axes or the
// temperature sensor).
type IMUEnable struct {
	On bool `json:"on"`
}

// IMUSetRateDivider writes SMPLRT_DIV; rate = internal / (1 + Div).
type IMUSetRateDivider struct {
	Div uint8 `json:"div"`
}

// IMURange is the reply to a successful set_range.
type IMURange struct {
	OK    bool `json:"ok"`
	Range int  `json:"range"`
}

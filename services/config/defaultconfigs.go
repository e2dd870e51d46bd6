package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw YAML for that device
// -----------------------------------------------------------------------------

const cfgHost = `
devices:
  - id: imu0
    type: mpu6886
    params:
      bus: i2c0
      gyro_dps: 2000
      accel_g: 8
      clock: auto
pollers:
  - kind: accel
    name: imu0
    interval_ms: 100
    jitter_ms: 5
  - kind: gyro
    name: imu0
    interval_ms: 100
    jitter_ms: 5
  - kind: temperature
    name: imu0
    interval_ms: 1000
`

var embeddedConfigs = map[string][]byte{
	"host": []byte(cfgHost),
}

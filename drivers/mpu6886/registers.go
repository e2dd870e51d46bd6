// Package mpu6886 provides constants for register addresses and bitfields used
// in the operation of the MPU6886 6-axis IMU.
package mpu6886

const (
	// 7-bit I2C address (AD0 low). The AD0-high address 0x69 is not supported.
	Address = 0x68

	// WHO_AM_I value for the MPU6886.
	ChipID = 0x19

	// Settle times in ms after reset and clock selection.
	ResetSettle = 10
	WakeSettle  = 10

	// --- Register sub-addresses (8-bit registers) ---

	// Configuration
	regSampleRateDiv = 0x19 // R/W SMPLRT_DIV
	regConfig        = 0x1A // R/W DLPF_CFG
	regGyroConfig    = 0x1B // R/W FS_SEL[4:3]
	regAccelConfig   = 0x1C // R/W ACCEL_FS_SEL[4:3]
	regAccelConfig2  = 0x1D // R/W

	// Measurements (big-endian, high byte first)
	regAccelXOutH = 0x3B // R, 6 bytes X,Y,Z
	regTempOutH   = 0x41 // R, 2 bytes
	regGyroXOutH  = 0x43 // R, 6 bytes X,Y,Z

	// Power / identity
	regUserCtrl = 0x6A // R/W
	regPwrMgmt1 = 0x6B // R/W
	regPwrMgmt2 = 0x6C // R/W
	regWhoAmI   = 0x75 // R

	// --- PWR_MGMT_1 bits ---
	pwr1DeviceReset = 1 << 7
	pwr1Sleep       = 1 << 6
	pwr1GyroStandby = 1 << 4
	pwr1TempDis     = 1 << 3
	pwr1ClkSelMask  = 0x07

	// --- PWR_MGMT_2 bits ---
	pwr2StandbyAccel = 0x38 // STBY_XA | STBY_YA | STBY_ZA
	pwr2StandbyGyro  = 0x07 // STBY_XG | STBY_YG | STBY_ZG

	// --- GYRO_CONFIG / ACCEL_CONFIG full-scale field ---
	fsSelShift = 3
	fsSelMask  = 0x03 << fsSelShift
)

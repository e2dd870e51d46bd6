package mpu6886

import (
	"errors"
	"strconv"
)

// Errors returned by the driver. Match with errors.Is; the concrete types
// below carry the detail.
var (
	ErrBus         = errors.New("mpu6886: bus error")
	ErrUnknownChip = errors.New("mpu6886: unknown chip")
)

// BusError wraps a transport failure from the injected I2C bus.
type BusError struct {
	Op  string // "read" or "write"
	Reg byte
	Err error
}

func (e *BusError) Error() string {
	s := "mpu6886: " + e.Op + " reg 0x" + strconv.FormatUint(uint64(e.Reg), 16)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *BusError) Unwrap() error        { return e.Err }
func (e *BusError) Is(target error) bool { return target == ErrBus }

// UnknownChipError is returned by Init when WHO_AM_I does not read ChipID.
type UnknownChipError struct {
	ID byte
}

func (e *UnknownChipError) Error() string {
	return "mpu6886: unknown chip id 0x" + strconv.FormatUint(uint64(e.ID), 16)
}

func (e *UnknownChipError) Is(target error) bool { return target == ErrUnknownChip }

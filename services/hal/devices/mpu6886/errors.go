package mpu6886dev

import (
	"errors"

	"imucode-go/drivers/mpu6886"
	"imucode-go/errcode"
)

// codeFor maps a driver error to the status code published on the bus.
// Provider codes carried inside a BusError (busy, timeout, unknown_bus) win
// over the generic io_error.
func codeFor(err error) errcode.Code {
	switch {
	case err == nil:
		return errcode.OK
	case errors.Is(err, mpu6886.ErrUnknownChip):
		return errcode.UnknownChip
	case errors.Is(err, errcode.Timeout):
		return errcode.Timeout
	case errors.Is(err, errcode.Busy):
		return errcode.Busy
	case errors.Is(err, errcode.UnknownBus):
		return errcode.UnknownBus
	case errors.Is(err, mpu6886.ErrBus):
		return errcode.IOError
	}
	return errcode.Of(err)
}

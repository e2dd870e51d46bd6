package mpu6886dev

import (
	"errors"
	"testing"

	"imucode-go/drivers/mpu6886"
	"imucode-go/errcode"
)

func TestCodeFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want errcode.Code
	}{
		{"nil", nil, errcode.OK},
		{"unknown chip", &mpu6886.UnknownChipError{ID: 0x70}, errcode.UnknownChip},
		{"bus nack", &mpu6886.BusError{Op: "read", Reg: 0x75, Err: errors.New("nack")}, errcode.IOError},
		{"bus timeout", &mpu6886.BusError{Op: "read", Reg: 0x3B, Err: errcode.Timeout}, errcode.Timeout},
		{"bus busy", &mpu6886.BusError{Op: "write", Reg: 0x6B, Err: errcode.Busy}, errcode.Busy},
		{"bus gone", &mpu6886.BusError{Op: "read", Reg: 0x43, Err: errcode.UnknownBus}, errcode.UnknownBus},
		{"code passthrough", errcode.InvalidParams, errcode.InvalidParams},
		{"other", errors.New("x"), errcode.Error},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := codeFor(c.err); got != c.want {
				t.Fatalf("codeFor = %q, want %q", got, c.want)
			}
		})
	}
}

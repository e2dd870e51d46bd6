package mpu6886dev

import (
	"context"

	"imucode-go/drivers/mpu6886"
	"imucode-go/errcode"
	"imucode-go/services/hal/internal/core"
	"imucode-go/types"
)

// Params defines wiring and behaviour for one MPU6886 instance.
type Params struct {
	Bus         string `yaml:"bus"`          // e.g. "i2c0" (required)
	GyroDPS     int    `yaml:"gyro_dps"`     // 250|500|1000|2000; 0 => 250
	AccelG      int    `yaml:"accel_g"`      // 2|4|8|16; 0 => 2
	RateDivider *uint8 `yaml:"rate_divider"` // nil => leave hardware value
	Clock       string `yaml:"clock"`        // "auto" (default) | "internal"
	ReadBack    bool   `yaml:"read_back"`    // re-read ranges before every conversion

	// Optional naming; empty => device id.
	Name string `yaml:"name"`
}

// Builder registration.
func init() { core.RegisterBuilder("mpu6886", builder{}) }

type builder struct{}

func (builder) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	p, ok := in.Params.(Params)
	if !ok {
		if pp, ok2 := in.Params.(*Params); ok2 && pp != nil {
			p = *pp
		} else {
			return nil, errcode.InvalidParams
		}
	}
	if p.Bus == "" {
		return nil, errcode.InvalidParams
	}
	if p.GyroDPS == 0 {
		p.GyroDPS = int(mpu6886.DefaultGyroRange.FullScale())
	}
	if p.AccelG == 0 {
		p.AccelG = int(mpu6886.DefaultAccelRange.FullScale())
	}
	gr, ok := mpu6886.ParseGyroRange(p.GyroDPS)
	if !ok {
		return nil, errcode.InvalidParams
	}
	ar, ok := mpu6886.ParseAccelRange(p.AccelG)
	if !ok {
		return nil, errcode.InvalidParams
	}
	var clk mpu6886.ClockSource
	switch p.Clock {
	case "", "auto":
		clk = mpu6886.ClockBestAvailable
	case "internal":
		clk = mpu6886.ClockInternal20MHz
	default:
		return nil, errcode.InvalidParams
	}
	if in.Res.Reg == nil {
		return nil, core.ErrNoRegistry
	}

	// Claim I2C (serialised by provider).
	i2c, err := in.Res.Reg.ClaimI2C(in.ID, core.ResourceID(p.Bus), mpu6886.Address)
	if err != nil {
		return nil, err
	}

	name := p.Name
	if name == "" {
		name = in.ID
	}
	return &Device{
		id:   in.ID,
		aAcc: core.CapAddr{Domain: core.DefaultDomainFor(string(types.KindAccel)), Kind: string(types.KindAccel), Name: name},
		aGyr: core.CapAddr{Domain: core.DefaultDomainFor(string(types.KindGyro)), Kind: string(types.KindGyro), Name: name},
		aTmp: core.CapAddr{Domain: core.DefaultDomainFor(string(types.KindTemperature)), Kind: string(types.KindTemperature), Name: name},

		res:    in.Res,
		i2c:    i2c,
		params: p,
		gyro:   gr,
		accel:  ar,
		clock:  clk,
	}, nil
}

//go:build rp2040

// pico-imu runs HAL with an MPU6886 on I2C0 (SDA=GP4, SCL=GP5, 400 kHz) and
// streams readings as text lines on UART0 (TX=GP0, RX=GP1, 115200).
package main

import (
	"context"
	"machine"
	"strconv"
	"time"

	"imucode-go/bus"
	"imucode-go/services/hal"
	mpu6886dev "imucode-go/services/hal/devices/mpu6886"
	"imucode-go/types"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers"
)

const imuName = "imu0"

func main() {
	time.Sleep(2 * time.Second)
	ctx := context.Background()

	println("[main] configuring i2c0 …")
	i2c := machine.I2C0
	if err := i2c.Configure(machine.I2CConfig{
		SDA:       machine.GP4,
		SCL:       machine.GP5,
		Frequency: 400 * machine.KHz,
	}); err != nil {
		println("[main] i2c0 configure failed:", err.Error())
	}

	out := uartx.UART0
	if err := out.Configure(uartx.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GP0,
		RX:       machine.GP1,
	}); err != nil {
		println("[main] uart0 configure failed:", err.Error())
		out = nil
	}

	b := bus.NewBus(4)
	halConn := b.NewConnection("hal")
	uiConn := b.NewConnection("ui")

	values := uiConn.Subscribe(bus.T("hal", "cap", "motion", "+", imuName, "value"))
	temps := uiConn.Subscribe(hal.CapValue(hal.DomainFor(string(types.KindTemperature)), string(types.KindTemperature), imuName))
	status := uiConn.Subscribe(bus.T("hal", "cap", "+", "+", imuName, "status"))

	println("[main] starting hal.Run …")
	go hal.Run(ctx, halConn, map[string]drivers.I2C{"i2c0": i2c})

	div := uint8(9)
	cfg := types.HALConfig{
		Devices: []types.HALDevice{{
			ID:   imuName,
			Type: "mpu6886",
			Params: mpu6886dev.Params{
				Bus:         "i2c0",
				GyroDPS:     2000,
				AccelG:      8,
				RateDivider: &div,
				Clock:       "auto",
			},
		}},
		Pollers: []types.PollSpec{
			{Kind: types.KindAccel, Name: imuName, IntervalMs: 100, JitterMs: 5},
			{Kind: types.KindGyro, Name: imuName, IntervalMs: 100, JitterMs: 5},
			{Kind: types.KindTemperature, Name: imuName, IntervalMs: 1000},
		},
	}
	println("[main] publishing config/hal …")
	uiConn.Publish(uiConn.NewMessage(hal.TopicConfig(), cfg, true))

	var line []byte
	for {
		line = line[:0]
		select {
		case m := <-values.Channel():
			switch v := m.Payload.(type) {
			case types.AccelValue:
				line = appendVec(append(line, "accel_mg "...), v.X, v.Y, v.Z)
			case types.GyroValue:
				line = appendVec(append(line, "gyro_mdps "...), v.X, v.Y, v.Z)
			}
		case m := <-temps.Channel():
			if v, ok := m.Payload.(types.TemperatureValue); ok {
				line = strconv.AppendInt(append(line, "temp_dc "...), int64(v.DeciC), 10)
			}
		case m := <-status.Channel():
			if st, ok := m.Payload.(types.CapabilityStatus); ok {
				println("[main] status", m.Topic.String(), string(st.Link), st.Error)
			}
		}
		if len(line) == 0 {
			continue
		}
		line = append(line, '\r', '\n')
		if out != nil {
			_, _ = out.Write(line)
		} else {
			print(string(line))
		}
	}
}

func appendVec(b []byte, x, y, z int32) []byte {
	b = strconv.AppendInt(b, int64(x), 10)
	b = append(b, ' ')
	b = strconv.AppendInt(b, int64(y), 10)
	b = append(b, ' ')
	return strconv.AppendInt(b, int64(z), 10)
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"tinygo.org/x/drivers"

	"imucode-go/bus"
	"imucode-go/services/config"
	"imucode-go/services/hal"
	"imucode-go/types"
)

func serveCmdFlags(cmd *cobra.Command) {
	cmd.Flags().String("bus-id", "i2c0", "name HAL uses for the opened bus")
	cmd.Flags().String("config", "", "YAML config file (empty => embedded host config)")
	cmd.Flags().Bool("status", true, "also print capability status changes")
}

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "run HAL against the bus and print published values",
	Long: `serve runs the HAL service on a single periph I2C bus, publishes the
configuration and prints every capability value HAL emits until interrupted.`,
	Example: `  imu serve --bus /dev/i2c-1
  imu serve --bus /dev/i2c-1 --bus-id i2c1 --config ./hal.yaml`,
	RunE: serveRunE,
}

func serveRunE(cmd *cobra.Command, args []string) error {
	busID, _ := cmd.Flags().GetString("bus-id")
	path, _ := cmd.Flags().GetString("config")
	withStatus, _ := cmd.Flags().GetBool("status")

	if path != "" {
		if _, err := config.Load(path); err != nil {
			return err
		}
	}

	bc, err := openBus(cmd)
	if err != nil {
		return err
	}
	defer bc.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	b := bus.NewBus(8)
	halConn := b.NewConnection("hal")
	cliConn := b.NewConnection("cli")
	defer cliConn.Disconnect()

	values := cliConn.Subscribe(bus.T("hal", "cap", "+", "+", "+", "value"))
	state := cliConn.Subscribe(hal.TopicState())
	var statusCh <-chan *bus.Message // nil => never selected
	if withStatus {
		statusCh = cliConn.Subscribe(bus.T("hal", "cap", "+", "+", "+", "status")).Channel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		hal.Run(ctx, halConn, map[string]drivers.I2C{busID: bc})
	}()

	cctx := context.WithValue(ctx, config.CtxDeviceKey, "host")
	if path != "" {
		cctx = context.WithValue(cctx, config.CtxPathKey, path)
	}
	config.NewConfigService().Start(cctx, cliConn)

	for {
		select {
		case <-ctx.Done():
			<-done
			return nil
		case m := <-values.Channel():
			cmd.Printf("%s %s\n", m.Topic, formatValue(m.Payload))
		case m := <-statusCh:
			if st, ok := m.Payload.(types.CapabilityStatus); ok {
				cmd.Printf("%s link=%s %s\n", m.Topic, st.Link, st.Error)
			}
		case m := <-state.Channel():
			if st, ok := m.Payload.(types.HALState); ok {
				cmd.Printf("hal %s %s\n", st.Level, st.Status)
			}
		}
	}
}

func formatValue(p any) string {
	switch v := p.(type) {
	case types.AccelValue:
		return fmt.Sprintf("x=%d y=%d z=%d mg", v.X, v.Y, v.Z)
	case types.GyroValue:
		return fmt.Sprintf("x=%d y=%d z=%d mdps", v.X, v.Y, v.Z)
	case types.TemperatureValue:
		return fmt.Sprintf("%.1f C", float32(v.DeciC)/10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// imu is the host-side tool for an MPU6886 on a Linux I²C bus.
//
//	imu probe --bus /dev/i2c-1
//	imu read  --bus /dev/i2c-1 --gyro-dps 500 --count 10
//	imu serve --bus /dev/i2c-1 --config hal.yaml
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var version = "dev"

var RootCmd = &cobra.Command{
	Use:          "imu",
	Short:        "probe, read and serve an MPU6886 IMU",
	Version:      version,
	SilenceUsage: true,
}

func main() {
	RootCmd.PersistentFlags().String("bus", "", "I2C bus name or path (empty => first available)")

	probeCmdFlags(ProbeCmd)
	readCmdFlags(ReadCmd)
	serveCmdFlags(ServeCmd)
	RootCmd.AddCommand(ProbeCmd, ReadCmd, ServeCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := RootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// openBus initialises the periph host drivers and opens the named bus.
func openBus(cmd *cobra.Command) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	name, _ := cmd.Flags().GetString("bus")
	return i2creg.Open(name)
}

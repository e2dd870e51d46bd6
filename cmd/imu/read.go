package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"imucode-go/drivers/mpu6886"
)

func readCmdFlags(cmd *cobra.Command) {
	cmd.Flags().Int("gyro-dps", 2000, "gyro full-scale range: 250, 500, 1000 or 2000")
	cmd.Flags().Int("accel-g", 8, "accel full-scale range: 2, 4, 8 or 16")
	cmd.Flags().Int("count", 1, "samples to print (0 => until interrupted)")
	cmd.Flags().Duration("interval", 100*time.Millisecond, "delay between samples")
	cmd.Flags().Bool("read-back", false, "re-read range registers before converting")
}

var ReadCmd = &cobra.Command{
	Use:        "read",
	SuggestFor: []string{"sample", "dump"},
	Short:      "initialise the IMU and print gyro, accel and temperature",
	Example: `  imu read --bus /dev/i2c-1 --count 0 --interval 50ms
  imu read --gyro-dps 500 --accel-g 4`,
	RunE: readRunE,
}

func readRunE(cmd *cobra.Command, args []string) error {
	dps, _ := cmd.Flags().GetInt("gyro-dps")
	g, _ := cmd.Flags().GetInt("accel-g")
	count, _ := cmd.Flags().GetInt("count")
	interval, _ := cmd.Flags().GetDuration("interval")
	readBack, _ := cmd.Flags().GetBool("read-back")

	gr, ok := mpu6886.ParseGyroRange(dps)
	if !ok {
		return fmt.Errorf("unsupported --gyro-dps %d", dps)
	}
	ar, ok := mpu6886.ParseAccelRange(g)
	if !ok {
		return fmt.Errorf("unsupported --accel-g %d", g)
	}

	bc, err := openBus(cmd)
	if err != nil {
		return err
	}
	defer bc.Close()

	d := mpu6886.New(bc)
	d.Configure(mpu6886.Config{ReadBackRanges: readBack})
	if err := d.Init(); err != nil {
		return err
	}
	if err := d.Wake(); err != nil {
		return err
	}
	if err := d.SetGyroRange(gr); err != nil {
		return err
	}
	if err := d.SetAccelRange(ar); err != nil {
		return err
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	ctx := cmd.Context()
	for n := 0; count == 0 || n < count; n++ {
		if n > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
			}
		}
		if err := printSample(cmd, &d); err != nil {
			return err
		}
	}
	return nil
}

func printSample(cmd *cobra.Command, d *mpu6886.Device) error {
	gx, gy, gz, err := d.Gyro()
	if err != nil {
		return err
	}
	ax, ay, az, err := d.Acceleration()
	if err != nil {
		return err
	}
	temp, err := d.Temperature()
	if err != nil {
		return err
	}
	cmd.Printf("gyro %8.2f %8.2f %8.2f dps  accel %6.3f %6.3f %6.3f g  temp %5.1f C\n",
		gx, gy, gz, ax, ay, az, temp)
	return nil
}

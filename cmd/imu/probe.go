package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"imucode-go/drivers/mpu6886"
)

func probeCmdFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("init", false, "also run the full init sequence (resets the chip)")
}

var ProbeCmd = &cobra.Command{
	Use:        "probe",
	SuggestFor: []string{"pro", "prob"},
	Short:      "check that an MPU6886 answers on the bus",
	Long: `probe reads WHO_AM_I at address 0x68 and reports whether it matches the
MPU6886 identity (0x19). With --init the chip is also reset and configured.`,
	Example: `  imu probe --bus /dev/i2c-1`,
	RunE:    probeRunE,
}

func probeRunE(cmd *cobra.Command, args []string) error {
	bc, err := openBus(cmd)
	if err != nil {
		return err
	}
	defer bc.Close()

	d := mpu6886.New(bc)
	id, err := d.WhoAmI()
	if err != nil {
		return err
	}
	if id != mpu6886.ChipID {
		cmd.Printf("%s: unexpected WHO_AM_I 0x%02x at 0x%02x\n", bc, id, mpu6886.Address)
		return &mpu6886.UnknownChipError{ID: id}
	}
	cmd.Printf("%s: mpu6886 at 0x%02x (id 0x%02x)\n", bc, mpu6886.Address, id)

	if doInit, _ := cmd.Flags().GetBool("init"); doInit {
		if err := d.Init(); err != nil {
			if errors.Is(err, mpu6886.ErrBus) {
				return fmt.Errorf("init: %w", err)
			}
			return err
		}
		cmd.Printf("init ok: gyro %s, accel %s\n", d.GyroRange(), d.AccelRange())
	}
	return nil
}

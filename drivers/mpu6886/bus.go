package mpu6886

// I2C 8-bit register operations. Multi-byte reads are burst reads from
// consecutive registers (big-endian: HIGH then LOW).

func (d *Device) writeRegister(reg, val byte) error {
	d.w[0] = reg
	d.w[1] = val
	if err := d.bus.Tx(Address, d.w[:2], nil); err != nil {
		return &BusError{Op: "write", Reg: reg, Err: err}
	}
	return nil
}

func (d *Device) readRegister(reg byte) (byte, error) {
	if err := d.readRegisters(reg, d.r[:1]); err != nil {
		return 0, err
	}
	return d.r[0], nil
}

func (d *Device) readRegisters(reg byte, buf []byte) error {
	d.w[0] = reg
	if err := d.bus.Tx(Address, d.w[:1], buf); err != nil {
		return &BusError{Op: "read", Reg: reg, Err: err}
	}
	return nil
}

// Generic read-modify-write for 8-bit registers with bitmasks.
func (d *Device) modifyRegister(reg, set, clear byte) error {
	current, err := d.readRegister(reg)
	if err != nil {
		return err
	}
	return d.writeRegister(reg, current&^clear|set)
}

// setBits sets mask when on, clears it otherwise.
func (d *Device) setBits(reg, mask byte, on bool) error {
	if on {
		return d.modifyRegister(reg, mask, 0)
	}
	return d.modifyRegister(reg, 0, mask)
}

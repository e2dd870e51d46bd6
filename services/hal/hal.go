// Package hal wires the HAL core to a set of named I²C buses.
//
// HAL waits for a retained types.HALConfig on config/hal, builds the devices
// it names and exposes their capabilities under
// hal/cap/<domain>/<kind>/<name>/{info,status,value,control/<verb>}.
package hal

import (
	"context"

	"imucode-go/bus"
	"imucode-go/services/hal/internal/core"
	"imucode-go/services/hal/internal/provider"

	// Register device builders.
	_ "imucode-go/services/hal/devices/mpu6886"

	"tinygo.org/x/drivers"
)

// Run blocks until ctx is cancelled. Buses must already be configured; HAL
// serialises all traffic on each one.
func Run(ctx context.Context, conn *bus.Connection, buses map[string]drivers.I2C) {
	reg := provider.NewRegistry(buses)
	defer reg.Close()

	h := core.NewHAL(conn, core.Resources{Reg: reg})
	h.Run(ctx)
}

// Topic helpers for HAL clients.

func TopicConfig() bus.Topic { return core.TopicConfigHAL() }
func TopicState() bus.Topic  { return core.TopicState() }

func CapInfo(domain, kind, name string) bus.Topic   { return core.CapInfo(domain, kind, name) }
func CapStatus(domain, kind, name string) bus.Topic { return core.CapStatus(domain, kind, name) }
func CapValue(domain, kind, name string) bus.Topic  { return core.CapValue(domain, kind, name) }

func CapCtrl(domain, kind, name, verb string) bus.Topic {
	return core.CapCtrl(domain, kind, name, verb)
}

// DomainFor returns the domain HAL assigns to a capability kind.
func DomainFor(kind string) string { return core.DefaultDomainFor(kind) }

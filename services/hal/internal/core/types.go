package core

import (
	"context"
	"errors"

	"imucode-go/errcode"
	"imucode-go/types"

	"tinygo.org/x/drivers"
)

// ---- Capability & device model ----

// CapAddr is the (domain, kind, name) triple under hal/cap/.
type CapAddr struct {
	Domain string
	Kind   string
	Name   string
}

type CapabilitySpec struct {
	Domain string // "" => inferred from Kind
	Kind   types.Kind
	Name   string // "" => device ID
	Info   types.Info
}

// EnqueueResult is the synchronous answer to a control. OK means accepted;
// outcomes arrive later as events. Reply, when set, replaces the OK reply.
type EnqueueResult struct {
	OK    bool
	Error errcode.Code
	Reply any
}

type Device interface {
	ID() string
	Capabilities() []CapabilitySpec
	// Init must not block on the bus; hardware work belongs in the device worker.
	Init(ctx context.Context) error
	// Control must be non-blocking.
	Control(addr CapAddr, method string, payload any) (EnqueueResult, error)
	Close() error
}

// ---- Device → HAL telemetry (single shape) ----
// By default an Event is a value update published retained to .../value.
// Info events replace the retained .../info. Err, when non-empty, causes HAL
// to publish only .../status=degraded.

type Event struct {
	Addr    CapAddr
	Payload any
	TSms    int64
	Err     string // "io_error", "unknown_chip", "timeout", ...
	Info    bool
}

type EventEmitter interface {
	// Emit tries to enqueue an Event for HAL publication.
	// It must be non-blocking; false indicates a drop under pressure.
	Emit(ev Event) bool
}

// ---- HAL-injected resources ----

type ResourceID string // e.g. "i2c0"

type ResourceRegistry interface {
	// ClaimI2C returns a serialised handle on bus id for one device address.
	// A second claim of the same (bus, addr) by another device fails.
	ClaimI2C(devID string, id ResourceID, addr uint16) (drivers.I2C, error)
	ReleaseI2C(devID string, id ResourceID, addr uint16)
}

type Resources struct {
	Reg ResourceRegistry
	Pub EventEmitter // provided by HAL
}

// Builder input
type BuilderInput struct {
	ID, Type string
	Params   any
	Res      Resources
}

type Builder interface {
	Build(ctx context.Context, in BuilderInput) (Device, error)
}

var ErrNoRegistry = errors.New("no_resource_registry")
